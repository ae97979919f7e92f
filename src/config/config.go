package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/dagledger/src/common"
	"github.com/mosaicnetworks/dagledger/src/crypto/keys"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultConfigName is the base name of the optional config file in the
	// data directory (dagledger.toml, .yaml or .json).
	DefaultConfigName = "dagledger"
)

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultBindAddr         = "127.0.0.1:1337"
	DefaultTCPTimeout       = 1000 * time.Millisecond
	DefaultProposeTimeout   = 5000 * time.Millisecond
	DefaultMaxPool          = 2
	DefaultStore            = false
	DefaultLeader           = false
	DefaultSnapshotInterval = 10 * time.Second
	DefaultRateLimit        = 100.0
	DefaultRateBurst        = 200
	DefaultRateLimitTTL     = 10 * time.Minute
	DefaultMetricsAddr      = ""
	DefaultBundleInterval   = time.Duration(0)
	DefaultKafkaTopic       = "dagledger.bundles"
)

// Config contains all the configuration properties of a dagledger node.
type Config struct {
	// DataDir is the top-level directory containing the key, peers.json,
	// leaders.json, the optional config file and the database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, also writes every log entry to this file.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where the node serves vote and
	// announce requests.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// TCPTimeout is the timeout of a single RPC.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// ProposeTimeout bounds the collection of votes for one transaction.
	ProposeTimeout time.Duration `mapstructure:"propose-timeout"`

	// Leader makes the node propose transactions to the validators listed in
	// peers.json. Otherwise it votes on proposals from the leaders listed in
	// leaders.json.
	Leader bool `mapstructure:"leader"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// SnapshotInterval is how often the graph is saved when Store is set.
	SnapshotInterval time.Duration `mapstructure:"snapshot-interval"`

	// RateLimit is the number of requests per second accepted from each
	// leader. Zero disables rate limiting.
	RateLimit float64 `mapstructure:"rate-limit"`

	// RateBurst is the burst size of the per-leader rate limiter.
	RateBurst int `mapstructure:"rate-burst"`

	// MetricsAddr is the address:port of the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `mapstructure:"metrics-listen"`

	// BundleInterval is how often committed transactions are partitioned into
	// bundles and published. Zero disables bundling.
	BundleInterval time.Duration `mapstructure:"bundle-interval"`

	// KafkaBrokers receive published bundles. When empty, bundles are only
	// logged.
	KafkaBrokers []string `mapstructure:"kafka-brokers"`

	// KafkaTopic is the topic bundles are written to.
	KafkaTopic string `mapstructure:"kafka-topic"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the keypair of the node.
	Key *keys.Keypair

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		BindAddr:         DefaultBindAddr,
		TCPTimeout:       DefaultTCPTimeout,
		ProposeTimeout:   DefaultProposeTimeout,
		MaxPool:          DefaultMaxPool,
		Leader:           DefaultLeader,
		Store:            DefaultStore,
		DatabaseDir:      DefaultDatabaseDir(),
		SnapshotInterval: DefaultSnapshotInterval,
		RateLimit:        DefaultRateLimit,
		RateBurst:        DefaultRateBurst,
		MetricsAddr:      DefaultMetricsAddr,
		BundleInterval:   DefaultBundleInterval,
		KafkaTopic:       DefaultKafkaTopic,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	config.logger.Level = level
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Logger returns a formatted logrus Entry, with prefix set to "dagledger".
// When LogFile is set, entries are also appended to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "dagledger")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".DAGLedger")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "DAGLedger")
		} else {
			return filepath.Join(home, ".dagledger")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
