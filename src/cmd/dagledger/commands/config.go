package commands

import (
	"github.com/mosaicnetworks/dagledger/src/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//AddNodeFlags adds the flags shared by the commands that start a node
func AddNodeFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for vote and announce requests")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Consensus
	cmd.Flags().Duration("propose-timeout", _config.ProposeTimeout, "Max time to collect votes for a transaction")
	cmd.Flags().Float64("rate-limit", _config.RateLimit, "Requests per second accepted from each leader (0 disables)")
	cmd.Flags().Int("rate-burst", _config.RateBurst, "Burst of the per-leader rate limiter")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Duration("snapshot-interval", _config.SnapshotInterval, "Time between snapshots of the graph (0 disables)")

	// Outputs
	cmd.Flags().String("metrics-listen", _config.MetricsAddr, "Listen IP:Port for Prometheus metrics (empty disables)")
	cmd.Flags().Duration("bundle-interval", _config.BundleInterval, "Time between bundle publications (0 disables)")
	cmd.Flags().StringSlice("kafka-brokers", _config.KafkaBrokers, "Kafka brokers receiving bundles")
	cmd.Flags().String("kafka-topic", _config.KafkaTopic, "Kafka topic receiving bundles")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	logFields := logrus.Fields{
		"DataDir":          _config.DataDir,
		"BindAddr":         _config.BindAddr,
		"AdvertiseAddr":    _config.AdvertiseAddr,
		"MaxPool":          _config.MaxPool,
		"TCPTimeout":       _config.TCPTimeout,
		"ProposeTimeout":   _config.ProposeTimeout,
		"Leader":           _config.Leader,
		"Store":            _config.Store,
		"LogLevel":         _config.LogLevel,
		"Moniker":          _config.Moniker,
		"RateLimit":        _config.RateLimit,
		"MetricsAddr":      _config.MetricsAddr,
		"BundleInterval":   _config.BundleInterval,
		"SnapshotInterval": _config.SnapshotInterval,
	}

	if _config.Store {
		logFields["DatabaseDir"] = _config.DatabaseDir
	}

	if len(_config.KafkaBrokers) > 0 {
		logFields["KafkaBrokers"] = _config.KafkaBrokers
		logFields["KafkaTopic"] = _config.KafkaTopic
	}

	_config.Logger().WithFields(logFields).Debug("Config")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/dagledger.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir)          // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
