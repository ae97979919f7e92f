// Package config defines the configuration for a dagledger node.
//
// Regardless of how a node is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// options, a node relies on a data directory, defined by Config.DataDir, where
// it expects to find a few additional files:
//
//  priv_key      // hex encoded private key (cf. dagledger keygen).
//  peers.json    // validators a leader proposes to.
//  leaders.json  // leaders a validator accepts proposals from.
//  dagledger.toml // (optional) configuration file, .yaml and .json also work.
package config
