// Package config defines the configuration of a dispute coordinator.
//
// Whether the coordinator is embedded in Go code or started from the command
// line, it uses the Config object defined in this package to store and forward
// configuration options. On top of these options, it relies on a data
// directory, defined by Config.DataDir, where it expects to find a few
// additional files:
//
//  priv_key // a plain text file containing the raw private key of a validator (cf. disputes keygen).
//  validators.json // a JSON file containing the default validator set.
//  validators.<session>.json // (optional) the validator set of a specific session.
//  disputes.toml // (optional) configuration file read by the command line.
package config
