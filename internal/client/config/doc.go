// Package config loads runtime configuration for the phr client.
//
// Sources & precedence
//
//  1. Built-in defaults (see SetDefaults).
//  2. Optional config file given with --config (YAML, JSON or TOML).
//  3. Environment variables prefixed with PHR_, e.g. PHR_SERVER.
//  4. Command-line flags bound with BindFlags.
//
// Keys
//
//	server            host:port of the cloud backend
//	database          path of the local SQLite store
//	diag_log          path of the share debug log
//	zone              remote zone records are mirrored to
//	request_timeout   per-command timeout for remote calls, e.g. "30s"
//	fetch_interval    period of `phr watch`, e.g. "5m"
//	log_format        console | json | text
//	log_level         debug | info | warn | error
package config
