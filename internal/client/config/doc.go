// Package config loads runtime configuration for the Nodea CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file passed with -c/--config.
//  3. NODEA_* environment variables.
//  4. Command-line flags registered by BindFlags, which override earlier values.
//
// # File schema
//
// Durations use timex.Duration, so values can be either strings like "10s"
// or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8090",
//	  "request_timeout": "10s",
//	  "export_page_size": 100
//	}
package config
