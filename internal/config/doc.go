// Package config loads the YAML configuration for the tradier CLI.
//
// Values may reference environment variables as ${VAR}. Missing optional
// fields take the defaults in defaults.go, and Validate reports the first
// invalid field by its dotted YAML path.
package config
