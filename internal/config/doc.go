// Package config loads server settings from an optional config.yaml and
// BATCHGEN_ prefixed environment variables using viper, then validates them.
package config
