// Package config provides configuration loading, validation, and hot reload
// for the gateway.
//
// Configuration is loaded from a YAML file, overlaid with MERIDIAN_*
// environment variables, and validated before use. Validation collects every
// error in the file so it can be fixed in one pass; an invalid file never
// becomes the active configuration.
//
// The Watcher observes the configuration file and delivers reloaded
// configurations through a callback, debouncing editor save storms. The
// Store publishes the active configuration behind an atomic pointer so
// request paths read it without locking.
package config
