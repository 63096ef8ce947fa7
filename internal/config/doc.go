// Package config loads the tool's own settings (file locations, log output,
// HTTP server options) from multiple sources with precedence: CLI flags >
// Environment variables > YAML config > Defaults. It is separate from
// run.config, which is the deployment configuration the tool manages.
package config
