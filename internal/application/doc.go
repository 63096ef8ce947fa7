// Package application provides application initialization and dependency wiring.
// It builds the run.config store, the properties generator, the service
// probes, the configuration manager and the HTTP server from one Config, so
// the main package only parses the command line and dispatches.
package application
