// Package manager is the configuration manager of a WeIdentity node
// deployment. It combines the run.config store, the properties generator,
// the connectivity probes and the archiver behind operations that report
// success as a boolean. Failures are logged here and go no further.
package manager
