// Package runconfig reads and rewrites the flat run.config file that drives a
// WeIdentity node deployment. Lines keep their order and comments across
// read-modify-write cycles, and every write refreshes a backup copy that the
// loader falls back to when the primary has lost its node address.
package runconfig
