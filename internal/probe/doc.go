// Package probe checks that the database and the cache configured in the
// generated identity properties are reachable. A probe opens one connection,
// closes it again and reports the outcome as an error; nothing is retried.
package probe
