// Package cli implements the kycvault command-line tool.
//
// Writes (save) always run in process against the configured bucket. Reads
// run in process too, unless --remote names a query server, in which case
// they go over gRPC.
package cli
