// Package migrations provides the embedded local-development schema for the
// ticketing store. Production stores are populated by the extraction
// pipelines; these files exist so 'opsintel bootstrap' can stand up a local
// PostgreSQL that looks like a real extract.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
