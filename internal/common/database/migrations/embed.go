// Package migrations contains the embedded SQL migrations for the decision store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
