// Package migrations embebe los scripts SQL del broker.
package migrations

import "embed"

// FS contiene los *_up.sql, aplicados en orden lexicográfico.
//
//go:embed *.sql
var FS embed.FS
