// Package migrations embeds the goose SQL migrations so the binary can
// bring a fresh database up to date at startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
