// Package db embeds the goose migration sources.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
