package database

import "embed"

// Migrations holds the SQL schema migrations, embedded so the server and the
// integration tests apply the same files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
