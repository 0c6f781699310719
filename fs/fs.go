package appfs

import "embed"

// FS holds the files shipped inside the binaries: SQL migrations and assets (email templates, password lists).
//
//go:embed migrations/*.sql assets
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "assets/templates/email"
	CommonPasswords   = "assets/common-passwords.txt"
)
