package database

import "embed"

// EmbeddedMigrations, migrations/ dizinindeki SQL dosyalarını binary'ye gömer.
// Kullanım: fs.Sub(EmbeddedMigrations, "migrations").
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
