// Package database, SQLite bağlantısını ve migration sistemini yönetir.
//
// Kalıcı veri küçüktür: voice net tanımları, patch'ler ve replicator'ın
// state cache'i. Session ve authority state'i process belleğindedir.
package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver; CGO gerekmez
)

// recoverableErrors, yarım kalmış bir migration tekrar çalıştırılırken
// güvenle atlanabilecek hata pattern'ları.
var recoverableErrors = []string{
	"duplicate column name",
}

// bootstrapTable, schema_migrations'tan önce oluşturulmuş bir kurulumu
// tanımak için bakılan tablo.
const bootstrapTable = "voice_nets"

// DB, veritabanı bağlantısını saran struct.
type DB struct {
	Conn   *sql.DB
	logger *zap.Logger
}

// New, SQLite bağlantısı açar ve migration'ları çalıştırır.
//
// dbPath: SQLite dosya yolu (ör: "./data/nexus.db")
// migrationsFS: SQL dosyalarını içeren fs.FS (embed.FS alt dizini veya os.DirFS)
func New(dbPath string, migrationsFS fs.FS, logger *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// modernc driver adı "sqlite"; foreign key'ler SQLite'ta varsayılan kapalı.
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{Conn: conn, logger: logger}

	if err := db.runMigrations(migrationsFS); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connected", zap.String("path", dbPath))
	return db, nil
}

// Close, veritabanı bağlantısını kapatır.
func (db *DB) Close() error {
	return db.Conn.Close()
}

// runMigrations, SQL dosyalarını isim sırasıyla (001_, 002_, ...) uygular.
// Uygulananlar schema_migrations tablosunda tutulur ve tekrar çalışmaz.
func (db *DB) runMigrations(migrationsFS fs.FS) error {
	if _, err := db.Conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	applied, err := db.appliedMigrations()
	if err != nil {
		return err
	}

	// schema_migrations boş ama tablolar zaten var → eski kurulum, hepsini applied say.
	if len(applied) == 0 {
		var tableCount int
		if err := db.Conn.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", bootstrapTable,
		).Scan(&tableCount); err != nil {
			return fmt.Errorf("failed to check existing tables: %w", err)
		}

		if tableCount > 0 {
			for _, file := range sqlFiles {
				if err := db.recordMigration(file); err != nil {
					return err
				}
			}
			db.logger.Info("bootstrapped existing migrations", zap.Int("count", len(sqlFiles)))
			return nil
		}
	}

	for _, file := range sqlFiles {
		if applied[file] {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := db.execStatements(file, string(content)); err != nil {
			return err
		}
		if err := db.recordMigration(file); err != nil {
			return err
		}

		db.logger.Info("migration applied", zap.String("file", file))
	}

	return nil
}

func (db *DB) appliedMigrations() (map[string]bool, error) {
	rows, err := db.Conn.Query("SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate migration rows: %w", err)
	}
	return applied, nil
}

func (db *DB) recordMigration(file string) error {
	if _, err := db.Conn.Exec("INSERT INTO schema_migrations (filename) VALUES (?)", file); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}
	return nil
}

// execStatements, migration'ı statement-by-statement çalıştırır;
// recoverableErrors'taki hatalar loglanıp atlanır.
func (db *DB) execStatements(filename, content string) error {
	for i, stmt := range splitStatements(content) {
		if _, err := db.Conn.Exec(stmt); err != nil {
			if isRecoverable(err) {
				db.logger.Warn("migration statement skipped",
					zap.String("file", filename),
					zap.Int("statement", i+1),
					zap.Error(err),
				)
				continue
			}
			return fmt.Errorf("failed to execute migration %s (statement %d): %w", filename, i+1, err)
		}
	}
	return nil
}

func isRecoverable(err error) bool {
	msg := err.Error()
	for _, pattern := range recoverableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// splitStatements, SQL metnini ';' ile böler. Tek tırnaklı string
// literal'ler ve "--" satır yorumları içindeki ';' yok sayılır.
func splitStatements(sql string) []string {
	var statements []string
	var current strings.Builder
	inString := false
	inComment := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			statements = append(statements, s)
		}
		current.Reset()
	}

	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if inComment {
			if ch == '\n' {
				inComment = false
				current.WriteByte(ch)
			}
			continue
		}

		if !inString && ch == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			inComment = true
			i++
			continue
		}

		if ch == '\'' {
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				current.WriteString("''")
				i++
				continue
			}
			inString = !inString
		}

		if ch == ';' && !inString {
			flush()
			continue
		}

		current.WriteByte(ch)
	}
	flush()

	return statements
}
