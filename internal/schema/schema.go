// Package schema inspects the tables, columns and foreign keys of the
// database a Java service talks to.
package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
)

// Config holds database connection settings.
type Config struct {
	URL string
}

// LoadConfig reads database.url from javalens.yaml in dirs (the working
// directory when none are given). DATABASE_URL overrides the file.
func LoadConfig(dirs ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("javalens")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}
	if err := v.BindEnv("database.url", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("binding DATABASE_URL: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading javalens.yaml: %w", err)
		}
	}

	cfg := &Config{URL: v.GetString("database.url")}
	if cfg.URL == "" {
		return nil, &ConnectionError{Err: errors.New("database url not set (DATABASE_URL or database.url)")}
	}
	return cfg, nil
}

// ConnectionError reports a database that could not be reached.
type ConnectionError struct {
	DSN string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.DSN == "" {
		return fmt.Sprintf("failed to connect to database: %v", e.Err)
	}
	return fmt.Sprintf("failed to connect to database %s: %v", e.DSN, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Column describes one table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey describes one foreign key constraint.
type ForeignKey struct {
	ReferredTable      string   `json:"referred_table"`
	ReferredColumns    []string `json:"referred_columns"`
	ConstrainedColumns []string `json:"constrained_columns"`
}

// Table is the schema of one table.
type Table struct {
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Inspector reads schema metadata from an open database.
type Inspector struct {
	db *sql.DB
}

// Open connects to dsn. Accepted forms are sqlite3://path, sqlite://path,
// file: URIs and bare paths; bare paths open read-only and must exist.
func Open(ctx context.Context, dsn string) (*Inspector, error) {
	source, err := sqliteSource(dsn)
	if err != nil {
		return nil, &ConnectionError{DSN: dsn, Err: err}
	}
	db, err := sql.Open("sqlite3", source)
	if err != nil {
		return nil, &ConnectionError{DSN: dsn, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{DSN: dsn, Err: err}
	}
	return &Inspector{db: db}, nil
}

func sqliteSource(dsn string) (string, error) {
	switch {
	case dsn == "":
		return "", errors.New("empty database url")
	case strings.HasPrefix(dsn, "file:"):
		return dsn, nil
	case strings.Contains(dsn, "://"):
		scheme, rest, _ := strings.Cut(dsn, "://")
		if scheme != "sqlite3" && scheme != "sqlite" {
			return "", fmt.Errorf("unsupported database driver: %s", scheme)
		}
		return "file:" + rest + "?mode=ro", nil
	default:
		return "file:" + dsn + "?mode=ro", nil
	}
}

// Close closes the database.
func (i *Inspector) Close() error {
	return i.db.Close()
}

// TableNames lists user tables in name order.
func (i *Inspector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Analyze returns the schema of every table.
func (i *Inspector) Analyze(ctx context.Context) (map[string]Table, error) {
	names, err := i.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("analyzing schema: %w", err)
	}
	out := make(map[string]Table, len(names))
	for _, name := range names {
		cols, err := i.columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("analyzing schema: %w", err)
		}
		fks, err := i.foreignKeys(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("analyzing schema: %w", err)
		}
		out[name] = Table{Columns: cols, ForeignKeys: fks}
	}
	return out, nil
}

func (i *Inspector) columns(ctx context.Context, table string) ([]Column, error) {
	rows, err := i.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("columns of %s: %w", table, err)
		}
		cols = append(cols, Column{Name: name, Type: typ, Nullable: notNull == 0 && pk == 0})
	}
	return cols, rows.Err()
}

func (i *Inspector) foreignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := i.db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	byID := make(map[int]*ForeignKey)
	var ids []int
	for rows.Next() {
		var (
			id, seq                         int
			refTable, from                  string
			to                              sql.NullString
			onUpdate, onDelete, matchClause string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchClause); err != nil {
			return nil, fmt.Errorf("foreign keys of %s: %w", table, err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &ForeignKey{ReferredTable: refTable}
			byID[id] = fk
			ids = append(ids, id)
		}
		fk.ConstrainedColumns = append(fk.ConstrainedColumns, from)
		fk.ReferredColumns = append(fk.ReferredColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Ints(ids)
	fks := make([]ForeignKey, 0, len(ids))
	for _, id := range ids {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
