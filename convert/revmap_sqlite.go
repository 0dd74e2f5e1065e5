// Copyright by Eric S. Raymond
// SPDX-License-Identifier: BSD-2-Clause

package convert

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRevMap is a RevMap stored in an SQLite database.  It suits
// very large conversions where rereading a text map on every run gets
// slow; the whole table is still cached in memory for lookups.
type SQLiteRevMap struct {
	db    *sql.DB
	path  string
	dict  map[string]string
	order []string
}

// Ensure SQLiteRevMap implements RevMap
var _ RevMap = (*SQLiteRevMap)(nil)

// OpenSQLiteRevMap opens or creates the database at path.
func OpenSQLiteRevMap(path string) (*SQLiteRevMap, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open revision map %q: %w", path, err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS revmap (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL UNIQUE,
			dest TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set up revision map %q: %w", path, err)
	}
	m := &SQLiteRevMap{db: db, path: path, dict: make(map[string]string)}
	if err := m.load(); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

func (m *SQLiteRevMap) load() error {
	rows, err := m.db.Query(`SELECT source, dest FROM revmap ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to read revision map %q: %w", m.path, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to read revision map %q: %w", m.path, err)
		}
		m.order = append(m.order, key)
		m.dict[key] = value
	}
	return rows.Err()
}

// Get returns the mapping for key.
func (m *SQLiteRevMap) Get(key string) (string, bool) {
	v, ok := m.dict[key]
	return v, ok
}

// Set writes the mapping; an existing key keeps its position.
func (m *SQLiteRevMap) Set(key string, value string) error {
	_, err := m.db.Exec(`
		INSERT INTO revmap (source, dest) VALUES (?, ?)
		ON CONFLICT(source) DO UPDATE SET dest = excluded.dest
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to record %s in revision map: %w", key, err)
	}
	if _, ok := m.dict[key]; !ok {
		m.order = append(m.order, key)
	}
	m.dict[key] = value
	return nil
}

// Keys lists the keys in first-written order.
func (m *SQLiteRevMap) Keys() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Close closes the database.
func (m *SQLiteRevMap) Close() error {
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
