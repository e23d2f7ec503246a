// Package mbtiles writes and reads the single-file SQLite tile container.
package mbtiles

import (
	"context"
	"database/sql"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	createMetadata = `CREATE TABLE metadata (name text, value text)`
	createTiles    = `CREATE TABLE tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob)`
	insertMetadata = `INSERT INTO metadata (name, value) VALUES (?, ?)`
	insertTile     = `INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`
	selectTiles    = `SELECT zoom_level, tile_column, tile_row, tile_data FROM tiles`
)

// DB is an open container. It holds a single connection, so statements
// issued from several goroutines are serialized by database/sql.
type DB struct {
	Path string
	db   *sql.DB
}

// Row is one stored tile.
type Row struct {
	Zoom   uint32
	Column uint32
	Row    uint32
	Data   []byte
}

// Create removes any file at path and creates an empty container with the
// metadata and tiles tables.
func Create(ctx context.Context, path string) (*DB, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return nil, errors.Errorf("create %s: is a directory", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "remove previous %s", path)
	}

	m, err := open(path)
	if err != nil {
		return nil, err
	}

	for _, stmt := range []string{createMetadata, createTiles} {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			m.Close()
			return nil, errors.Wrapf(err, "create tables in %s", path)
		}
	}
	return m, nil
}

// Open opens an existing container.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return open(path)
}

func open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	db.SetMaxOpenConns(1)
	return &DB{Path: path, db: db}, nil
}

// PutMetadata inserts one metadata row.
func (m *DB) PutMetadata(ctx context.Context, name, value string) error {
	_, err := m.db.ExecContext(ctx, insertMetadata, name, value)
	return errors.Wrapf(err, "insert metadata %s", name)
}

// PutTile inserts one tile row. row is the stored, bottom-left origin row.
func (m *DB) PutTile(ctx context.Context, zoom, column, row uint32, data []byte) error {
	_, err := m.db.ExecContext(ctx, insertTile, zoom, column, row, data)
	return errors.Wrapf(err, "insert tile %d/%d/%d", zoom, column, row)
}

// Metadata returns all metadata rows by name.
func (m *DB) Metadata(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name, value FROM metadata`)
	if err != nil {
		return nil, errors.Wrap(err, "query metadata")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "scan metadata")
		}
		out[name] = value
	}
	return out, errors.Wrap(rows.Err(), "query metadata")
}

// Tiles returns all tile rows ordered by zoom, column and row.
func (m *DB) Tiles(ctx context.Context) ([]Row, error) {
	return m.tiles(ctx, selectTiles+` ORDER BY zoom_level, tile_column, tile_row`)
}

// TilesInserted returns all tile rows in insertion order.
func (m *DB) TilesInserted(ctx context.Context) ([]Row, error) {
	return m.tiles(ctx, selectTiles+` ORDER BY rowid`)
}

func (m *DB) tiles(ctx context.Context, query string) ([]Row, error) {
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query tiles")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Zoom, &r.Column, &r.Row, &r.Data); err != nil {
			return nil, errors.Wrap(err, "scan tile")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "query tiles")
}

// Close closes the underlying connection.
func (m *DB) Close() error {
	return m.db.Close()
}
