// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: storage.go — bundle body storage service (SQLite-backed)
//
// Purpose:
//   - Persists bundle bodies keyed by storage identifier (SID). This is the
//     external collaborator spec.md keeps out of activetable's scope: the
//     table only ever holds a SID, never the bytes it points at.
//
// Notes:
//   - Grounded on router.go's mustDB / syncharvester's sql.Open("sqlite3", ...)
//     usage. One table, one blob column, SID as the primary key generated
//     by SQLite's ROWID rather than by activetable — the storage service
//     owns SID allocation, matching spec.md's framing of SID as "opaque"
//     to the core.
// ─────────────────────────────────────────────────────────────────────────────

// Package storage persists bundle bodies outside the active table, which
// only ever holds the SID pointing at them.
package storage

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Dequeue/Delete when no body exists for sid.
var ErrNotFound = errors.New("storage: sid not found")

const schema = `
CREATE TABLE IF NOT EXISTS bundle_bodies (
	sid  INTEGER PRIMARY KEY AUTOINCREMENT,
	body BLOB NOT NULL
);
`

// Service is the storage-service interface activetable's caller depends
// on. activetable itself never sees this type.
type Service interface {
	Enqueue(body []byte) (sid uint64, err error)
	Dequeue(sid uint64) ([]byte, error)
	Delete(sid uint64) error
	Close() error
}

// SQLiteStore is the concrete storage service backing a bpagent instance.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed bundle body store at
// path.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Enqueue persists body and returns the SID it was assigned. The returned
// SID is guaranteed nonzero, so it never collides with bundle.SIDVacant.
func (s *SQLiteStore) Enqueue(body []byte) (uint64, error) {
	res, err := s.db.Exec(`INSERT INTO bundle_bodies (body) VALUES (?)`, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Dequeue retrieves and removes the body stored at sid.
func (s *SQLiteStore) Dequeue(sid uint64) ([]byte, error) {
	row := s.db.QueryRow(`SELECT body FROM bundle_bodies WHERE sid = ?`, sid)
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.db.Exec(`DELETE FROM bundle_bodies WHERE sid = ?`, sid); err != nil {
		return nil, err
	}
	return body, nil
}

// Delete removes the body stored at sid without returning it, used when a
// bundle is abandoned (e.g. TTL expiry) rather than delivered.
func (s *SQLiteStore) Delete(sid uint64) error {
	res, err := s.db.Exec(`DELETE FROM bundle_bodies WHERE sid = ?`, sid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Service = (*SQLiteStore)(nil)
