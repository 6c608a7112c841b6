// Package store persists character cards and standalone lorebooks in
// SQLite. The compose core never touches the store; it exists for the CLI
// and any surrounding service layer.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lorekit/internal/logging"
	"lorekit/internal/lore"
)

// ErrNotFound reports a missing card or book.
var ErrNotFound = errors.New("not found")

// CardRecord is a stored card: the raw JSON body plus indexed metadata.
type CardRecord struct {
	ID        string
	Name      string
	Spec      string
	Body      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open initializes the database at path, creating directories and tables as
// needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.L(logging.CategoryStore).Debugw("store opened", "path", path)
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		spec TEXT NOT NULL,
		body BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_cards_name ON cards(name);

	CREATE TABLE IF NOT EXISTS books (
		name TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// PutCard stores a card body. An empty id gets a fresh UUID. Returns the id.
func (s *Store) PutCard(id, name, spec string, body []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO cards (id, name, spec, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			spec = excluded.spec,
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP`,
		id, name, spec, body)
	if err != nil {
		return "", fmt.Errorf("put card: %w", err)
	}
	return id, nil
}

// GetCard fetches one card by id.
func (s *Store) GetCard(id string) (*CardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := &CardRecord{}
	err := s.db.QueryRow(`
		SELECT id, name, spec, body, created_at, updated_at
		FROM cards WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.Spec, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return rec, nil
}

// ListCards returns all stored cards, without bodies, newest first.
func (s *Store) ListCards() ([]CardRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, spec, created_at, updated_at
		FROM cards ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []CardRecord
	for rows.Next() {
		var rec CardRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Spec, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan card row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteCard removes one card.
func (s *Store) DeleteCard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	return nil
}

// PutBook stores a standalone lorebook under a name.
func (s *Store) PutBook(name string, book *lore.Book) error {
	body, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("encode book: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO books (name, body) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP`,
		name, body)
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}
	return nil
}

// GetBook fetches a standalone lorebook by name.
func (s *Store) GetBook(name string) (*lore.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body []byte
	err := s.db.QueryRow(`SELECT body FROM books WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	var book lore.Book
	if err := json.Unmarshal(body, &book); err != nil {
		return nil, fmt.Errorf("decode book %s: %w", name, err)
	}
	return &book, nil
}

// ListBooks returns the stored book names.
func (s *Store) ListBooks() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name FROM books ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
