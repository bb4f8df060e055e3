package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultMaxSpeechEntries bounds the speech cache; older entries are evicted first.
const DefaultMaxSpeechEntries = 200

// SpeechEntry describes one cached rendition.
type SpeechEntry struct {
	Voice     string    `json:"voice"`
	TextHash  string    `json:"text_hash"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteStore caches synthesised speech as canonical WAV bytes.
type SQLiteStore struct {
	db         *sql.DB
	maxEntries int
	now        func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "dictaite.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, maxEntries: DefaultMaxSpeechEntries, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS speech_cache (
			voice TEXT NOT NULL,
			text_hash TEXT NOT NULL,
			wav BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY(voice, text_hash)
		);
	`); err != nil {
		return fmt.Errorf("create speech_cache table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_speech_cache_created_at ON speech_cache(created_at)"); err != nil {
		return fmt.Errorf("create speech_cache index: %w", err)
	}

	return nil
}

// SetMaxEntries changes the eviction bound. Zero or less disables eviction.
func (s *SQLiteStore) SetMaxEntries(n int) {
	s.maxEntries = n
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

func (s *SQLiteStore) GetSpeech(ctx context.Context, voice, text string) ([]byte, bool, error) {
	var wav []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT wav FROM speech_cache WHERE voice = ? AND text_hash = ?`,
		voice,
		textHash(text),
	).Scan(&wav)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query speech for voice %s: %w", voice, err)
	}
	return wav, true, nil
}

func (s *SQLiteStore) PutSpeech(ctx context.Context, voice, text string, wav []byte) error {
	if len(wav) == 0 {
		return errors.New("refusing to cache empty speech")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO speech_cache(voice, text_hash, wav, created_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(voice, text_hash) DO UPDATE SET wav = excluded.wav, created_at = excluded.created_at`,
		voice,
		textHash(text),
		wav,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store speech for voice %s: %w", voice, err)
	}

	return s.evict(ctx)
}

func (s *SQLiteStore) evict(ctx context.Context) error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM speech_cache WHERE rowid NOT IN (
			SELECT rowid FROM speech_cache ORDER BY created_at DESC LIMIT ?
		)`,
		s.maxEntries,
	)
	if err != nil {
		return fmt.Errorf("evict speech cache: %w", err)
	}
	return nil
}

// ListSpeech returns cached entries, newest first.
func (s *SQLiteStore) ListSpeech(ctx context.Context) ([]SpeechEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT voice, text_hash, length(wav), created_at FROM speech_cache ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query speech cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []SpeechEntry
	for rows.Next() {
		var e SpeechEntry
		var createdAt string
		if err := rows.Scan(&e.Voice, &e.TextHash, &e.Bytes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan speech entry: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse speech entry created_at: %w", err)
		}
		e.CreatedAt = parsed
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate speech rows: %w", err)
	}

	return entries, nil
}

// ClearSpeech drops every cached rendition.
func (s *SQLiteStore) ClearSpeech(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM speech_cache`); err != nil {
		return fmt.Errorf("clear speech cache: %w", err)
	}
	return nil
}
