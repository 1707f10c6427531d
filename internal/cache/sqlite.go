package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // SQLite driver

	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

const (
	appName      = "imgopt"
	dbFileName   = "cache.db"
	schemaResult = `CREATE TABLE IF NOT EXISTS results (
	fingerprint TEXT PRIMARY KEY,
	format      TEXT    NOT NULL,
	quality     INTEGER NOT NULL,
	size        INTEGER NOT NULL,
	diff        REAL    NOT NULL,
	has_diff    INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	reason      TEXT    NOT NULL,
	output      BLOB    NOT NULL
)`
)

// DefaultPath is the persistent cache location under XDG_CACHE_HOME.
func DefaultPath() (string, error) {
	return xdg.CacheFile(filepath.Join(appName, dbFileName))
}

// SQLite is a persistent store. Outputs are zstd-compressed at rest and
// the oldest rows are evicted past maxEntries.
type SQLite struct {
	db         *sql.DB
	enc        *zstd.Encoder
	dec        *zstd.Decoder
	maxEntries int
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string, maxEntries int) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryCache, "cache.open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryCache, "cache.open", err)
	}
	// One connection serialises writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode = WAL", schemaResult} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, apperrors.Wrap(apperrors.CategoryCache, "cache.schema", err)
		}
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, apperrors.Wrap(apperrors.CategoryCache, "cache.open", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, apperrors.Wrap(apperrors.CategoryCache, "cache.open", err)
	}
	return &SQLite{db: db, enc: enc, dec: dec, maxEntries: maxEntries}, nil
}

func (s *SQLite) Get(fp Fingerprint) (*Entry, bool, error) {
	var (
		e               Entry
		hasDiff, passed int
		blob            []byte
	)
	err := s.db.QueryRow(`SELECT format, quality, size, diff, has_diff, passed, reason, output
		FROM results WHERE fingerprint = ?`, string(fp)).
		Scan(&e.Format, &e.Quality, &e.Size, &e.Diff, &hasDiff, &passed, &e.Reason, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CategoryCache, "cache.get", err)
	}

	e.Output, err = s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CategoryCache, "cache.get",
			fmt.Errorf("decompress output: %w", err))
	}
	e.HasDiff, e.Passed = hasDiff != 0, passed != 0
	return &e, true, nil
}

func (s *SQLite) Put(fp Fingerprint, e *Entry) error {
	blob := s.enc.EncodeAll(e.Output, nil)
	_, err := s.db.Exec(`INSERT OR IGNORE INTO results
		(fingerprint, format, quality, size, diff, has_diff, passed, reason, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(fp), e.Format, e.Quality, e.Size, e.Diff, boolInt(e.HasDiff), boolInt(e.Passed), e.Reason, blob)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryCache, "cache.put", err)
	}

	if s.maxEntries > 0 {
		_, err = s.db.Exec(`DELETE FROM results WHERE rowid IN (
			SELECT rowid FROM results ORDER BY rowid ASC
			LIMIT max(0, (SELECT COUNT(*) FROM results) - ?))`, s.maxEntries)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryCache, "cache.evict", err)
		}
	}
	return nil
}

func (s *SQLite) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLite) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
