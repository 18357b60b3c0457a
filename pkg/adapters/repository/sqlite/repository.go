package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// created_at and updated_at are unix nanoseconds. expires_at is unix
// microseconds so caller supplied dates up to year 9999 stay representable.
const linkColumns = `id, original_url, short_code, owner_id, title, utm, is_active, expires_at, click_count, created_at, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if driverName == "sqlite" {
		// SQLite serializes writers anyway; a single connection avoids
		// "database is locked" errors and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		applyPragmas(db)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}

	return &SQLiteRepository{db: db}, nil
}

var pragmas = []string{"PRAGMA busy_timeout = 5000;", "PRAGMA journal_mode = WAL;"}

func applyPragmas(db *sql.DB) {
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		owner_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		utm JSON,
		is_active INTEGER NOT NULL DEFAULT 1,
		expires_at INTEGER,
		click_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner_id, is_active, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_links_expiry ON links(is_active, expires_at);
	`
	_, err := db.Exec(query)
	return err
}

// Close releases the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) InsertUnique(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	utmJSON, err := marshalUTM(link.UTM)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	now := time.Now()
	createdAt, updatedAt := link.CreatedAt, link.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = r.db.ExecContext(ctx, query,
		id, link.OriginalURL, link.ShortCode, nullString(link.OwnerID), link.Title, utmJSON,
		link.IsActive, nullMicros(link.ExpiresAt), link.ClickCount, createdAt.UnixNano(), updatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCode
		}
		return err
	}

	link.ID = id
	link.CreatedAt = createdAt
	link.UpdatedAt = updatedAt
	return nil
}

func (r *SQLiteRepository) FindByCode(ctx context.Context, code string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`
	return scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *SQLiteRepository) FindActiveByCode(ctx context.Context, code string) (*domain.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ? AND is_active = 1`
	return scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *SQLiteRepository) UpdateFields(ctx context.Context, code string, patch domain.LinkPatch) (*domain.Link, error) {
	updatedAt := patch.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{updatedAt.UnixNano()}

	if patch.OriginalURL != nil {
		sets = append(sets, "original_url = ?")
		args = append(args, *patch.OriginalURL)
	}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.UTM != nil {
		utmJSON, err := marshalUTM(patch.UTM)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "utm = ?")
		args = append(args, utmJSON)
	}
	if patch.ClearExpiry {
		sets = append(sets, "expires_at = NULL")
	} else if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, patch.ExpiresAt.UnixMicro())
	}
	args = append(args, code)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE links SET `+strings.Join(sets, ", ")+` WHERE short_code = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, nil
	}

	link, err := scanOne(tx.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE short_code = ?`, code))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return link, nil
}

func (r *SQLiteRepository) IncrementClickCount(ctx context.Context, code string) error {
	// Atomic
	res, err := r.db.ExecContext(ctx, `UPDATE links SET click_count = click_count + 1 WHERE short_code = ? AND is_active = 1`, code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, code string) error {
	query := `UPDATE links SET is_active = 0, updated_at = ? WHERE short_code = ? AND is_active = 1`
	_, err := r.db.ExecContext(ctx, query, time.Now().UnixNano(), code)
	return err
}

func (r *SQLiteRepository) FindByOwner(ctx context.Context, ownerID string, skip, limit int) ([]domain.Link, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM links WHERE owner_id = ? AND is_active = 1`, ownerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + linkColumns + ` FROM links
			  WHERE owner_id = ? AND is_active = 1
			  ORDER BY created_at DESC, short_code DESC LIMIT ? OFFSET ?`
	links, err := r.queryLinks(ctx, query, ownerID, limit, skip)
	if err != nil {
		return nil, 0, err
	}
	return links, total, nil
}

func (r *SQLiteRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE links SET is_active = 0, updated_at = ?
			  WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?`
	res, err := r.db.ExecContext(ctx, query, now.UnixNano(), ceilMicros(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	return r.queryLinks(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at DESC, short_code DESC`)
}

func (r *SQLiteRepository) queryLinks(ctx context.Context, query string, args ...interface{}) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(row scanner) (*domain.Link, error) {
	link, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return link, err
}

func scanLink(row scanner) (*domain.Link, error) {
	var (
		link      domain.Link
		ownerID   sql.NullString
		utmJSON   sql.NullString
		expiresAt sql.NullInt64
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(
		&link.ID, &link.OriginalURL, &link.ShortCode, &ownerID, &link.Title, &utmJSON,
		&link.IsActive, &expiresAt, &link.ClickCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	link.OwnerID = ownerID.String
	if expiresAt.Valid {
		t := time.UnixMicro(expiresAt.Int64).UTC()
		link.ExpiresAt = &t
	}
	link.CreatedAt = fromNanos(createdAt)
	link.UpdatedAt = fromNanos(updatedAt)
	if utmJSON.Valid && utmJSON.String != "" {
		if err := json.Unmarshal([]byte(utmJSON.String), &link.UTM); err != nil {
			return nil, errors.Wrapf(err, "decode utm of %s", link.ShortCode)
		}
	}
	return &link, nil
}

func marshalUTM(utm map[string]string) (interface{}, error) {
	if len(utm) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(utm)
	if err != nil {
		return nil, errors.Wrap(err, "encode utm")
	}
	return string(b), nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullMicros(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixMicro()
}

// ceilMicros rounds t up so expires_at < ceilMicros(t) matches expires_at < t.
func ceilMicros(t time.Time) int64 {
	m := t.UnixMicro()
	if t.Nanosecond()%1000 != 0 {
		m++
	}
	return m
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	// libsql reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure interface compliance
var _ ports.LinkRepository = (*SQLiteRepository)(nil)
