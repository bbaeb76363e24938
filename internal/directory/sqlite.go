package directory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	location_id TEXT NOT NULL,
	city        TEXT NOT NULL DEFAULT '',
	address     TEXT NOT NULL DEFAULT '',
	address_key TEXT NOT NULL DEFAULT '',
	city_key    TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_businesses_location ON businesses(location_id);
CREATE INDEX IF NOT EXISTS idx_businesses_address ON businesses(address_key, city_key);
`

const businessColumns = `id, name, location_id, city, address, email, phone, category, owner_id, notes, created_at, updated_at`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateBusiness inserts a business, assigning an ID when none is set.
func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *Business) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (id, name, location_id, city, address, address_key, city_key,
			email, phone, category, owner_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
		b.Email, b.Phone, b.Category, b.OwnerID, b.Notes, b.CreatedAt.UTC(), b.UpdatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert business %s", b.ID)
	}
	return nil
}

// UpdateBusiness overwrites the mutable fields of an existing business.
func (s *SQLiteStore) UpdateBusiness(ctx context.Context, b *Business) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE businesses SET
			name = ?, location_id = ?, city = ?, address = ?, address_key = ?, city_key = ?,
			email = ?, phone = ?, category = ?, owner_id = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
		b.Email, b.Phone, b.Category, b.OwnerID, b.Notes, b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update business %s", b.ID)
	}
	return checkRowsAffected(res, "business", b.ID)
}

// GetBusiness fetches a business by ID. Returns nil when it does not exist.
func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*Business, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}
	return b, nil
}

// ListByLocation returns every business at a location, oldest first.
func (s *SQLiteStore) ListByLocation(ctx context.Context, locationID string) ([]Business, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE location_id = ? ORDER BY created_at, id`,
		locationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list by location")
	}
	defer rows.Close() //nolint:errcheck

	var out []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list by location iterate")
}

// ListAddressClusters returns groups of businesses sharing an address.
func (s *SQLiteStore) ListAddressClusters(ctx context.Context, minSize int) ([]AddressCluster, error) {
	if minSize < 1 {
		minSize = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.address_key, b.city_key, `+prefixed("b", businessColumns)+`
		FROM businesses b
		JOIN (
			SELECT address_key, city_key FROM businesses
			WHERE address_key <> ''
			GROUP BY address_key, city_key
			HAVING COUNT(*) >= ?
		) g ON b.address_key = g.address_key AND b.city_key = g.city_key
		ORDER BY b.address_key, b.city_key, b.created_at, b.id`,
		minSize,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list address clusters")
	}
	defer rows.Close() //nolint:errcheck

	var out []clusterRow
	for rows.Next() {
		var r clusterRow
		dests := append([]any{&r.addressKey, &r.cityKey}, businessDests(&r.business)...)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cluster row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list address clusters iterate")
	}
	return groupClusters(out), nil
}

// AnnotateBusinesses appends note as a new line to the listed businesses.
// Businesses that already carry note as one of their lines are left alone.
func (s *SQLiteStore) AnnotateBusinesses(ctx context.Context, ids []string, note string) (int64, error) {
	if len(ids) == 0 || note == "" {
		return 0, nil
	}

	args := []any{note, note, time.Now().UTC(), note}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := s.db.ExecContext(ctx, `
		UPDATE businesses SET
			notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
			updated_at = ?
		WHERE instr(char(10) || notes || char(10), char(10) || ? || char(10)) = 0 AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: annotate businesses")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: annotate rows affected")
	}
	return n, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBusiness(row scannable) (*Business, error) {
	var b Business
	if err := row.Scan(businessDests(&b)...); err != nil {
		return nil, err
	}
	return &b, nil
}

func businessDests(b *Business) []any {
	return []any{
		&b.ID, &b.Name, &b.LocationID, &b.City, &b.Address, &b.Email, &b.Phone,
		&b.Category, &b.OwnerID, &b.Notes, &b.CreatedAt, &b.UpdatedAt,
	}
}

// prefixed qualifies each column in a comma-separated list with alias.
func prefixed(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// BulkInsert inserts already-vetted businesses in a single transaction.
func (s *SQLiteStore) BulkInsert(ctx context.Context, bs []Business) (int64, error) {
	if len(bs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO businesses (id, name, location_id, city, address, address_key, city_key,
			email, phone, category, owner_id, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert prepare")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i := range bs {
		b := &bs[i]
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		b.CreatedAt, b.UpdatedAt = now, now
		if _, err := stmt.ExecContext(ctx,
			b.ID, b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
			b.Email, b.Phone, b.Category, b.OwnerID, b.Notes, now, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk insert business %s", b.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk insert commit")
	}
	return int64(len(bs)), nil
}
