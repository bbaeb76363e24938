package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bizdir/internal/db"
)

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres connects a pool and wraps it in a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresStore wraps an existing pool. The caller owns the pool.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
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
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_location ON businesses(location_id);
CREATE INDEX IF NOT EXISTS idx_businesses_address ON businesses(address_key, city_key);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool when this store opened it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateBusiness inserts a business, assigning an ID when none is set.
func (s *PostgresStore) CreateBusiness(ctx context.Context, b *Business) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO businesses (id, name, location_id, city, address, address_key, city_key,
			email, phone, category, owner_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
		b.Email, b.Phone, b.Category, b.OwnerID, b.Notes,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert business %s", b.ID)
	}
	return nil
}

// UpdateBusiness overwrites the mutable fields of an existing business.
func (s *PostgresStore) UpdateBusiness(ctx context.Context, b *Business) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE businesses SET
			name=$2, location_id=$3, city=$4, address=$5, address_key=$6, city_key=$7,
			email=$8, phone=$9, category=$10, owner_id=$11, notes=$12,
			updated_at=now()
		WHERE id=$1`,
		b.ID,
		b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
		b.Email, b.Phone, b.Category, b.OwnerID, b.Notes,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update business %s", b.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("business not found: %s", b.ID)
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// GetBusiness fetches a business by ID. Returns nil when it does not exist.
func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*Business, error) {
	b := &Business{}
	err := s.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id=$1`, id).
		Scan(businessDests(b)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}
	return b, nil
}

// ListByLocation returns every business at a location, oldest first.
func (s *PostgresStore) ListByLocation(ctx context.Context, locationID string) ([]Business, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE location_id=$1 ORDER BY created_at, id`,
		locationID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list by location")
	}
	defer rows.Close()

	var out []Business
	for rows.Next() {
		var b Business
		if err := rows.Scan(businessDests(&b)...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list by location iterate")
}

// ListAddressClusters returns groups of businesses sharing an address.
func (s *PostgresStore) ListAddressClusters(ctx context.Context, minSize int) ([]AddressCluster, error) {
	if minSize < 1 {
		minSize = 1
	}
	rows, err := s.pool.Query(ctx, `
		SELECT b.address_key, b.city_key, `+prefixed("b", businessColumns)+`
		FROM businesses b
		JOIN (
			SELECT address_key, city_key FROM businesses
			WHERE address_key <> ''
			GROUP BY address_key, city_key
			HAVING COUNT(*) >= $1
		) g ON b.address_key = g.address_key AND b.city_key = g.city_key
		ORDER BY b.address_key, b.city_key, b.created_at, b.id`,
		minSize,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list address clusters")
	}
	defer rows.Close()

	var out []clusterRow
	for rows.Next() {
		var r clusterRow
		dests := append([]any{&r.addressKey, &r.cityKey}, businessDests(&r.business)...)
		if err := rows.Scan(dests...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cluster row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list address clusters iterate")
	}
	return groupClusters(out), nil
}

// AnnotateBusinesses appends note as a new line to the listed businesses.
// Businesses that already carry note as one of their lines are left alone.
func (s *PostgresStore) AnnotateBusinesses(ctx context.Context, ids []string, note string) (int64, error) {
	if len(ids) == 0 || note == "" {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE businesses SET
			notes = CASE WHEN notes = '' THEN $1 ELSE notes || E'\n' || $1 END,
			updated_at = now()
		WHERE NOT ($1 = ANY(string_to_array(notes, E'\n'))) AND id = ANY($2)`,
		note, ids,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: annotate businesses")
	}
	return tag.RowsAffected(), nil
}

var bulkColumns = []string{
	"id", "name", "location_id", "city", "address", "address_key", "city_key",
	"email", "phone", "category", "owner_id", "notes",
}

// BulkInsert copies already-vetted businesses in one COPY round trip.
func (s *PostgresStore) BulkInsert(ctx context.Context, bs []Business) (int64, error) {
	rows := make([][]any, len(bs))
	for i := range bs {
		b := &bs[i]
		if b.ID == "" {
			b.ID = uuid.New().String()
		}
		rows[i] = []any{
			b.ID, b.Name, b.LocationID, b.City, b.Address, NormalizeAddress(b.Address), NormalizeAddress(b.City),
			b.Email, b.Phone, b.Category, b.OwnerID, b.Notes,
		}
	}
	n, err := db.CopyFrom(ctx, s.pool, "businesses", bulkColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk insert businesses")
	}
	return n, nil
}
