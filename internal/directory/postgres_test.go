package directory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresStore(mock), mock
}

var businessRowColumns = []string{
	"id", "name", "location_id", "city", "address", "email", "phone",
	"category", "owner_id", "notes", "created_at", "updated_at",
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS businesses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateBusiness(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO businesses`).
		WithArgs(pgxmock.AnyArg(), "Pizza Roma", "porto", "Porto", "Rua 1", "rua 1", "porto",
			"", "", "Restaurant", "", "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	b := &Business{Name: "Pizza Roma", LocationID: "porto", City: "Porto", Address: "Rua 1", Category: "Restaurant"}
	require.NoError(t, s.CreateBusiness(context.Background(), b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, now, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBusiness_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE businesses SET`).
		WithArgs("ghost", "X", "L", "", "", "", "", "", "", "", "", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBusiness(context.Background(), &Business{ID: "ghost", Name: "X", LocationID: "L"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "business not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBusiness_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, location_id.* FROM businesses WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetBusiness(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetBusiness_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM businesses WHERE id=\$1`).
		WithArgs("1").
		WillReturnError(fmt.Errorf("connection reset"))

	_, err := s.GetBusiness(context.Background(), "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get business 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByLocation(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM businesses WHERE location_id=\$1 ORDER BY created_at, id`).
		WithArgs("porto").
		WillReturnRows(pgxmock.NewRows(businessRowColumns).
			AddRow("1", "Pizza Roma", "porto", "Porto", "Rua 1", "", "220000001", "Restaurant", "u1", "", now, now).
			AddRow("2", "Sushi Bar", "porto", "Porto", "Rua 2", "", "", "Restaurant", "u2", "", now, now))

	got, err := s.ListByLocation(context.Background(), "porto")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Pizza Roma", got[0].Name)
	assert.Equal(t, "220000001", got[0].Phone)
	assert.Equal(t, "Sushi Bar", got[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAddressClusters(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	cols := append([]string{"address_key", "city_key"}, businessRowColumns...)
	mock.ExpectQuery(`HAVING COUNT\(\*\) >= \$1`).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("rua 1", "porto", "1", "A", "porto", "Porto", "Rua 1", "", "", "Cafe", "", "", now, now).
			AddRow("rua 1", "porto", "2", "B", "porto", "Porto", "rua 1", "", "", "Bar", "", "", now, now).
			AddRow("rua 9", "porto", "3", "C", "porto", "Porto", "Rua 9", "", "", "Cafe", "", "", now, now).
			AddRow("rua 9", "porto", "4", "D", "porto", "Porto", "Rua 9", "", "", "Cafe", "", "", now, now).
			AddRow("rua 9", "porto", "5", "E", "porto", "Porto", "Rua 9", "", "", "Cafe", "", "", now, now))

	got, err := s.ListAddressClusters(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rua 9", got[0].AddressKey)
	assert.Len(t, got[0].Businesses, 3)
	assert.Equal(t, "rua 1", got[1].AddressKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AnnotateBusinesses(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)UPDATE businesses SET\s+notes = CASE.*WHERE NOT \(\$1 = ANY\(string_to_array\(notes, E'\\n'\)\)\) AND id = ANY\(\$2\)`).
		WithArgs("multi-tenant", []string{"1", "2"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := s.AnnotateBusinesses(context.Background(), []string{"1", "2"}, "multi-tenant")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AnnotateBusinesses_NoIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.AnnotateBusinesses(context.Background(), nil, "multi-tenant")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BulkInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"businesses"}, bulkColumns).WillReturnResult(2)

	bs := []Business{{Name: "A", LocationID: "L"}, {Name: "B", LocationID: "L"}}
	n, err := s.BulkInsert(context.Background(), bs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NotEmpty(t, bs[0].ID)
	assert.NotEmpty(t, bs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
