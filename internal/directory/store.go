package directory

import (
	"context"
	"sort"
)

// Store defines persistence for business listings.
type Store interface {
	CreateBusiness(ctx context.Context, b *Business) error
	UpdateBusiness(ctx context.Context, b *Business) error
	GetBusiness(ctx context.Context, id string) (*Business, error)

	// ListByLocation returns every business at a location, oldest first.
	ListByLocation(ctx context.Context, locationID string) ([]Business, error)
	// ListAddressClusters returns groups of at least minSize businesses that
	// share a non-empty address and city, largest group first.
	ListAddressClusters(ctx context.Context, minSize int) ([]AddressCluster, error)
	// AnnotateBusinesses appends note to each business that does not already
	// carry it and returns the number of records changed.
	AnnotateBusinesses(ctx context.Context, ids []string, note string) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// BulkInserter is implemented by stores that can insert many vetted
// businesses in one round trip.
type BulkInserter interface {
	BulkInsert(ctx context.Context, bs []Business) (int64, error)
}

// groupClusters folds rows ordered by (address_key, city_key) into clusters.
func groupClusters(rows []clusterRow) []AddressCluster {
	var clusters []AddressCluster
	for _, r := range rows {
		n := len(clusters)
		if n == 0 || clusters[n-1].AddressKey != r.addressKey || clusters[n-1].CityKey != r.cityKey {
			clusters = append(clusters, AddressCluster{AddressKey: r.addressKey, CityKey: r.cityKey})
			n++
		}
		clusters[n-1].Businesses = append(clusters[n-1].Businesses, r.business)
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Businesses) > len(clusters[j].Businesses)
	})
	return clusters
}

type clusterRow struct {
	addressKey string
	cityKey    string
	business   Business
}
