// Package directory stores business listings and answers the queries the
// duplicate checks need: businesses at a location and clusters of businesses
// sharing an address.
package directory

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/sells-group/bizdir/internal/dedupe"
)

// Business is a stored directory listing.
type Business struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	LocationID string    `json:"location_id" db:"location_id"`
	City       string    `json:"city,omitempty" db:"city"`
	Address    string    `json:"address,omitempty" db:"address"`
	Email      string    `json:"email,omitempty" db:"email"`
	Phone      string    `json:"phone,omitempty" db:"phone"`
	Category   string    `json:"category,omitempty" db:"category"`
	OwnerID    string    `json:"owner_id,omitempty" db:"owner_id"`
	Notes      string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// View projects the record into the read-only shape the classifier uses.
func (b Business) View() dedupe.Existing {
	return dedupe.Existing{
		ID:         b.ID,
		Name:       b.Name,
		LocationID: b.LocationID,
		Email:      b.Email,
		Phone:      b.Phone,
		Address:    b.Address,
		City:       b.City,
		Category:   b.Category,
		OwnerID:    b.OwnerID,
		CreatedAt:  b.CreatedAt,
	}
}

// Candidate builds the duplicate-check input for this record. The record's
// own ID is excluded so an edit never conflicts with itself.
func (b Business) Candidate() dedupe.Candidate {
	return dedupe.Candidate{
		Name:       b.Name,
		LocationID: b.LocationID,
		Email:      b.Email,
		Phone:      b.Phone,
		ExcludeID:  b.ID,
	}
}

// Views converts a slice of records.
func Views(bs []Business) []dedupe.Existing {
	out := make([]dedupe.Existing, len(bs))
	for i, b := range bs {
		out[i] = b.View()
	}
	return out
}

// AddressCluster is a group of businesses sharing one address in one city.
type AddressCluster struct {
	AddressKey string     `json:"address_key"`
	CityKey    string     `json:"city_key"`
	Businesses []Business `json:"businesses"`
}

// NormalizeAddress produces the grouping key for an address or city: case
// folded, whitespace collapsed, trailing punctuation dropped.
func NormalizeAddress(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ".,;")
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}
