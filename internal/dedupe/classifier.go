package dedupe

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Candidate is a business about to be created or edited.
type Candidate struct {
	Name       string `json:"name"`
	LocationID string `json:"location_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	// ExcludeID skips the stored record being edited.
	ExcludeID string `json:"exclude_id,omitempty"`
}

// Existing is a read-only view of a stored business.
type Existing struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	LocationID string    `json:"location_id"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	Category   string    `json:"category,omitempty"`
	OwnerID    string    `json:"owner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rule identifies which check produced an Issue.
type Rule string

// Duplicate rules.
const (
	RuleName  Rule = "name"
	RuleEmail Rule = "email"
	RulePhone Rule = "phone"
)

// Issue describes one conflict between a candidate and a stored business.
type Issue struct {
	Rule         Rule   `json:"rule"`
	BusinessID   string `json:"business_id"`
	BusinessName string `json:"business_name"`
	Message      string `json:"message"`
}

func (i Issue) String() string { return i.Message }

// Cluster issue labels.
const (
	IssueHighSimilarity = "High name similarity"
	IssueSameCategory   = "Same category"
	IssueSameOwner      = "Same owner"
)

// ClusterVerdict is the audit classification of businesses sharing an address.
type ClusterVerdict struct {
	Address                 string   `json:"address" yaml:"address"`
	City                    string   `json:"city" yaml:"city"`
	BusinessIDs             []string `json:"business_ids" yaml:"business_ids"`
	IsLegitimateMultiTenant bool     `json:"is_legitimate_multi_tenant" yaml:"is_legitimate_multi_tenant"`
	AverageSimilarity       float64  `json:"average_similarity" yaml:"average_similarity"`
	CategoryDiversity       int      `json:"category_diversity" yaml:"category_diversity"`
	Issues                  []string `json:"issues" yaml:"issues"`
}

// Classifier holds no mutable state; one value can serve every request.
type Classifier struct {
	th Thresholds
}

// NewClassifier creates a Classifier using the given thresholds.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

// Thresholds returns the cut-offs in use.
func (c *Classifier) Thresholds() Thresholds { return c.th }

// CheckCandidate compares a candidate with the businesses stored at its
// location and returns every conflict found. The caller is responsible for
// passing only businesses at candidate.LocationID. An empty result means no
// objection.
func (c *Classifier) CheckCandidate(cand Candidate, existing []Existing) []Issue {
	issues := []Issue{}
	if len(existing) == 0 {
		return issues
	}

	name := NormalizeName(cand.Name)
	tokens := Tokens(name)
	email := NormalizeEmail(cand.Email)
	phone := NormalizePhone(cand.Phone)

	for _, e := range existing {
		if cand.ExcludeID != "" && e.ID == cand.ExcludeID {
			continue
		}

		other := NormalizeName(e.Name)
		if name == other || Jaccard(tokens, Tokens(other)) >= c.th.NameSimilarity {
			issues = append(issues, newIssue(RuleName, e, "Name similar to existing business '%s'"))
		}

		if email != "" && email == NormalizeEmail(e.Email) {
			issues = append(issues, newIssue(RuleEmail, e, "Email already used by '%s'"))
		}

		if PhonesMatch(phone, NormalizePhone(e.Phone)) {
			issues = append(issues, newIssue(RulePhone, e, "Phone number already used by '%s'"))
		}
	}
	return issues
}

func newIssue(rule Rule, e Existing, format string) Issue {
	return Issue{
		Rule:         rule,
		BusinessID:   e.ID,
		BusinessName: e.Name,
		Message:      fmt.Sprintf(format, e.Name),
	}
}

// ClassifyCluster decides whether businesses sharing one address look like a
// legitimate multi-tenant building (a mall, an office block) or duplicate data.
// minClusterSize is supplied by the caller; clusters smaller than it are never
// legitimate.
func (c *Classifier) ClassifyCluster(cluster []Existing, minClusterSize int) ClusterVerdict {
	v := ClusterVerdict{
		BusinessIDs: make([]string, 0, len(cluster)),
		Issues:      []string{},
	}
	if len(cluster) > 0 {
		v.Address = cluster[0].Address
		v.City = cluster[0].City
	}

	tokens := make([]map[string]struct{}, len(cluster))
	categories := make(map[string]struct{}, len(cluster))
	for i, b := range cluster {
		v.BusinessIDs = append(v.BusinessIDs, b.ID)
		tokens[i] = Tokens(NormalizeName(b.Name))
		categories[strings.TrimSpace(b.Category)] = struct{}{}
	}

	v.AverageSimilarity = averagePairwise(tokens)
	v.CategoryDiversity = len(categories)

	n := len(cluster)
	required := min(c.th.DiversityCap, int(math.Ceil(c.th.DiversityRatio*float64(n))))
	v.IsLegitimateMultiTenant = v.CategoryDiversity >= required &&
		v.AverageSimilarity < c.th.LegitMaxSimilarity &&
		n >= minClusterSize

	if v.AverageSimilarity > c.th.HighSimilarity {
		v.Issues = append(v.Issues, IssueHighSimilarity)
	}
	if v.CategoryDiversity <= 1 {
		v.Issues = append(v.Issues, IssueSameCategory)
	}
	if sameOwner(cluster) {
		v.Issues = append(v.Issues, IssueSameOwner)
	}
	return v
}

func averagePairwise(tokens []map[string]struct{}) float64 {
	if len(tokens) < 2 {
		return 0
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			sum += Jaccard(tokens[i], tokens[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// sameOwner reports whether a cluster of two or more businesses all belong to
// one non-empty owner.
func sameOwner(cluster []Existing) bool {
	if len(cluster) < 2 {
		return false
	}
	owner := strings.TrimSpace(cluster[0].OwnerID)
	if owner == "" {
		return false
	}
	for _, b := range cluster[1:] {
		if strings.TrimSpace(b.OwnerID) != owner {
			return false
		}
	}
	return true
}
