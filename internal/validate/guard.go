// Package validate runs the duplicate checks in front of every write to the
// directory store.
package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
)

// Policy decides what a Guard does with a non-empty issue list.
type Policy string

const (
	// PolicyReject turns issues into a *DuplicateError.
	PolicyReject Policy = "reject"
	// PolicyWarn logs issues and lets the write through.
	PolicyWarn Policy = "warn"
)

// ParsePolicy converts a config or flag value into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyReject, PolicyWarn:
		return p, nil
	default:
		return "", eris.Errorf("validate: unknown policy %q", s)
	}
}

// Sentinel errors, matched with errors.Is.
var (
	ErrInvalidCandidate = eris.New("validate: invalid candidate")
	ErrNotFound         = eris.New("validate: business not found")
)

// DuplicateError carries the issues that blocked a write.
type DuplicateError struct {
	Issues []dedupe.Issue
}

func (e *DuplicateError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = is.Message
	}
	return fmt.Sprintf("duplicate business: %s", strings.Join(msgs, "; "))
}

// Guard checks candidates against the businesses already stored at their
// location.
type Guard struct {
	store      directory.Store
	classifier *dedupe.Classifier
	policy     Policy
	log        *zap.Logger
}

// NewGuard creates a Guard.
func NewGuard(store directory.Store, classifier *dedupe.Classifier, policy Policy) *Guard {
	return &Guard{
		store:      store,
		classifier: classifier,
		policy:     policy,
		log:        zap.L().With(zap.String("component", "validate")),
	}
}

// Policy returns the policy in effect.
func (g *Guard) Policy() Policy { return g.policy }

// WithPolicy returns a copy of the Guard using p.
func (g *Guard) WithPolicy(p Policy) *Guard {
	cp := *g
	cp.policy = p
	return &cp
}

// ValidateCandidate rejects candidates that carry no location or no
// identifying field at all.
func ValidateCandidate(c dedupe.Candidate) error {
	if strings.TrimSpace(c.LocationID) == "" {
		return eris.Wrap(ErrInvalidCandidate, "location_id is required")
	}
	if strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" {
		return eris.Wrap(ErrInvalidCandidate, "one of name, email or phone is required")
	}
	return nil
}

// Issues loads the businesses at the candidate's location and returns every
// conflict, regardless of policy.
func (g *Guard) Issues(ctx context.Context, c dedupe.Candidate) ([]dedupe.Issue, error) {
	if err := ValidateCandidate(c); err != nil {
		return nil, err
	}
	existing, err := g.store.ListByLocation(ctx, c.LocationID)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: load location %s", c.LocationID)
	}
	return g.classifier.CheckCandidate(c, directory.Views(existing)), nil
}

// Check runs Issues and applies the policy. Under PolicyReject a non-empty
// list comes back as a *DuplicateError alongside the issues; under PolicyWarn
// the issues are logged and the error is nil.
func (g *Guard) Check(ctx context.Context, c dedupe.Candidate) ([]dedupe.Issue, error) {
	issues, err := g.Issues(ctx, c)
	if err != nil {
		return nil, err
	}
	return g.apply(c, issues)
}

// CheckAgainst is Check with the location's businesses already loaded. Bulk
// callers use it to include records they have accepted but not yet flushed.
func (g *Guard) CheckAgainst(c dedupe.Candidate, existing []directory.Business) ([]dedupe.Issue, error) {
	if err := ValidateCandidate(c); err != nil {
		return nil, err
	}
	return g.apply(c, g.classifier.CheckCandidate(c, directory.Views(existing)))
}

func (g *Guard) apply(c dedupe.Candidate, issues []dedupe.Issue) ([]dedupe.Issue, error) {
	if len(issues) == 0 {
		return issues, nil
	}

	if g.policy == PolicyReject {
		return issues, &DuplicateError{Issues: issues}
	}

	for _, is := range issues {
		g.log.Warn("possible duplicate business",
			zap.String("name", c.Name),
			zap.String("location_id", c.LocationID),
			zap.String("rule", string(is.Rule)),
			zap.String("conflicts_with", is.BusinessID),
		)
	}
	return issues, nil
}

// Save checks b and then creates it, or updates it when b.ID is set. An
// edited record is never compared with itself.
func (g *Guard) Save(ctx context.Context, b *directory.Business) ([]dedupe.Issue, error) {
	if b.ID != "" {
		cur, err := g.store.GetBusiness(ctx, b.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: load business %s", b.ID)
		}
		if cur == nil {
			return nil, eris.Wrap(ErrNotFound, b.ID)
		}
	}

	issues, err := g.Check(ctx, b.Candidate())
	if err != nil {
		return issues, err
	}

	if b.ID == "" {
		err = g.store.CreateBusiness(ctx, b)
	} else {
		err = g.store.UpdateBusiness(ctx, b)
	}
	if err != nil {
		return issues, eris.Wrap(err, "validate: save business")
	}
	return issues, nil
}
