package importer

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
	"github.com/sells-group/bizdir/internal/validate"
)

// Options configures an import run.
type Options struct {
	// SkipDuplicates drops flagged rows even under the warn policy.
	SkipDuplicates bool
	// BatchSize bounds how many accepted rows are buffered before a bulk
	// insert. Zero uses 500. Ignored when the store cannot bulk insert.
	BatchSize int
}

// Flagged records the issues raised for one row.
type Flagged struct {
	Line   int            `json:"line"`
	Name   string         `json:"name"`
	Issues []dedupe.Issue `json:"issues"`
}

// Result summarizes an import run.
type Result struct {
	Created int       `json:"created"`
	Flagged int       `json:"flagged"`
	Skipped int       `json:"skipped"`
	Invalid int       `json:"invalid"`
	Details []Flagged `json:"details,omitempty"`
}

// Importer writes rows through a Guard. Rows are processed in order, and each
// row is checked against every row accepted before it.
type Importer struct {
	store directory.Store
	guard *validate.Guard
	opts  Options
	log   *zap.Logger

	processed atomic.Int64
}

// New creates an Importer.
func New(store directory.Store, guard *validate.Guard, opts Options) *Importer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	return &Importer{
		store: store,
		guard: guard,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "importer")),
	}
}

// Processed returns how many rows the importer has handled so far.
func (im *Importer) Processed() int64 { return im.processed.Load() }

// Run imports rows and returns the tally. It stops at the first storage
// error; rows already flushed stay written and Created may include rows from
// the failed batch.
func (im *Importer) Run(ctx context.Context, rows []Row) (Result, error) {
	var res Result
	bulk, canBulk := im.store.(directory.BulkInserter)

	// Businesses per location, including accepted rows not yet flushed.
	known := make(map[string][]directory.Business)
	var pending []directory.Business

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := bulk.BulkInsert(ctx, pending)
		if err != nil {
			return eris.Wrap(err, "importer: flush")
		}
		im.log.Debug("flushed batch", zap.Int64("rows", n))
		pending = pending[:0]
		return nil
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "importer: cancelled")
		}
		im.processed.Add(1)

		b := row.Business()
		existing, ok := known[b.LocationID]
		if !ok && b.LocationID != "" {
			loaded, err := im.store.ListByLocation(ctx, b.LocationID)
			if err != nil {
				return res, eris.Wrapf(err, "importer: load location %s", b.LocationID)
			}
			existing = loaded
			known[b.LocationID] = existing
		}

		issues, err := im.guard.CheckAgainst(b.Candidate(), existing)
		var dup *validate.DuplicateError
		switch {
		case errors.Is(err, validate.ErrInvalidCandidate):
			res.Invalid++
			im.log.Warn("invalid row", zap.Int("line", row.Line), zap.Error(err))
			continue
		case errors.As(err, &dup):
		case err != nil:
			return res, err
		}

		if len(issues) > 0 {
			res.Flagged++
			res.Details = append(res.Details, Flagged{Line: row.Line, Name: b.Name, Issues: issues})
			if dup != nil || im.opts.SkipDuplicates {
				res.Skipped++
				continue
			}
		}

		if canBulk {
			b.ID = uuid.New().String()
			pending = append(pending, b)
			if len(pending) >= im.opts.BatchSize {
				if err := flush(); err != nil {
					return res, err
				}
			}
		} else if err := im.store.CreateBusiness(ctx, &b); err != nil {
			return res, eris.Wrapf(err, "importer: create line %d", row.Line)
		}
		known[b.LocationID] = append(known[b.LocationID], b)
		res.Created++
	}

	if canBulk {
		if err := flush(); err != nil {
			return res, err
		}
	}

	im.log.Info("import complete",
		zap.Int("created", res.Created),
		zap.Int("flagged", res.Flagged),
		zap.Int("skipped", res.Skipped),
		zap.Int("invalid", res.Invalid),
	)
	return res, nil
}
