// Package audit classifies every group of businesses sharing an address as a
// legitimate multi-tenant location or likely duplicate data.
package audit

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bizdir/internal/dedupe"
	"github.com/sells-group/bizdir/internal/directory"
)

// Options configures one audit run.
type Options struct {
	// MinClusterSize is the smallest address group loaded for review.
	MinClusterSize int
	// Concurrency bounds parallel classification and annotation. Zero uses 4.
	Concurrency int
	// Annotate writes Note onto the members of legitimate clusters.
	Annotate bool
	Note     string
}

// Report is the outcome of an audit run.
type Report struct {
	Verdicts   []dedupe.ClusterVerdict `json:"verdicts" yaml:"verdicts"`
	Clusters   int                     `json:"clusters" yaml:"clusters"`
	Legitimate int                     `json:"legitimate" yaml:"legitimate"`
	Suspicious int                     `json:"suspicious" yaml:"suspicious"`
	Annotated  int64                   `json:"annotated" yaml:"annotated"`
}

// Auditor runs address cluster audits against a store.
type Auditor struct {
	store      directory.Store
	classifier *dedupe.Classifier
	// legitMin is the classifier's minimum size for a legitimate cluster.
	legitMin int
}

// NewAuditor creates an Auditor. legitMin is passed to ClassifyCluster.
func NewAuditor(store directory.Store, classifier *dedupe.Classifier, legitMin int) *Auditor {
	return &Auditor{store: store, classifier: classifier, legitMin: legitMin}
}

// Run loads the address clusters, classifies them concurrently, and
// optionally annotates the legitimate ones. Verdicts keep the store's order,
// largest cluster first.
func (a *Auditor) Run(ctx context.Context, opts Options) (*Report, error) {
	log := zap.L().With(zap.String("component", "audit"))
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Annotate && opts.Note == "" {
		return nil, eris.New("audit: annotate requires a note")
	}

	clusters, err := a.store.ListAddressClusters(ctx, opts.MinClusterSize)
	if err != nil {
		return nil, eris.Wrap(err, "audit: list clusters")
	}
	log.Info("auditing address clusters", zap.Int("clusters", len(clusters)))

	verdicts := make([]dedupe.ClusterVerdict, len(clusters))
	var legit, annotated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, c := range clusters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v := a.classifier.ClassifyCluster(directory.Views(c.Businesses), a.legitMin)
			verdicts[i] = v
			if !v.IsLegitimateMultiTenant {
				if len(v.Issues) > 0 {
					log.Debug("suspicious cluster",
						zap.String("address", v.Address),
						zap.Strings("issues", v.Issues),
					)
				}
				return nil
			}
			legit.Add(1)

			if !opts.Annotate {
				return nil
			}
			n, err := a.store.AnnotateBusinesses(gctx, v.BusinessIDs, opts.Note)
			if err != nil {
				return eris.Wrapf(err, "audit: annotate %s", v.Address)
			}
			annotated.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "audit: run")
	}

	r := &Report{
		Verdicts:   verdicts,
		Clusters:   len(verdicts),
		Legitimate: int(legit.Load()),
		Annotated:  annotated.Load(),
	}
	r.Suspicious = r.Clusters - r.Legitimate

	log.Info("audit complete",
		zap.Int("legitimate", r.Legitimate),
		zap.Int("suspicious", r.Suspicious),
		zap.Int64("annotated", r.Annotated),
	)
	return r, nil
}
