// Package ingestion drives a scraping run: parallel per-platform
// fetches, then normalize -> reconcile -> store for every listing. One
// platform failing never takes down the rest of the run.
package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/codewidneha/kitchenhub/models"
	"github.com/codewidneha/kitchenhub/normalizer"
	"github.com/codewidneha/kitchenhub/reconciler"
	"github.com/codewidneha/kitchenhub/scraper"
)

// Origin is the search location an ingestion run covers.
type Origin struct {
	Location  string
	Latitude  float64
	Longitude float64
}

type Orchestrator struct {
	adapters     []scraper.Adapter
	recon        *reconciler.Reconciler
	fetchTimeout time.Duration
}

func New(adapters []scraper.Adapter, recon *reconciler.Reconciler, fetchTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		adapters:     adapters,
		recon:        recon,
		fetchTimeout: fetchTimeout,
	}
}

// Run fetches from every platform concurrently, joins the batch, then
// feeds each listing through the normalizer and reconciler. The summary
// enumerates per-platform outcomes; adapter and per-record failures are
// absorbed into it rather than escalated. A cancelled context stops the
// run early, but merges already committed stay committed.
func (o *Orchestrator) Run(ctx context.Context, origin Origin) (*models.IngestSummary, error) {
	type batch struct {
		listings []models.RawListing
		err      error
	}
	batches := make([]batch, len(o.adapters))

	var g errgroup.Group
	for i, adapter := range o.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
			defer cancel()
			listings, err := adapter.Fetch(fetchCtx, origin.Location, origin.Latitude, origin.Longitude)
			batches[i] = batch{listings: listings, err: err}
			return nil
		})
	}
	g.Wait()

	summary := &models.IngestSummary{Location: origin.Location}
	var runErr *multierror.Error

	for i, adapter := range o.adapters {
		result := models.PlatformResult{Platform: adapter.Platform()}
		b := batches[i]

		if b.err != nil {
			result.FailureReason = b.err.Error()
			runErr = multierror.Append(runErr, b.err)
			logrus.Printf("platform %s failed for %q: %v", adapter.Platform(), origin.Location, b.err)
			summary.Platforms = append(summary.Platforms, result)
			continue
		}

		result.Fetched = len(b.listings)
		for _, raw := range b.listings {
			if ctx.Err() != nil {
				summary.Platforms = append(summary.Platforms, result)
				return summary, ctx.Err()
			}

			draft, err := normalizer.Normalize(adapter.Platform(), raw)
			if err != nil {
				if errors.Is(err, normalizer.ErrInvalidListing) {
					result.Invalid++
					logrus.Printf("skipping invalid %s listing: %v", adapter.Platform(), err)
					continue
				}
				result.Invalid++
				runErr = multierror.Append(runErr, err)
				continue
			}
			result.Normalized++

			out, err := o.recon.Reconcile(draft)
			if err != nil {
				// Store failure: this platform's batch is reported
				// failed, the others keep going.
				result.FailureReason = err.Error()
				runErr = multierror.Append(runErr, err)
				logrus.Printf("failed to reconcile %s listing %q: %v", adapter.Platform(), draft.Name, err)
				break
			}
			if out.Created {
				result.Created++
			} else {
				result.Merged++
			}
		}
		summary.Platforms = append(summary.Platforms, result)
	}

	if err := runErr.ErrorOrNil(); err != nil {
		logrus.Printf("ingestion for %q finished with partial failures: %v", origin.Location, err)
	}
	return summary, nil
}
