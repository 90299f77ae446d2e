package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	appconfig "ibovflow/config"
	"ibovflow/logger"
	"ibovflow/models"
	"ibovflow/processor"
	"ibovflow/writer"
)

// Fetcher is the paginated retrieval capability the pipeline consumes.
type Fetcher interface {
	FetchPage(ctx context.Context, pageNumber int) (*models.PageEnvelope, error)
	FetchAllPages(ctx context.Context) (*models.PageEnvelope, error)
}

// Pipeline sequences the batch steps: fetch, normalize, persist, aggregate.
// One instance corresponds to one scheduler-triggered run.
type Pipeline struct {
	config  *appconfig.Config
	fetcher Fetcher
	store   *writer.Store
	log     *logger.Log
	runID   string
	now     func() time.Time
}

func New(cfg *appconfig.Config, fetcher Fetcher, store *writer.Store) *Pipeline {
	return &Pipeline{
		config:  cfg,
		fetcher: fetcher,
		store:   store,
		log:     logger.GetLogger(),
		runID:   uuid.New().String(),
		now:     time.Now,
	}
}

// Extract fetches the index composition (all pages or first page only,
// depending on configuration), normalizes it and writes today's raw
// partition.
func (p *Pipeline) Extract(ctx context.Context) error {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{
		"run_id":    p.runID,
		"operation": "extract",
	})
	log.Info("starting extract")

	var env *models.PageEnvelope
	var err error
	if p.config.Source.B3.AllPages {
		env, err = p.fetcher.FetchAllPages(ctx)
	} else {
		env, err = p.fetcher.FetchPage(ctx, 1)
	}
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	now := p.now()
	records := processor.NormalizeAt(env, now)
	if len(records) == 0 {
		return fmt.Errorf("extract: no records after normalization")
	}

	if env.Partial() {
		log.WithFields(logger.Fields{"pages_failed": env.PagesFailed}).Warn("snapshot is partial, some pages were lost")
	}

	if err := p.store.WriteRaw(ctx, records, now, env.PagesFailed); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	logger.LogDataFlowEntry(log, "b3_api", "raw_partition", len(records), "records")
	log.Info("extract complete")
	return nil
}

// Transform reads today's raw partition, validates its schema, aggregates
// per asset and writes the transformed partition.
func (p *Pipeline) Transform(ctx context.Context) error {
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{
		"run_id":    p.runID,
		"operation": "transform",
	})
	log.Info("starting transform")

	now := p.now()
	records, columns, err := p.store.ReadRaw(ctx, now)
	if err != nil {
		if errors.Is(err, writer.ErrNotFound) {
			return fmt.Errorf("transform: no raw snapshot for %s: %w", now.Format("2006-01-02"), err)
		}
		return fmt.Errorf("transform: %w", err)
	}

	// Missing required columns abort the transform; nothing is skipped
	// silently.
	if err := processor.VerifyColumns(columns); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	aggregates := processor.AggregateAt(records, now)
	if err := p.store.WriteAggregates(ctx, aggregates, now); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	logger.LogDataFlowEntry(log, "raw_partition", "transformed_partition", len(aggregates), "aggregates")
	log.Info("transform complete")
	return nil
}

// Run executes the full pipeline: extract followed by transform. The first
// failing step aborts the run.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Extract(ctx); err != nil {
		return err
	}
	return p.Transform(ctx)
}
