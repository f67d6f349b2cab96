// Package pipeline walks the unprocessed paragraphs and runs question
// generation on each, one paragraph per transaction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/questions"
	"github.com/fleecekm/fleeceqa/internal/store"
)

// Mode selects the generation strategy.
type Mode string

const (
	ModeMulti  Mode = "multi"
	ModeSingle Mode = "single"
)

// Order selects how the next paragraph is picked.
type Order string

const (
	OrderRandom     Order = "random"
	OrderSequential Order = "sequential"
)

// Config controls a driver run.
type Config struct {
	Mode  Mode  `yaml:"mode"`
	Order Order `yaml:"order"`
	// Limit caps the paragraphs attempted in one run. Zero means no cap.
	Limit int `yaml:"limit"`
}

// DefaultConfig returns multi-turn generation over random paragraphs.
func DefaultConfig() Config {
	return Config{Mode: ModeMulti, Order: OrderRandom}
}

// Validate rejects unknown modes and orders.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeMulti, ModeSingle:
	default:
		return fmt.Errorf("unknown generation mode %q (want multi or single)", c.Mode)
	}
	switch c.Order {
	case OrderRandom, OrderSequential:
	default:
		return fmt.Errorf("unknown paragraph order %q (want random or sequential)", c.Order)
	}
	if c.Limit < 0 {
		return errors.New("pipeline limit must not be negative")
	}
	return nil
}

// Generator is the question generation the driver runs per paragraph.
type Generator interface {
	Generate(ctx context.Context, db questions.Store, p store.Paragraph) ([]int, error)
	GenerateSingleTurn(ctx context.Context, db questions.Store, p store.Paragraph) ([]int, error)
}

// Progress is called after every attempted paragraph.
type Progress func(p store.Paragraph, ids []int, err error)

// Stats summarizes a run.
type Stats struct {
	RunID     string
	Processed int
	Failed    int
	Questions int
	Started   time.Time
	Finished  time.Time
}

// Driver processes paragraphs until none are left, the limit is reached,
// or the context is cancelled.
type Driver struct {
	store     *store.Store
	generator Generator
	config    Config
	logger    *zap.Logger
	progress  Progress
	now       func() time.Time
}

// New creates a Driver.
func New(s *store.Store, g Generator, cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{store: s, generator: g, config: cfg, logger: logger, now: time.Now}
}

// OnProgress registers a callback invoked after each paragraph.
func (d *Driver) OnProgress(fn Progress) {
	d.progress = fn
}

// Run processes paragraphs one at a time. A paragraph that fails is
// rolled back, logged and skipped for the rest of the run; the run
// continues with the next one. Run returns an error only when the store
// itself cannot be read or the context is cancelled.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: uuid.NewString(), Started: d.now()}
	log := d.logger.With(zap.String("run_id", stats.RunID))

	if err := d.store.SetMetadata(ctx, store.MetaLastRunID, stats.RunID); err != nil {
		return stats, err
	}
	if err := d.store.SetMetadata(ctx, store.MetaLastRunStart, store.FormatTimestamp(stats.Started)); err != nil {
		return stats, err
	}

	var skipped []int
	for d.config.Limit == 0 || stats.Processed+stats.Failed < d.config.Limit {
		if err := ctx.Err(); err != nil {
			log.Info("run interrupted", zap.Int("processed", stats.Processed))
			return d.finish(stats, err)
		}

		p, err := d.store.NextUnprocessedParagraph(ctx, d.config.Order == OrderRandom, skipped)
		if err != nil {
			return d.finish(stats, err)
		}
		if p == nil {
			log.Info("all paragraphs processed")
			break
		}

		ids, err := d.ProcessParagraph(ctx, *p)
		if d.progress != nil {
			d.progress(*p, ids, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return d.finish(stats, ctx.Err())
			}
			log.Error("paragraph failed",
				zap.Int("paragraph_id", p.ID),
				zap.Error(err),
			)
			skipped = append(skipped, p.ID)
			stats.Failed++
			continue
		}
		stats.Processed++
		stats.Questions += len(ids)
	}

	return d.finish(stats, nil)
}

// ProcessParagraph generates questions for p inside one transaction and
// marks it processed with the next order number. Nothing is kept when
// generation fails.
func (d *Driver) ProcessParagraph(ctx context.Context, p store.Paragraph) (ids []int, err error) {
	tx, err := d.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				d.logger.Warn("rollback failed", zap.Int("paragraph_id", p.ID), zap.Error(rbErr))
			}
		}
	}()

	switch d.config.Mode {
	case ModeSingle:
		ids, err = d.generator.GenerateSingleTurn(ctx, tx, p)
	default:
		ids, err = d.generator.Generate(ctx, tx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("paragraph %d: %w", p.ID, err)
	}

	order, err := tx.NextProcessedOrder(ctx)
	if err != nil {
		return nil, err
	}
	if err = tx.MarkProcessed(ctx, p.ID, order); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit paragraph %d: %w", p.ID, err)
	}
	return ids, nil
}

func (d *Driver) finish(stats Stats, runErr error) (Stats, error) {
	stats.Finished = d.now()
	// The run context may already be cancelled.
	if err := d.store.SetMetadata(context.Background(), store.MetaLastRunEnd, store.FormatTimestamp(stats.Finished)); err != nil {
		d.logger.Warn("record run end", zap.Error(err))
	}
	d.logger.Info("run finished",
		zap.String("run_id", stats.RunID),
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed),
		zap.Int("questions", stats.Questions),
	)
	return stats, runErr
}
