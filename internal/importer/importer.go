package importer

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storesync/internal/api"
	"github.com/xenking/storesync/internal/domain/syncer"
	"github.com/xenking/storesync/internal/handler"
)

// Syncer runs a batch sync.
type Syncer interface {
	Sync(ctx context.Context, req syncer.Request) (*syncer.Result, error)
}

// Config tunes an Importer.
type Config struct {
	// MaxLine is the longest accepted request line in bytes.
	MaxLine int
	// FilterCapacity is the expected number of SKUs per file.
	FilterCapacity uint
	// FilterFPR is the target false positive rate of the SKU filters.
	FilterFPR float64
}

func (c *Config) setDefaults() {
	if c.MaxLine <= 0 {
		c.MaxLine = int(api.DefaultMaxBodySize)
	}
	if c.FilterCapacity == 0 {
		c.FilterCapacity = 1_000_000
	}
	if c.FilterFPR <= 0 || c.FilterFPR >= 1 {
		c.FilterFPR = 0.001
	}
}

// Stats summarizes an import.
type Stats struct {
	Files    int
	Requests int
	Applied  int
	// Failed counts requests rejected by the sync service.
	Failed int
	// Malformed counts lines that did not decode.
	Malformed int
	// CreatedUsers counts accounts created by applied requests.
	CreatedUsers int
	// OverlappingSKUs counts product entries whose SKU probably appeared in
	// an earlier file. Their state is overwritten by the later file.
	OverlappingSKUs int
}

// Importer replays request files through a Syncer.
type Importer struct {
	syncer Syncer
	cfg    Config
}

// New creates an Importer.
func New(s Syncer, cfg Config) *Importer {
	cfg.setDefaults()
	return &Importer{syncer: s, cfg: cfg}
}

// Run builds one SKU filter per file concurrently, then applies the requests
// sequentially in file and line order. Sync failures and malformed lines are
// logged and counted; only I/O errors and cancellation abort the run.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	lg := zctx.From(ctx)
	stats := Stats{Files: len(files)}

	lg.Info("Pass 1: building SKU filters", zap.Int("files", len(files)))
	filters, err := im.buildFilters(ctx, files)
	if err != nil {
		return stats, errors.Wrap(err, "build filters")
	}

	lg.Info("Pass 2: applying requests")
	for i, path := range files {
		if err := im.applyFile(ctx, path, filters[:i], &stats); err != nil {
			return stats, errors.Wrapf(err, "apply %s", path)
		}
	}

	return stats, nil
}

func (im *Importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter, count, err := BuildFilter(ctx, path, im.cfg.MaxLine, im.cfg.FilterCapacity, im.cfg.FilterFPR)
			if err != nil {
				return err
			}
			zctx.From(ctx).Info("Pass 1 complete",
				zap.String("file", path),
				zap.Uint64("skus", count),
			)
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func (im *Importer) applyFile(ctx context.Context, path string, earlier []*bloom.BloomFilter, stats *Stats) error {
	lg := zctx.From(ctx).With(zap.String("file", path))
	var applied, failed int

	err := ScanFile(ctx, path, im.cfg.MaxLine, func(line int, req *api.SyncRequest, err error) error {
		if err != nil {
			stats.Malformed++
			lg.Warn("Malformed request line", zap.Int("line", line), zap.Error(err))
			return nil
		}
		stats.Requests++

		for _, p := range req.Products {
			sku := normalizeSKU(p.SKU)
			if seenIn(earlier, sku) {
				stats.OverlappingSKUs++
				lg.Debug("SKU overwrites earlier file", zap.Int("line", line), zap.String("sku", sku))
			}
		}

		result, err := im.syncer.Sync(zctx.With(ctx, zap.Int("line", line)), handler.ConvertRequest(req))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			stats.Failed++
			failed++
			lg.Warn("Sync failed", zap.Int("line", line), zap.Error(err))
			return nil
		}

		stats.Applied++
		applied++
		if result.CreatedUserID != 0 {
			stats.CreatedUsers++
		}
		return nil
	})
	if err != nil {
		return err
	}

	lg.Info("File applied", zap.Int("applied", applied), zap.Int("failed", failed))
	return nil
}

func seenIn(filters []*bloom.BloomFilter, sku string) bool {
	for _, f := range filters {
		if f.TestString(sku) {
			return true
		}
	}
	return false
}
