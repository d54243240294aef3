package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storesync/internal/domain/syncer"
	"github.com/xenking/storesync/internal/importer"
	"github.com/xenking/storesync/internal/notify"
	"github.com/xenking/storesync/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		capacity    uint
		fpr         float64
		debug       bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing request files")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "glob of request files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&capacity, "filter-capacity", 1_000_000, "expected number of SKUs per file")
	flag.Float64Var(&fpr, "filter-fpr", 0.001, "false positive rate of the SKU filters")
	flag.BoolVar(&debug, "debug", false, "log every overlapping SKU")
	flag.Parse()

	lg := newLogger(debug)
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	files, err := findFiles(dataDir, pattern, flag.Args())
	if err != nil {
		lg.Error("sync import failed", zap.Error(err))
		os.Exit(1)
	}

	cfg := importer.Config{FilterCapacity: capacity, FilterFPR: fpr}
	if err := run(ctx, databaseURL, files, cfg); err != nil {
		lg.Error("sync import failed", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("sync import completed")
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level.SetLevel(zap.DebugLevel)
	}
	lg, err := cfg.Build()
	if err != nil {
		return zap.NewExample()
	}
	return lg
}

// findFiles returns the explicit file arguments, or the files in dir
// matching pattern in lexical order.
func findFiles(dir, pattern string, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrap(err, "glob request files")
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no files match %s in %s", pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}

func run(ctx context.Context, databaseURL string, files []string, cfg importer.Config) error {
	lg := zctx.From(ctx)
	lg.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.CheckStore(ctx, pool); err != nil {
		return errors.Wrap(err, "check store")
	}

	userRepo := postgres.NewUserRepository(pool)

	// Imported accounts get credentials through the log mailer only.
	dispatcher := notify.NewDispatcher(notify.Config{Workers: 1, Buffer: 256}, userRepo, notify.NewLogMailer(lg.Named("mail")))
	dispatcher.Start()
	defer func() {
		if err := dispatcher.Stop(context.WithoutCancel(ctx)); err != nil {
			lg.Warn("credentials queue not drained", zap.Error(err))
		}
	}()

	svc, err := syncer.NewService(
		postgres.NewProductRepository(pool),
		userRepo,
		postgres.NewOrderRepository(pool),
		dispatcher,
	)
	if err != nil {
		return errors.Wrap(err, "create sync service")
	}

	stats, err := importer.New(svc, cfg).Run(ctx, files)
	lg.Info("import summary",
		zap.Int("files", stats.Files),
		zap.Int("requests", stats.Requests),
		zap.Int("applied", stats.Applied),
		zap.Int("failed", stats.Failed),
		zap.Int("malformed", stats.Malformed),
		zap.Int("created_users", stats.CreatedUsers),
		zap.Int("overlapping_skus", stats.OverlappingSKUs),
	)
	return err
}
