package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storesync/internal/api"
	"github.com/xenking/storesync/internal/domain/product"
	"github.com/xenking/storesync/internal/domain/user"
	"github.com/xenking/storesync/internal/handler"
	"github.com/xenking/storesync/internal/storage/postgres"
)

type customerFlags struct {
	email     string
	firstName string
	lastName  string
}

func main() {
	var (
		databaseURL  string
		productsFile string
		customer     customerFlags
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&customer.email, "customer-email", "", "create a customer account with this email")
	flag.StringVar(&customer.firstName, "customer-first-name", "", "first name of the seeded customer")
	flag.StringVar(&customer.lastName, "customer-last-name", "", "last name of the seeded customer")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, customer); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, customer customerFlags) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.CheckStore(ctx, pool); err != nil {
		return errors.Wrap(err, "check store")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if customer.email != "" {
		if err := seedCustomer(ctx, postgres.NewUserRepository(pool), customer); err != nil {
			return errors.Wrap(err, "seed customer")
		}
	}

	return nil
}

// readProducts decodes a JSON array of products in the /sync wire format.
func readProducts(path string) ([]product.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var products []api.ProductInput
	if err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p api.ProductInput
		if err := p.Decode(d); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	return handler.ProductInputs(products), nil
}

func seedProducts(ctx context.Context, repo product.Repository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	inputs, err := readProducts(productsFile)
	if err != nil {
		return err
	}

	slog.Info("upserting products", slog.Int("count", len(inputs)))

	for _, in := range inputs {
		p := product.New(in.SKU)
		id, err := repo.FindIDBySKU(ctx, in.SKU)
		switch {
		case err == nil:
			if p, err = repo.GetByID(ctx, id); err != nil {
				return errors.Wrapf(err, "load product %s", in.SKU)
			}
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "find product %s", in.SKU)
		}

		p.Apply(in)
		if id, err = repo.Save(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", in.SKU)
		}

		slog.Info("upserted product",
			slog.Int64("id", id),
			slog.String("sku", p.SKU),
			slog.String("sale_price", p.SalePrice.StringFixed(2)),
		)
	}

	return nil
}

func seedCustomer(ctx context.Context, repo user.Repository, c customerFlags) error {
	existing, err := repo.FindByEmail(ctx, c.email)
	switch {
	case err == nil:
		slog.Info("customer already exists", slog.Int64("id", existing.ID))
		return nil
	case !errors.Is(err, user.ErrNotFound):
		return errors.Wrap(err, "find customer")
	}

	password, err := user.GeneratePassword(user.DefaultPasswordLength)
	if err != nil {
		return err
	}

	id, err := repo.Create(ctx, user.NewCustomer(c.email, c.firstName, c.lastName, password))
	if err != nil {
		return errors.Wrap(err, "create customer")
	}

	slog.Info("created customer", slog.Int64("id", id))
	// The password is shown once and never logged.
	fmt.Fprintf(os.Stdout, "customer %s password: %s\n", c.email, password)

	return nil
}
