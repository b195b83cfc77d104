package cli

import (
	"fmt"
	"io"

	catRepoPkg "github.com/fekuna/omnipos-sales-service/internal/category/repository"
	catUCPkg "github.com/fekuna/omnipos-sales-service/internal/category/usecase"
	custRepoPkg "github.com/fekuna/omnipos-sales-service/internal/customer/repository"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	invRepoPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/usecase"
	prodRepoPkg "github.com/fekuna/omnipos-sales-service/internal/product/repository"
	prodUCPkg "github.com/fekuna/omnipos-sales-service/internal/product/usecase"
	"github.com/fekuna/omnipos-sales-service/internal/seed"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/spf13/cobra"
)

type seedOptions struct {
	File   string
	DryRun bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed --file catalog.yaml",
		Short: "Load categories, products, stock levels and the guest customer",
		Long: `Load a YAML catalog into the store.

Existing categories, products and customers are kept. Stock levels listed in
the file are set, not added, so the command can be re-run after a stock take.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "catalog file (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate the file without writing")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(rootOpts *RootOptions, opts *seedOptions, cmd *cobra.Command) error {
	catalog, err := seed.LoadFile(opts.File)
	if err != nil {
		return err
	}
	if opts.DryRun {
		printSummary(cmd.OutOrStdout(), catalog)
		return nil
	}

	cfg, log := rootOpts.env()
	defer log.Sync()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tx := postgres.NewTxManager(db)
	invUC := invUCPkg.NewInventoryUseCase(invRepoPkg.NewPGRepository(db), tx, nil,
		inventory.UntrackedPolicy(cfg.Sales.UntrackedPolicy), log)
	seeder := seed.NewSeeder(
		catUCPkg.NewCategoryUseCase(catRepoPkg.NewPGRepository(db), log),
		prodUCPkg.NewProductUseCase(prodRepoPkg.NewPGRepository(db), log),
		invUC,
		custRepoPkg.NewPGRepository(db),
		log,
	)

	report, err := seeder.Apply(cmd.Context(), catalog)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "categories: %d\n", report.Categories)
	fmt.Fprintf(out, "products:   %d created, %d already present\n", report.ProductsCreated, report.ProductsExisting)
	fmt.Fprintf(out, "stock set:  %d\n", report.StockSet)
	if report.GuestCreated {
		fmt.Fprintf(out, "guest customer %s created\n", catalog.Guest.ID)
	}
	return nil
}

func printSummary(out io.Writer, c *seed.Catalog) {
	products := 0
	for _, cat := range c.Categories {
		products += len(cat.Products)
	}
	fmt.Fprintf(out, "catalog is valid: %d categories, %d products\n", len(c.Categories), products)
	if c.Guest != nil {
		fmt.Fprintf(out, "guest customer %s (%s)\n", c.Guest.ID, c.Guest.Phone)
	}
}
