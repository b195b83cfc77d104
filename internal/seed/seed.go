// Package seed loads a YAML catalog (categories, products, opening stock and
// the guest customer) into the store. Re-running a seed is safe: existing
// rows are kept and stock levels are set, not added.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/category"
	categorydto "github.com/fekuna/omnipos-sales-service/internal/category/dto"
	"github.com/fekuna/omnipos-sales-service/internal/customer"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	inventorydto "github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	productdto "github.com/fekuna/omnipos-sales-service/internal/product/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Catalog struct {
	Guest      *Guest     `yaml:"guest"`
	Categories []Category `yaml:"categories"`
}

type Guest struct {
	ID    string `yaml:"id"`
	Phone string `yaml:"phone"`
	Name  string `yaml:"name"`
}

type Category struct {
	Name     string    `yaml:"name"`
	Products []Product `yaml:"products"`
}

// Product.Stock is the on-hand quantity to set. Leave it out to keep the
// product untracked.
type Product struct {
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock *int   `yaml:"stock"`
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and checks a catalog. Unknown keys are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog is empty")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	var errs []error
	if c.Guest != nil {
		if _, err := uuid.Parse(c.Guest.ID); err != nil {
			errs = append(errs, fmt.Errorf("guest.id: %q is not a uuid", c.Guest.ID))
		}
		if strings.TrimSpace(c.Guest.Phone) == "" || len(c.Guest.Phone) > 15 {
			errs = append(errs, errors.New("guest.phone: must be 1 to 15 characters"))
		}
	}

	seen := map[string]bool{}
	for i, cat := range c.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			errs = append(errs, fmt.Errorf("categories[%d].name: is required", i))
		}
		for j, p := range cat.Products {
			where := fmt.Sprintf("categories[%d].products[%d]", i, j)
			name := strings.TrimSpace(p.Name)
			if name == "" {
				errs = append(errs, fmt.Errorf("%s.name: is required", where))
			} else if seen[name] {
				errs = append(errs, fmt.Errorf("%s.name: %q is listed twice", where, name))
			}
			seen[name] = true

			if price, err := decimal.NewFromString(p.Price); err != nil {
				errs = append(errs, fmt.Errorf("%s.price: %q is not a number", where, p.Price))
			} else if price.IsNegative() {
				errs = append(errs, fmt.Errorf("%s.price: must not be negative", where))
			}
			if p.Stock != nil && *p.Stock < 0 {
				errs = append(errs, fmt.Errorf("%s.stock: must not be negative", where))
			}
		}
	}
	return errors.Join(errs...)
}

type Report struct {
	GuestCreated     bool
	Categories       int
	ProductsCreated  int
	ProductsExisting int
	StockSet         int
}

type Seeder struct {
	categories category.UseCase
	products   product.UseCase
	inventory  inventory.UseCase
	customers  customer.Repository
	logger     logger.ZapLogger
}

func NewSeeder(
	categories category.UseCase,
	products product.UseCase,
	inv inventory.UseCase,
	customers customer.Repository,
	log logger.ZapLogger,
) *Seeder {
	return &Seeder{
		categories: categories,
		products:   products,
		inventory:  inv,
		customers:  customers,
		logger:     log,
	}
}

// Apply stops at the first failure. Rows written before it stay.
func (s *Seeder) Apply(ctx context.Context, c *Catalog) (*Report, error) {
	report := &Report{}

	if c.Guest != nil {
		created, err := s.ensureGuest(ctx, c.Guest)
		if err != nil {
			return report, err
		}
		report.GuestCreated = created
	}

	for _, cat := range c.Categories {
		stored, err := s.categories.EnsureCategory(ctx, &categorydto.EnsureCategoryInput{Name: cat.Name})
		if err != nil {
			return report, fmt.Errorf("category %q: %w", cat.Name, err)
		}
		report.Categories++

		for _, p := range cat.Products {
			if err := s.applyProduct(ctx, stored.ID, p, report); err != nil {
				return report, fmt.Errorf("product %q: %w", p.Name, err)
			}
		}
	}

	s.logger.Info("Catalog seeded",
		zap.Bool("guest_created", report.GuestCreated),
		zap.Int("categories", report.Categories),
		zap.Int("products_created", report.ProductsCreated),
		zap.Int("products_existing", report.ProductsExisting),
		zap.Int("stock_set", report.StockSet),
	)
	return report, nil
}

func (s *Seeder) applyProduct(ctx context.Context, categoryID string, p Product, report *Report) error {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return apperror.NewValidation("price", "is not a number")
	}

	stored, created, err := s.products.EnsureProduct(ctx, &productdto.EnsureProductInput{
		CategoryID: categoryID,
		Name:       p.Name,
		Price:      price,
	})
	if err != nil {
		return err
	}
	if created {
		report.ProductsCreated++
	} else {
		report.ProductsExisting++
	}

	if p.Stock == nil {
		return nil
	}
	_, err = s.inventory.SetStock(ctx, &inventorydto.SetStockInput{
		ProductID:     stored.ID,
		Quantity:      *p.Stock,
		Reason:        "Seeded stock level",
		ReferenceType: "seed",
	})
	if err != nil {
		return err
	}
	report.StockSet++
	return nil
}

func (s *Seeder) ensureGuest(ctx context.Context, g *Guest) (bool, error) {
	existing, err := s.customers.FindByID(ctx, g.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	now := time.Now()
	err = s.customers.Create(ctx, &model.Customer{
		BaseModel: model.BaseModel{ID: g.ID, CreatedAt: now},
		Phone:     strings.TrimSpace(g.Phone),
		Name:      strings.TrimSpace(g.Name),
		UpdatedAt: now,
	})
	if errors.Is(err, apperror.ErrDuplicateKey) {
		return false, fmt.Errorf("guest phone %q already belongs to another customer", g.Phone)
	}
	if err != nil {
		return false, err
	}
	s.logger.Info("Guest customer created", zap.String("customer_id", g.ID))
	return true, nil
}
