package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, s *model.Sale) error {
	query := `
        INSERT INTO sales (id, customer_id, sale_date, total_amount)
        VALUES (:id, :customer_id, :sale_date, :total_amount)
    `
	if _, err := sqlx.NamedExecContext(ctx, postgres.Executor(ctx, r.DB), query, s); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *PGRepository) CreateDetail(ctx context.Context, d *model.SalesDetail) error {
	query := `
        INSERT INTO sales_details (id, sale_id, line_no, product_id, quantity, price)
        VALUES (:id, :sale_id, :line_no, :product_id, :quantity, :price)
    `
	if _, err := sqlx.NamedExecContext(ctx, postgres.Executor(ctx, r.DB), query, d); err != nil {
		return fmt.Errorf("insert sale detail: %w", err)
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Sale, error) {
	var s model.Sale
	err := sqlx.GetContext(ctx, postgres.Executor(ctx, r.DB), &s,
		`SELECT id, customer_id, sale_date, total_amount FROM sales WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find sale: %w", err)
	}

	sales := []model.Sale{s}
	if err := r.attach(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.SaleFilters) ([]model.Sale, int, error) {
	sales := []model.Sale{}
	var count int

	whereClause := ""
	args := []interface{}{}
	if f.CustomerID != "" {
		whereClause = " WHERE customer_id = $1"
		args = append(args, f.CustomerID)
	}

	ext := postgres.Executor(ctx, r.DB)
	if err := sqlx.GetContext(ctx, ext, &count, "SELECT count(*) FROM sales"+whereClause, args...); err != nil {
		if postgres.IsInvalidText(err) {
			return sales, 0, nil // malformed customer id matches nothing
		}
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}

	query := "SELECT id, customer_id, sale_date, total_amount FROM sales" + whereClause + " ORDER BY sale_date DESC, id"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	if err := sqlx.SelectContext(ctx, ext, &sales, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	if err := r.attach(ctx, sales); err != nil {
		return nil, 0, err
	}
	return sales, count, nil
}

// attach loads customers and details for sales with one query each.
func (r *PGRepository) attach(ctx context.Context, sales []model.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ext := postgres.Executor(ctx, r.DB)

	saleIDs := make([]string, 0, len(sales))
	customerIDs := []string{}
	for _, s := range sales {
		saleIDs = append(saleIDs, s.ID)
		if s.CustomerID != nil {
			customerIDs = append(customerIDs, *s.CustomerID)
		}
	}

	customers := map[string]*model.Customer{}
	if len(customerIDs) > 0 {
		query, args, err := sqlx.In(`SELECT * FROM customers WHERE id IN (?)`, customerIDs)
		if err != nil {
			return err
		}
		var rows []model.Customer
		if err := sqlx.SelectContext(ctx, ext, &rows, ext.Rebind(query), args...); err != nil {
			return fmt.Errorf("load sale customers: %w", err)
		}
		for i := range rows {
			customers[rows[i].ID] = &rows[i]
		}
	}

	query, args, err := sqlx.In(`
        SELECT d.id, d.sale_id, d.line_no, d.product_id, d.quantity, d.price, p.name AS product_name
        FROM sales_details d
        JOIN products p ON p.id = d.product_id
        WHERE d.sale_id IN (?)
        ORDER BY d.sale_id, d.line_no
    `, saleIDs)
	if err != nil {
		return err
	}
	var details []model.SalesDetail
	if err := sqlx.SelectContext(ctx, ext, &details, ext.Rebind(query), args...); err != nil {
		return fmt.Errorf("load sale details: %w", err)
	}

	bySale := map[string][]model.SalesDetail{}
	for _, d := range details {
		bySale[d.SaleID] = append(bySale[d.SaleID], d)
	}

	for i := range sales {
		if sales[i].CustomerID != nil {
			sales[i].Customer = customers[*sales[i].CustomerID]
		}
		sales[i].Details = bySale[sales[i].ID]
		if sales[i].Details == nil {
			sales[i].Details = []model.SalesDetail{}
		}
	}
	return nil
}
