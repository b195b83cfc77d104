package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return r.findOne(ctx, `SELECT * FROM customers WHERE phone = $1 LIMIT 1`, phone)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	return r.findOne(ctx, `SELECT * FROM customers WHERE id = $1 LIMIT 1`, id)
}

func (r *PGRepository) findOne(ctx context.Context, query string, arg any) (*model.Customer, error) {
	var c model.Customer
	err := sqlx.GetContext(ctx, postgres.Executor(ctx, r.DB), &c, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}

func (r *PGRepository) Create(ctx context.Context, c *model.Customer) error {
	query := `
        INSERT INTO customers (id, phone, name, created_at, updated_at)
        VALUES (:id, :phone, :name, :created_at, :updated_at)
    `
	// Inside a checkout the insert runs under a savepoint: a unique violation
	// would otherwise abort the whole transaction and the caller could not
	// fall back to a lookup.
	err := postgres.Savepoint(ctx, r.DB, "customer_create", func(ext sqlx.ExtContext) error {
		_, err := sqlx.NamedExecContext(ctx, ext, query, c)
		return err
	})
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.ErrDuplicateKey
		}
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *PGRepository) UpdateName(ctx context.Context, id, name string) error {
	_, err := postgres.Executor(ctx, r.DB).ExecContext(ctx,
		`UPDATE customers SET name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update customer name: %w", err)
	}
	return nil
}
