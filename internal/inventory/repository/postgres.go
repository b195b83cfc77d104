package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByProduct(ctx context.Context, productID string) (*model.Inventory, error) {
	return r.getOne(ctx, `SELECT * FROM inventory WHERE product_id = $1`, productID)
}

func (r *PGRepository) GetForUpdate(ctx context.Context, productID string) (*model.Inventory, error) {
	return r.getOne(ctx, `SELECT * FROM inventory WHERE product_id = $1 FOR UPDATE`, productID)
}

func (r *PGRepository) getOne(ctx context.Context, query, productID string) (*model.Inventory, error) {
	var inv model.Inventory
	err := sqlx.GetContext(ctx, postgres.Executor(ctx, r.DB), &inv, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || postgres.IsInvalidText(err) {
			return nil, nil // Untracked product; the caller applies its policy
		}
		return nil, fmt.Errorf("get inventory: %w", err)
	}
	return &inv, nil
}

func (r *PGRepository) Decrement(ctx context.Context, productID string, amount int) (bool, error) {
	// Atomic check-and-decrement, same guard as the row lock would give.
	query := `
        UPDATE inventory
        SET quantity = quantity - $1,
            updated_at = $2
        WHERE product_id = $3 AND quantity >= $1
    `
	res, err := postgres.Executor(ctx, r.DB).ExecContext(ctx, query, amount, time.Now(), productID)
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement inventory: %w", err)
	}
	return rows == 1, nil
}

func (r *PGRepository) EnsureExists(ctx context.Context, productID string) error {
	query := `
        INSERT INTO inventory (id, product_id, quantity, updated_at)
        VALUES ($1, $2, 0, $3)
        ON CONFLICT (product_id) DO NOTHING
    `
	_, err := postgres.Executor(ctx, r.DB).ExecContext(ctx, query, uuid.New().String(), productID, time.Now())
	if err != nil {
		if postgres.IsForeignKeyViolation(err) || postgres.IsInvalidText(err) {
			return apperror.ErrProductUnknown
		}
		return fmt.Errorf("ensure inventory: %w", err)
	}
	return nil
}

func (r *PGRepository) SetQuantity(ctx context.Context, productID string, quantity int) error {
	_, err := postgres.Executor(ctx, r.DB).ExecContext(ctx,
		`UPDATE inventory SET quantity = $1, updated_at = $2 WHERE product_id = $3`,
		quantity, time.Now(), productID,
	)
	if err != nil {
		return fmt.Errorf("set inventory quantity: %w", err)
	}
	return nil
}

func (r *PGRepository) LogMovement(ctx context.Context, m *model.InventoryMovement) error {
	query := `
        INSERT INTO inventory_movements (
            id, product_id, movement_type, quantity_change, quantity_before,
            quantity_after, reference_type, reference_id, notes, created_at
        )
        VALUES (
            :id, :product_id, :movement_type, :quantity_change, :quantity_before,
            :quantity_after, :reference_type, :reference_id, :notes, :created_at
        )
    `
	if _, err := sqlx.NamedExecContext(ctx, postgres.Executor(ctx, r.DB), query, m); err != nil {
		return fmt.Errorf("log movement: %w", err)
	}
	return nil
}

func (r *PGRepository) HasMovement(ctx context.Context, productID, referenceType, referenceID string) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1 FROM inventory_movements
            WHERE product_id = $1 AND reference_type = $2 AND reference_id = $3
        )
    `
	err := sqlx.GetContext(ctx, postgres.Executor(ctx, r.DB), &exists, query, productID, referenceType, referenceID)
	if err != nil {
		if postgres.IsInvalidText(err) {
			return false, nil
		}
		return false, fmt.Errorf("find movement: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, int, error) {
	items := []model.InventoryMovement{}
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.MovementType != "" {
		conditions = append(conditions, "movement_type = :movement_type")
		args["movement_type"] = f.MovementType
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := sqlx.Named("SELECT count(*) FROM inventory_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := r.DB.GetContext(ctx, &count, r.DB.Rebind(countQuery), countArgs...); err != nil {
		if postgres.IsInvalidText(err) {
			return items, 0, nil // malformed product id matches nothing
		}
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	query := "SELECT * FROM inventory_movements" + whereClause + " ORDER BY created_at DESC"
	if f.PageSize > 0 {
		offset := (max(f.Page, 1) - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return items, count, nil
}
