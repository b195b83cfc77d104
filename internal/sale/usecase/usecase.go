package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"github.com/fekuna/omnipos-sales-service/internal/customer"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/outbox"
	"github.com/fekuna/omnipos-sales-service/internal/product"
	"github.com/fekuna/omnipos-sales-service/internal/sale"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-sales-service/internal/sale")

// Options holds the checkout policies. The zero value trusts the caller's
// total and disables idempotency.
type Options struct {
	TotalPolicy    sale.TotalPolicy
	TotalTolerance decimal.Decimal
	IdempotencyTTL time.Duration
}

type saleUseCase struct {
	tx        postgres.Transactor
	repo      sale.Repository
	products  product.Repository
	customers customer.Resolver
	ledger    inventory.Ledger
	outbox    outbox.Repository
	cache     Cache
	opts      Options
	logger    logger.ZapLogger
}

// NewSaleUseCase wires the coordinator. cache may be nil.
func NewSaleUseCase(
	tx postgres.Transactor,
	repo sale.Repository,
	products product.Repository,
	customers customer.Resolver,
	ledger inventory.Ledger,
	outboxRepo outbox.Repository,
	cache Cache,
	opts Options,
	log logger.ZapLogger,
) sale.UseCase {
	if opts.TotalPolicy == "" {
		opts.TotalPolicy = sale.TotalTrust
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &saleUseCase{
		tx:        tx,
		repo:      repo,
		products:  products,
		customers: customers,
		ledger:    ledger,
		outbox:    outboxRepo,
		cache:     cache,
		opts:      opts,
		logger:    log,
	}
}

func (uc *saleUseCase) Checkout(ctx context.Context, input *dto.CheckoutInput) (*dto.Receipt, error) {
	if err := uc.validate(input); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "sale.Checkout", trace.WithAttributes(
		attribute.Int("sale.lines", len(input.Lines)),
		attribute.Bool("sale.idempotent", input.IdempotencyKey != ""),
	))
	defer span.End()

	if input.IdempotencyKey == "" || uc.cache == nil {
		receipt, err := uc.checkout(ctx, input)
		recordSpan(span, err)
		return receipt, err
	}

	receipt, err := uc.checkoutOnce(ctx, input)
	recordSpan(span, err)
	return receipt, err
}

// checkout runs the transaction. The returned error is always one of the
// apperror kinds.
func (uc *saleUseCase) checkout(ctx context.Context, input *dto.CheckoutInput) (*dto.Receipt, error) {
	saleID := uuid.New().String()
	state := sale.StateStarted
	log := uc.logger.With(zap.String("sale_id", saleID))

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		cust, err := uc.customers.Resolve(ctx, input.Contact)
		if err != nil {
			return err
		}
		state = sale.StateCustomerResolved

		s := &model.Sale{
			ID:          saleID,
			CustomerID:  &cust.ID,
			SaleDate:    time.Now().UTC(),
			TotalAmount: *input.TotalAmount,
		}
		if err := uc.repo.Create(ctx, s); err != nil {
			return err
		}

		event := dto.SaleRecordedEvent{
			SaleID:      s.ID,
			CustomerID:  cust.ID,
			SaleDate:    s.SaleDate,
			TotalAmount: s.TotalAmount,
			Lines:       make([]dto.SaleRecordedLine, 0, len(input.Lines)),
		}

		state = sale.StateLineProcessing
		for i, line := range input.Lines {
			detail, err := uc.processLine(ctx, saleID, i, line)
			if err != nil {
				return err
			}
			event.Lines = append(event.Lines, dto.SaleRecordedLine{
				ProductID:   detail.ProductID,
				ProductName: detail.ProductName,
				Quantity:    detail.Quantity,
				Price:       detail.Price,
			})
		}

		// Deadline or cancellation that arrived mid-checkout aborts here
		// rather than racing the commit.
		if err := ctx.Err(); err != nil {
			return err
		}

		return uc.enqueue(ctx, &event)
	})
	if err != nil {
		err = apperror.Classify("checkout", err)
		failedAt := state
		state = sale.StateAborted
		log.Warn("Checkout aborted",
			zap.Stringer("state", state),
			zap.Stringer("failed_at", failedAt),
			zap.Error(err),
		)
		return nil, err
	}

	state = sale.StateCommitted
	log.Info("Sale recorded",
		zap.Stringer("state", state),
		zap.String("total_amount", input.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(input.Lines)),
	)

	return &dto.Receipt{
		SaleID:        saleID,
		TotalAmount:   *input.TotalAmount,
		TotalQuantity: input.TotalQuantity,
	}, nil
}

func (uc *saleUseCase) processLine(ctx context.Context, saleID string, line int, in dto.LineInput) (*model.SalesDetail, error) {
	p, err := uc.products.FindByName(ctx, in.ProductName)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &apperror.ProductNotFoundError{Line: line, Name: in.ProductName}
	}

	if err := uc.ledger.Reserve(ctx, p, in.Quantity, saleID); err != nil {
		var stock *apperror.InsufficientStockError
		if errors.As(err, &stock) {
			stock.Line = line
		}
		return nil, err
	}

	detail := &model.SalesDetail{
		ID:          uuid.New().String(),
		SaleID:      saleID,
		LineNo:      line,
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    in.Quantity,
		Price:       in.Price, // the price charged, not the catalog price
	}
	if err := uc.repo.CreateDetail(ctx, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (uc *saleUseCase) enqueue(ctx context.Context, event *dto.SaleRecordedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}
	return uc.outbox.Insert(ctx, &model.OutboxEvent{
		ID:          uuid.New().String(),
		AggregateID: event.SaleID,
		EventType:   model.EventTypeSaleRecorded,
		Payload:     payload,
		CreatedAt:   event.SaleDate,
	})
}

func (uc *saleUseCase) validate(input *dto.CheckoutInput) error {
	if input == nil || len(input.Lines) == 0 {
		return apperror.NewValidation("products", "at least one line is required")
	}

	sum := decimal.Zero
	for i, line := range input.Lines {
		if strings.TrimSpace(line.ProductName) == "" {
			return apperror.NewValidation(fmt.Sprintf("products[%d].name", i), "is required")
		}
		if line.Quantity <= 0 {
			return apperror.NewValidation(fmt.Sprintf("products[%d].quantity", i), "must be a positive integer")
		}
		if line.Quantity > math.MaxInt32 {
			return apperror.NewValidation(fmt.Sprintf("products[%d].quantity", i),
				fmt.Sprintf("must be at most %d", math.MaxInt32))
		}
		if err := checkAmount(fmt.Sprintf("products[%d].price", i), line.Price); err != nil {
			return err
		}
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	if input.TotalAmount == nil {
		return apperror.NewValidation("total_amount", "is required")
	}
	if err := checkAmount("total_amount", *input.TotalAmount); err != nil {
		return err
	}
	if input.TotalQuantity != nil && *input.TotalQuantity < 0 {
		return apperror.NewValidation("total_quantity", "must not be negative")
	}

	// A blank phone falls back to the guest and the contact is not stored.
	if input.Contact != nil && strings.TrimSpace(input.Contact.Phone) != "" {
		if utf8.RuneCountInString(strings.TrimSpace(input.Contact.Phone)) > 15 {
			return apperror.NewValidation("customer.phone", "must be at most 15 characters")
		}
		if utf8.RuneCountInString(strings.TrimSpace(input.Contact.Name)) > 100 {
			return apperror.NewValidation("customer.name", "must be at most 100 characters")
		}
	}

	if uc.opts.TotalPolicy == sale.TotalVerify {
		if diff := sum.Sub(*input.TotalAmount).Abs(); diff.GreaterThan(uc.opts.TotalTolerance) {
			return apperror.NewValidation("total_amount",
				fmt.Sprintf("does not match the sum of the lines (%s)", sum.StringFixed(2)))
		}
	}
	return nil
}

// maxAmount is the first value a NUMERIC(10,2) column cannot hold.
var maxAmount = decimal.New(1, 8)

// checkAmount keeps money within what the store records exactly: no
// negatives, at most two decimal places, below maxAmount.
func checkAmount(field string, v decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return apperror.NewValidation(field, "must not be negative")
	case !v.Equal(v.Truncate(2)):
		return apperror.NewValidation(field, "must have at most 2 decimal places")
	case v.GreaterThanOrEqual(maxAmount):
		return apperror.NewValidation(field, "must be less than "+maxAmount.String())
	}
	return nil
}

func (uc *saleUseCase) GetSale(ctx context.Context, id string) (*model.Sale, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.ErrSaleNotFound
	}
	s, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Classify("get sale", err)
	}
	if s == nil {
		return nil, apperror.ErrSaleNotFound
	}
	return s, nil
}

func (uc *saleUseCase) ListSales(ctx context.Context, filters *dto.SaleFilters) ([]model.Sale, int, error) {
	sales, total, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, apperror.Classify("list sales", err)
	}
	return sales, total, nil
}

func recordSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
