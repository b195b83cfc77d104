package usecase

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	inventorydto "github.com/fekuna/omnipos-sales-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-sales-service/internal/model"
	"github.com/fekuna/omnipos-sales-service/internal/sale/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory record store with the transactional behaviour the
// coordinator relies on: transactions run one at a time (standing in for
// row locks) and a failed transaction restores the snapshot taken when it
// began.
type memStore struct {
	txMu sync.Mutex // held for the whole transaction
	mu   sync.Mutex // guards the data below

	customers map[string]model.Customer
	products  map[string]model.Product
	inventory map[string]int
	movements []model.InventoryMovement
	sales     map[string]model.Sale
	details   []model.SalesDetail
	outbox    []model.OutboxEvent

	failOn        map[string]error // operation name -> injected error
	onFindProduct func(name string)
}

type snapshot struct {
	customers map[string]model.Customer
	products  map[string]model.Product
	inventory map[string]int
	movements []model.InventoryMovement
	sales     map[string]model.Sale
	details   []model.SalesDetail
	outbox    []model.OutboxEvent
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]model.Customer{},
		products:  map[string]model.Product{},
		inventory: map[string]int{},
		sales:     map[string]model.Sale{},
		failOn:    map[string]error{},
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snap := snapshot{
		customers: maps.Clone(s.customers),
		products:  maps.Clone(s.products),
		inventory: maps.Clone(s.inventory),
		movements: slices.Clone(s.movements),
		sales:     maps.Clone(s.sales),
		details:   slices.Clone(s.details),
		outbox:    slices.Clone(s.outbox),
	}
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.customers, s.products, s.inventory = snap.customers, snap.products, snap.inventory
		s.movements, s.sales, s.details, s.outbox = snap.movements, snap.sales, snap.details, snap.outbox
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) fail(op string) error {
	return s.failOn[op]
}

// seed helpers

func (s *memStore) addCustomer(id, phone, name string) {
	s.customers[id] = model.Customer{BaseModel: model.BaseModel{ID: id}, Phone: phone, Name: name}
}

func (s *memStore) addProduct(name, price string, stock *int) model.Product {
	p := model.Product{
		BaseModel: model.BaseModel{ID: uuid.New().String()},
		Name:      name,
		Price:     decimal.RequireFromString(price),
	}
	s.products[p.ID] = p
	if stock != nil {
		s.inventory[p.ID] = *stock
	}
	return p
}

func (s *memStore) stockOf(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.inventory[productID]
	return q, ok
}

func (s *memStore) counts() (sales, details, movements, outbox int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sales), len(s.details), len(s.movements), len(s.outbox)
}

// customer.Repository

type customerRepo struct{ *memStore }

func (r customerRepo) FindByPhone(_ context.Context, phone string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.customers {
		if c.Phone == phone {
			return &c, nil
		}
	}
	return nil, nil
}

func (r customerRepo) FindByID(_ context.Context, id string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.customers[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r customerRepo) Create(_ context.Context, c *model.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.Phone == c.Phone {
			return apperror.ErrDuplicateKey
		}
	}
	r.customers[c.ID] = *c
	return nil
}

func (r customerRepo) UpdateName(_ context.Context, id, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.customers[id]
	c.Name = name
	r.customers[id] = c
	return nil
}

// product.Repository

type productRepo struct{ *memStore }

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = *p
	return nil
}

func (r productRepo) FindByName(_ context.Context, name string) (*model.Product, error) {
	if r.onFindProduct != nil {
		r.onFindProduct(name)
	}
	if err := r.fail("product.FindByName"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (r productRepo) setPrice(id, price string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[id]
	p.Price = decimal.RequireFromString(price)
	r.products[id] = p
}

// inventory.Repository

type inventoryRepo struct{ *memStore }

func (r inventoryRepo) GetByProduct(_ context.Context, productID string) (*model.Inventory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.inventory[productID]
	if !ok {
		return nil, nil
	}
	return &model.Inventory{ID: "inv-" + productID, ProductID: productID, Quantity: q}, nil
}

func (r inventoryRepo) GetForUpdate(ctx context.Context, productID string) (*model.Inventory, error) {
	return r.GetByProduct(ctx, productID)
}

func (r inventoryRepo) Decrement(_ context.Context, productID string, amount int) (bool, error) {
	if err := r.fail("inventory.Decrement"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.inventory[productID]
	if !ok || q < amount {
		return false, nil
	}
	r.inventory[productID] = q - amount
	return true, nil
}

func (r inventoryRepo) EnsureExists(_ context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inventory[productID]; !ok {
		r.inventory[productID] = 0
	}
	return nil
}

func (r inventoryRepo) SetQuantity(_ context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[productID] = quantity
	return nil
}

func (r inventoryRepo) LogMovement(_ context.Context, m *model.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, *m)
	return nil
}

func (r inventoryRepo) HasMovement(_ context.Context, productID, referenceType, referenceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.ProductID == productID && m.ReferenceType != nil && *m.ReferenceType == referenceType &&
			m.ReferenceID != nil && *m.ReferenceID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (r inventoryRepo) ListMovements(_ context.Context, f *inventorydto.MovementFilters) ([]model.InventoryMovement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.InventoryMovement
	for _, m := range r.movements {
		if f.ProductID == "" || m.ProductID == f.ProductID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

// sale.Repository

type saleRepo struct{ *memStore }

func (r saleRepo) Create(_ context.Context, sale *model.Sale) error {
	if err := r.fail("sale.Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales[sale.ID] = *sale
	return nil
}

func (r saleRepo) CreateDetail(_ context.Context, d *model.SalesDetail) error {
	if err := r.fail("sale.CreateDetail"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *d
	stored.ProductName = "" // not a stored column
	r.details = append(r.details, stored)
	return nil
}

func (r saleRepo) FindByID(_ context.Context, id string) (*model.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return nil, nil
	}
	r.attach(&s)
	return &s, nil
}

func (r saleRepo) FindAll(_ context.Context, f *dto.SaleFilters) ([]model.Sale, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Sale{}
	for _, s := range r.sales {
		if f.CustomerID != "" && (s.CustomerID == nil || *s.CustomerID != f.CustomerID) {
			continue
		}
		r.attach(&s)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.After(out[j].SaleDate) })
	total := len(out)
	if f.PageSize > 0 {
		start := min((max(f.Page, 1)-1)*f.PageSize, total)
		end := min(start+f.PageSize, total)
		out = out[start:end]
	}
	return out, total, nil
}

// attach is called with mu held.
func (r saleRepo) attach(s *model.Sale) {
	if s.CustomerID != nil {
		if c, ok := r.customers[*s.CustomerID]; ok {
			s.Customer = &c
		}
	}
	s.Details = []model.SalesDetail{}
	for _, d := range r.details {
		if d.SaleID == s.ID {
			d.ProductName = r.products[d.ProductID].Name
			s.Details = append(s.Details, d)
		}
	}
	sort.Slice(s.Details, func(i, j int) bool { return s.Details[i].LineNo < s.Details[j].LineNo })
}

// outbox.Repository

type outboxRepo struct{ *memStore }

func (r outboxRepo) Insert(_ context.Context, e *model.OutboxEvent) error {
	if err := r.fail("outbox.Insert"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbox = append(r.outbox, *e)
	return nil
}

func (r outboxRepo) FetchUnprocessed(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OutboxEvent
	for _, e := range r.outbox {
		if e.ProcessedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r outboxRepo) MarkProcessed(context.Context, string) error {
	return nil
}
