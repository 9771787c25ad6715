package usecase

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"store-assistant/internal/domain"
)

type fakeSettings struct {
	s   domain.Settings
	err error
}

func (f *fakeSettings) Load(context.Context) (domain.Settings, error) {
	return f.s, f.err
}

type fakeCatalog struct {
	products map[int64]domain.Product
	getErr   error
	listErr  error
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: map[int64]domain.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) ListPurchasable(_ context.Context, limit int) ([]domain.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Product, 0, len(f.products))
	for _, p := range f.products {
		if p.Purchasable() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeKnowledge struct {
	items []domain.KnowledgeItem
	err   error
}

func (f *fakeKnowledge) Latest(_ context.Context, limit int) ([]domain.KnowledgeItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

type fakeModel struct {
	replies  []string
	err      error
	requests []domain.CompletionRequest
}

func (f *fakeModel) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no model reply configured")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type fakeModelError struct {
	kind   string
	status int
}

func (e *fakeModelError) Error() string       { return "model failed: " + e.kind }
func (e *fakeModelError) FailureKind() string { return e.kind }
func (e *fakeModelError) HTTPStatusCode() int { return e.status }

type fakeDrafts struct {
	drafts  map[string]domain.Draft
	loadErr error
	saveErr error
	deleted []string
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: map[string]domain.Draft{}}
}

func (f *fakeDrafts) Load(_ context.Context, sessionID string) (*domain.Draft, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	d, ok := f.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeDrafts) Save(_ context.Context, d domain.Draft) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.drafts[d.SessionID] = d
	return nil
}

func (f *fakeDrafts) Delete(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	delete(f.drafts, sessionID)
	return nil
}

type fakeLedger struct {
	nextID    int64
	orders    map[int64]domain.Order
	totals    map[int64]domain.OrderTotals
	notes     map[int64][]string
	byKey     map[string]int64
	deleted   []int64
	findMiss  int
	createErr error
	saveErr   error
	noteErr   error
	findErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		nextID: 100,
		orders: map[int64]domain.Order{},
		totals: map[int64]domain.OrderTotals{},
		notes:  map[int64][]string{},
		byKey:  map[string]int64{},
	}
}

func (f *fakeLedger) CreatePending(_ context.Context, o domain.Order) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if o.IdempotencyKey != "" {
		if _, ok := f.byKey[o.IdempotencyKey]; ok {
			return 0, domain.ErrDuplicateOrder
		}
	}
	f.nextID++
	o.ID = f.nextID
	f.orders[o.ID] = o
	if o.IdempotencyKey != "" {
		f.byKey[o.IdempotencyKey] = o.ID
	}
	return o.ID, nil
}

func (f *fakeLedger) SaveTotals(_ context.Context, id int64, t domain.OrderTotals) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.totals[id] = t
	return nil
}

func (f *fakeLedger) AddNote(_ context.Context, id int64, note string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	f.notes[id] = append(f.notes[id], note)
	return nil
}

func (f *fakeLedger) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	if o, ok := f.orders[id]; ok && o.IdempotencyKey != "" {
		delete(f.byKey, o.IdempotencyKey)
	}
	delete(f.orders, id)
	delete(f.totals, id)
	return nil
}

func (f *fakeLedger) FindByIdempotencyKey(_ context.Context, key string) (*domain.OrderResult, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.findMiss > 0 {
		f.findMiss--
		return nil, nil
	}
	id, ok := f.byKey[key]
	if !ok {
		return nil, nil
	}
	t := f.totals[id]
	return &domain.OrderResult{
		OrderID:       id,
		Status:        domain.OrderStatusPending,
		Subtotal:      t.Subtotal,
		ShippingTotal: t.Shipping,
		Total:         t.Total,
		Currency:      f.orders[id].Currency,
	}, nil
}

type fakePlacer struct {
	res   domain.OrderResult
	err   error
	calls []PlaceOrderInput
}

func (f *fakePlacer) Place(_ context.Context, in PlaceOrderInput) (domain.OrderResult, error) {
	f.calls = append(f.calls, in)
	return f.res, f.err
}

func product(id int64, price domain.Money, name string) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     name,
		Price:    price,
		HasPrice: true,
		URL:      "https://shop.example/p/" + name,
		Status:   "publish",
		InStock:  true,
	}
}

func testSettings() domain.Settings {
	s := domain.DefaultSettings()
	s.APIKey = "sk-test"
	s.EnableOrderCreation = true
	return s
}

func fullCustomer() domain.CustomerInfo {
	return domain.CustomerInfo{
		Email:     "ana@example.com",
		Phone:     "+38640111222",
		FirstName: "Ana",
		LastName:  "Novak",
		Address1:  "Main Street 1",
		City:      "Ljubljana",
		Postcode:  "1000",
		Country:   "SI",
	}
}

func userMsg(text string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: text}
}

func assistantMsg(text string, ids ...int64) domain.Message {
	m := domain.Message{Role: domain.RoleAssistant, Content: text}
	for _, id := range ids {
		m.Products = append(m.Products, domain.ProductRef{ID: id})
	}
	return m
}

func expectError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}
