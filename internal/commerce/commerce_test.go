package commerce

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"store-assistant/internal/domain"
)

var productCols = []string{"id", "name", "description", "price_cents", "url", "image_url", "status", "in_stock"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func sampleOrder() domain.Order {
	return domain.Order{
		Status:         domain.OrderStatusPending,
		IdempotencyKey: "checkout:abc",
		Billing:        domain.Address{FirstName: "Ana", Address1: "Main Street 1", City: "Ljubljana", Postcode: "1000", Country: "SI", Email: "ana@example.com"},
		Shipping:       domain.Address{FirstName: "Ana", Address1: "Main Street 1", City: "Ljubljana", Postcode: "1000", Country: "SI"},
		Lines: []domain.LineItem{
			{ProductID: 7, Name: "Tea", Quantity: 2, UnitPrice: 1250},
		},
		ShippingLine:  domain.ShippingLine{MethodID: "flat_rate", Title: "Flat rate", Cost: 500},
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentTitle:  domain.PaymentMethodCODTitle,
		Currency:      "EUR",
		CreatedAt:     time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	require.Equal(t, Postgres, d)
	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	require.Equal(t, SQLite, d)
	_, err = ParseDialect("mysql")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	require.Equal(t, "a = $1 AND b = $2", Postgres.rebind("a = ? AND b = ?"))
	require.Equal(t, "a = ? AND b = ?", SQLite.rebind("a = ? AND b = ?"))
}

func TestCatalog_GetByID(t *testing.T) {
	db, mock := newMock(t)
	c, err := NewCatalog(db, Postgres)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(7, "Tea", "Green", 1250, "https://shop/tea", "", "publish", true))
	p, err := c.GetByID(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Tea", p.Name)
	require.True(t, p.HasPrice)
	require.Equal(t, domain.Money(1250), p.Price)
	require.True(t, p.Purchasable())

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(8, "Gift", "", nil, "", "", "publish", true))
	p, err = c.GetByID(context.Background(), 8)
	require.NoError(t, err)
	require.False(t, p.HasPrice)
	require.False(t, p.Purchasable())

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(productCols))
	p, err = c.GetByID(context.Background(), 9)
	require.NoError(t, err)
	require.Nil(t, p)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs(int64(10)).
		WillReturnError(errors.New("conn reset"))
	_, err = c.GetByID(context.Background(), 10)
	require.ErrorContains(t, err, "conn reset")
}

func TestCatalog_ListPurchasable(t *testing.T) {
	db, mock := newMock(t)
	c, _ := NewCatalog(db, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id LIMIT $1")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, "A", "", 100, "", "", "publish", true).
			AddRow(2, "B", "", 200, "", "", "publish", true))
	out, err := c.ListPurchasable(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(2), out[1].ID)
}

func TestKnowledgeBase_Latest(t *testing.T) {
	db, mock := newMock(t)
	k, err := NewKnowledgeBase(db, Postgres)
	require.NoError(t, err)

	ts := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY published_at DESC, id DESC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body", "published_at"}).
			AddRow(3, "Shipping", "We ship in 2 days.", ts))
	items, err := k.Latest(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, []domain.KnowledgeItem{{ID: 3, Title: "Shipping", Body: "We ship in 2 days.", PublishedAt: ts}}, items)
}

func TestLedger_CreatePending(t *testing.T) {
	db, mock := newMock(t)
	l, err := NewLedger(db, Postgres)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs("pending", int64(0), "checkout:abc", sqlmock.AnyArg(), sqlmock.AnyArg(), "flat_rate", "Flat rate", int64(500), "cod", "Cash on Delivery", "EUR", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(41))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, total) VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs(int64(41), int64(7), "Tea", 2, int64(1250), int64(0)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := l.CreatePending(context.Background(), sampleOrder())
	require.NoError(t, err)
	require.Equal(t, int64(41), id)
}

func TestLedger_CreatePending_DuplicateKey(t *testing.T) {
	db, mock := newMock(t)
	l, _ := NewLedger(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := l.CreatePending(context.Background(), sampleOrder())
	require.ErrorIs(t, err, domain.ErrDuplicateOrder)
}

func TestLedger_CreatePending_LineFailureRollsBack(t *testing.T) {
	db, mock := newMock(t)
	l, _ := NewLedger(db, Postgres)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := l.CreatePending(context.Background(), sampleOrder())
	require.ErrorContains(t, err, "disk full")
}

func TestLedger_SaveTotals(t *testing.T) {
	db, mock := newMock(t)
	l, _ := NewLedger(db, Postgres)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET subtotal = $1, shipping_total = $2, total = $3 WHERE id = $4")).
		WithArgs(int64(2500), int64(500), int64(3000), int64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, l.SaveTotals(context.Background(), 41, domain.OrderTotals{Subtotal: 2500, Shipping: 500, Total: 3000}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorContains(t, l.SaveTotals(context.Background(), 42, domain.OrderTotals{}), "not found")
}

func TestLedger_AddNoteAndDelete(t *testing.T) {
	db, mock := newMock(t)
	l, _ := NewLedger(db, Postgres)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_notes (order_id, note, created_at) VALUES ($1, $2, $3)")).
		WithArgs(int64(41), "hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, l.AddNote(context.Background(), 41, "hello"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_notes WHERE order_id = $1")).WithArgs(int64(41)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items WHERE order_id = $1")).WithArgs(int64(41)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1")).WithArgs(int64(41)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, l.Delete(context.Background(), 41))
}

func TestLedger_FindByIdempotencyKey(t *testing.T) {
	db, mock := newMock(t)
	l, _ := NewLedger(db, Postgres)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE idempotency_key = $1")).
		WithArgs("checkout:abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subtotal", "shipping_total", "total", "currency"}).
			AddRow(41, "pending", 2500, 500, 3000, "EUR"))
	r, err := l.FindByIdempotencyKey(context.Background(), "checkout:abc")
	require.NoError(t, err)
	require.Equal(t, &domain.OrderResult{OrderID: 41, Status: "pending", Subtotal: 2500, ShippingTotal: 500, Total: 3000, Currency: "EUR"}, r)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE idempotency_key = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "subtotal", "shipping_total", "total", "currency"}))
	r, err = l.FindByIdempotencyKey(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, r)

	r, err = l.FindByIdempotencyKey(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestNewStores_NilDB(t *testing.T) {
	_, err := NewCatalog(nil, Postgres)
	require.Error(t, err)
	_, err = NewKnowledgeBase(nil, Postgres)
	require.Error(t, err)
	_, err = NewLedger(nil, Postgres)
	require.Error(t, err)
}
