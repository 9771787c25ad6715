package commerce

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"store-assistant/internal/domain"
)

// Ledger stores chat orders.
type Ledger struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

func NewLedger(db *sql.DB, dialect Dialect) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("commerce: db must not be nil")
	}
	return &Ledger{db: db, dialect: dialect, now: time.Now}, nil
}

type addressJSON struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func encodeAddress(a domain.Address) (string, error) {
	b, err := json.Marshal(addressJSON(a))
	return string(b), err
}

func nullableKey(key string) any {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return key
}

// CreatePending writes the order header and its lines in one transaction.
// A reused idempotency key yields domain.ErrDuplicateOrder.
func (l *Ledger) CreatePending(ctx context.Context, o domain.Order) (id int64, err error) {
	billing, err := encodeAddress(o.Billing)
	if err != nil {
		return 0, fmt.Errorf("commerce: encode billing: %w", err)
	}
	shipping, err := encodeAddress(o.Shipping)
	if err != nil {
		return 0, fmt.Errorf("commerce: encode shipping: %w", err)
	}
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("commerce: begin order: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, l.dialect.rebind(`INSERT INTO orders
		(status, customer_id, idempotency_key, billing, shipping, shipping_method_id, shipping_title, shipping_cost, payment_method, payment_title, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		o.Status, o.CustomerID, nullableKey(o.IdempotencyKey), billing, shipping,
		o.ShippingLine.MethodID, o.ShippingLine.Title, int64(o.ShippingLine.Cost),
		o.PaymentMethod, o.PaymentTitle, o.Currency, createdAt.UTC(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateOrder
		}
		return 0, fmt.Errorf("commerce: insert order: %w", err)
	}

	insertLine := l.dialect.rebind(`INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, total) VALUES (?, ?, ?, ?, ?, ?)`)
	for _, line := range o.Lines {
		if _, err = tx.ExecContext(ctx, insertLine, id, line.ProductID, line.Name, line.Quantity, int64(line.UnitPrice), int64(line.Total)); err != nil {
			return 0, fmt.Errorf("commerce: insert order item %d: %w", line.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrDuplicateOrder
		}
		return 0, fmt.Errorf("commerce: commit order: %w", err)
	}
	return id, nil
}

func (l *Ledger) SaveTotals(ctx context.Context, orderID int64, t domain.OrderTotals) error {
	res, err := l.db.ExecContext(ctx, l.dialect.rebind(`UPDATE orders SET subtotal = ?, shipping_total = ?, total = ? WHERE id = ?`),
		int64(t.Subtotal), int64(t.Shipping), int64(t.Total), orderID)
	if err != nil {
		return fmt.Errorf("commerce: save totals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commerce: save totals: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("commerce: save totals: order %d not found", orderID)
	}
	return nil
}

func (l *Ledger) AddNote(ctx context.Context, orderID int64, note string) error {
	_, err := l.db.ExecContext(ctx, l.dialect.rebind(`INSERT INTO order_notes (order_id, note, created_at) VALUES (?, ?, ?)`),
		orderID, note, l.now().UTC())
	if err != nil {
		return fmt.Errorf("commerce: add note: %w", err)
	}
	return nil
}

// Delete removes an order with its lines and notes.
func (l *Ledger) Delete(ctx context.Context, orderID int64) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commerce: begin delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, q := range []string{
		`DELETE FROM order_notes WHERE order_id = ?`,
		`DELETE FROM order_items WHERE order_id = ?`,
		`DELETE FROM orders WHERE id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, l.dialect.rebind(q), orderID); err != nil {
			return fmt.Errorf("commerce: delete order %d: %w", orderID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commerce: commit delete: %w", err)
	}
	return nil
}

// FindByIdempotencyKey returns (nil, nil) when no order used key.
func (l *Ledger) FindByIdempotencyKey(ctx context.Context, key string) (*domain.OrderResult, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	var (
		r                         domain.OrderResult
		subtotal, shipping, total int64
	)
	err := l.db.QueryRowContext(ctx, l.dialect.rebind(`SELECT id, status, subtotal, shipping_total, total, currency FROM orders WHERE idempotency_key = ?`), key).
		Scan(&r.OrderID, &r.Status, &subtotal, &shipping, &total, &r.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commerce: find order by key: %w", err)
	}
	r.Subtotal, r.ShippingTotal, r.Total = domain.Money(subtotal), domain.Money(shipping), domain.Money(total)
	return &r, nil
}
