package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"store-assistant/internal/domain"
)

const productColumns = `id, name, description, price_cents, url, image_url, status, in_stock`

type Catalog struct {
	db      *sql.DB
	dialect Dialect
}

func NewCatalog(db *sql.DB, dialect Dialect) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("commerce: db must not be nil")
	}
	return &Catalog{db: db, dialect: dialect}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p     domain.Product
		price sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.URL, &p.ImageURL, &p.Status, &p.InStock); err != nil {
		return domain.Product{}, err
	}
	if price.Valid {
		p.Price, p.HasPrice = domain.Money(price.Int64), true
	}
	return p, nil
}

// GetByID returns (nil, nil) for unknown ids.
func (c *Catalog) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := c.db.QueryRowContext(ctx, c.dialect.rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commerce: get product %d: %w", id, err)
	}
	return &p, nil
}

// ListPurchasable returns published, priced, in-stock products by id.
func (c *Catalog) ListPurchasable(ctx context.Context, limit int) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, c.dialect.rebind(`SELECT `+productColumns+` FROM products
		WHERE status = 'publish' AND in_stock AND price_cents IS NOT NULL
		ORDER BY id LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("commerce: list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("commerce: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type KnowledgeBase struct {
	db      *sql.DB
	dialect Dialect
}

func NewKnowledgeBase(db *sql.DB, dialect Dialect) (*KnowledgeBase, error) {
	if db == nil {
		return nil, errors.New("commerce: db must not be nil")
	}
	return &KnowledgeBase{db: db, dialect: dialect}, nil
}

// Latest returns the newest published items first.
func (k *KnowledgeBase) Latest(ctx context.Context, limit int) ([]domain.KnowledgeItem, error) {
	rows, err := k.db.QueryContext(ctx, k.dialect.rebind(`SELECT id, title, body, published_at FROM knowledge_items
		WHERE status = 'publish'
		ORDER BY published_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("commerce: list knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.KnowledgeItem
	for rows.Next() {
		var item domain.KnowledgeItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Body, &item.PublishedAt); err != nil {
			return nil, fmt.Errorf("commerce: scan knowledge: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
