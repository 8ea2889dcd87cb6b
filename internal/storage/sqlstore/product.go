// internal/storage/sqlstore/product.go
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/valpere/PriceScrapexter/internal/domain"
)

const productColumns = `id, source_id, name, description, image_url, product_url,
	current_price, original_price, currency, is_available, is_favorite, notes,
	first_seen_at, last_updated_at`

type productRow struct {
	ID            int64               `db:"id"`
	SourceID      int64               `db:"source_id"`
	Name          string              `db:"name"`
	Description   string              `db:"description"`
	ImageURL      string              `db:"image_url"`
	ProductURL    string              `db:"product_url"`
	CurrentPrice  decimal.NullDecimal `db:"current_price"`
	OriginalPrice decimal.NullDecimal `db:"original_price"`
	Currency      string              `db:"currency"`
	IsAvailable   bool                `db:"is_available"`
	IsFavorite    bool                `db:"is_favorite"`
	Notes         string              `db:"notes"`
	FirstSeenAt   time.Time           `db:"first_seen_at"`
	LastUpdatedAt time.Time           `db:"last_updated_at"`
}

func (r productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:            r.ID,
		SourceID:      r.SourceID,
		Name:          r.Name,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		ProductURL:    r.ProductURL,
		CurrentPrice:  r.CurrentPrice,
		OriginalPrice: r.OriginalPrice,
		Currency:      r.Currency,
		IsAvailable:   r.IsAvailable,
		IsFavorite:    r.IsFavorite,
		Notes:         r.Notes,
		FirstSeenAt:   r.FirstSeenAt,
		LastUpdatedAt: r.LastUpdatedAt,
	}
}

type ProductStore struct {
	db *sqlx.DB
}

func NewProductStore(db *sqlx.DB) *ProductStore {
	return &ProductStore{db: db}
}

// FindByURL looks a product up by its fingerprint (source, product URL).
func (s *ProductStore) FindByURL(ctx context.Context, sourceID int64, productURL string) (*domain.Product, error) {
	return s.get(ctx, `SELECT `+productColumns+` FROM products WHERE source_id = ? AND product_url = ?`, sourceID, productURL)
}

func (s *ProductStore) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return s.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
}

func (s *ProductStore) get(ctx context.Context, query string, args ...interface{}) (*domain.Product, error) {
	exec := GetExecutor(ctx, s.db)
	var row productRow
	err := sqlx.GetContext(ctx, exec, &row, exec.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dbError("get product", err)
	}
	return row.toDomain(), nil
}

func (s *ProductStore) ListBySource(ctx context.Context, sourceID int64) ([]domain.Product, error) {
	exec := GetExecutor(ctx, s.db)
	var rows []productRow
	err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(`SELECT `+productColumns+` FROM products WHERE source_id = ? ORDER BY id`), sourceID)
	if err != nil {
		return nil, dbError("list products", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

// Create inserts p and sets its ID.
func (s *ProductStore) Create(ctx context.Context, p *domain.Product) error {
	p.FirstSeenAt = dbTime(p.FirstSeenAt)
	p.LastUpdatedAt = dbTime(p.LastUpdatedAt)

	exec := GetExecutor(ctx, s.db)
	id, err := insert(ctx, exec, `
		INSERT INTO products (
			source_id, name, description, image_url, product_url,
			current_price, original_price, currency, is_available, is_favorite, notes,
			first_seen_at, last_updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SourceID, p.Name, p.Description, p.ImageURL, p.ProductURL,
		p.CurrentPrice, p.OriginalPrice, p.Currency, p.IsAvailable, p.IsFavorite, p.Notes,
		p.FirstSeenAt, p.LastUpdatedAt,
	)
	if err != nil {
		return dbError("create product", err)
	}
	p.ID = id
	return nil
}

// Update writes the scraped and user-owned fields of p.
func (s *ProductStore) Update(ctx context.Context, p *domain.Product) error {
	p.LastUpdatedAt = dbTime(p.LastUpdatedAt)

	exec := GetExecutor(ctx, s.db)
	_, err := exec.ExecContext(ctx, exec.Rebind(`
		UPDATE products SET
			name = ?, description = ?, image_url = ?, current_price = ?, original_price = ?,
			currency = ?, is_available = ?, is_favorite = ?, notes = ?, last_updated_at = ?
		WHERE id = ?`),
		p.Name, p.Description, p.ImageURL, p.CurrentPrice, p.OriginalPrice,
		p.Currency, p.IsAvailable, p.IsFavorite, p.Notes, p.LastUpdatedAt,
		p.ID,
	)
	if err != nil {
		return dbError("update product", err)
	}
	return nil
}

// MarkUnavailableExcept flags every available product of a source whose id
// is not in seen as unavailable and returns how many changed.
func (s *ProductStore) MarkUnavailableExcept(ctx context.Context, sourceID int64, seen []int64, now time.Time) (int64, error) {
	query := `UPDATE products SET is_available = ?, last_updated_at = ? WHERE source_id = ? AND is_available = ?`
	args := []interface{}{false, dbTime(now), sourceID, true}
	if len(seen) > 0 {
		var err error
		query, args, err = sqlx.In(query+` AND id NOT IN (?)`, false, dbTime(now), sourceID, true, seen)
		if err != nil {
			return 0, dbError("mark unavailable", err)
		}
	}

	exec := GetExecutor(ctx, s.db)
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, dbError("mark unavailable", err)
	}
	return res.RowsAffected()
}

type PriceHistoryStore struct {
	db *sqlx.DB
}

func NewPriceHistoryStore(db *sqlx.DB) *PriceHistoryStore {
	return &PriceHistoryStore{db: db}
}

// Append adds one history row. History is never updated or deleted
// directly; rows go away only with their product.
func (s *PriceHistoryStore) Append(ctx context.Context, entry *domain.PriceHistory) error {
	entry.RecordedAt = dbTime(entry.RecordedAt)

	exec := GetExecutor(ctx, s.db)
	id, err := insert(ctx, exec, `INSERT INTO price_history (product_id, price, recorded_at) VALUES (?, ?, ?)`,
		entry.ProductID, entry.Price, entry.RecordedAt)
	if err != nil {
		return dbError("append price history", err)
	}
	entry.ID = id
	return nil
}

// ListByProduct returns a product's history, oldest first.
func (s *PriceHistoryStore) ListByProduct(ctx context.Context, productID int64) ([]domain.PriceHistory, error) {
	exec := GetExecutor(ctx, s.db)
	var rows []struct {
		ID         int64           `db:"id"`
		ProductID  int64           `db:"product_id"`
		Price      decimal.Decimal `db:"price"`
		RecordedAt time.Time       `db:"recorded_at"`
	}
	err := sqlx.SelectContext(ctx, exec, &rows, exec.Rebind(`
		SELECT id, product_id, price, recorded_at FROM price_history
		WHERE product_id = ? ORDER BY recorded_at, id`), productID)
	if err != nil {
		return nil, dbError("list price history", err)
	}
	out := make([]domain.PriceHistory, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PriceHistory{ID: r.ID, ProductID: r.ProductID, Price: r.Price, RecordedAt: r.RecordedAt})
	}
	return out, nil
}
