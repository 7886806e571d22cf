package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for discount rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCandidates loads every product discount binding for a product with
// its parent rule and scoping rows in one round trip.
func (r *Repository) ListCandidates(ctx context.Context, productID int64) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
SELECT d.id, d.name, d.kind, d.value, d.starts_at, d.ends_at,
       COALESCE(d.coupon_code, ''), d.active, d.created_at, d.updated_at,
       pd.id, pd.min_qty, pd.max_qty, pd.priority, pd.cumulative,
       COALESCE((SELECT array_agg(ds.store_id) FROM discount_stores ds WHERE ds.discount_id = d.id), '{}'),
       COALESCE((SELECT array_agg(dg.customer_group_id) FROM discount_customer_groups dg WHERE dg.discount_id = d.id), '{}')
FROM product_discounts pd
JOIN discounts d ON d.id = pd.discount_id
WHERE pd.product_id = $1
ORDER BY pd.priority DESC, d.id DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		c.Rule.ProductID = productID
		if err := rows.Scan(
			&c.Discount.ID, &c.Discount.Name, &c.Discount.Kind, &c.Discount.Value,
			&c.Discount.StartsAt, &c.Discount.EndsAt, &c.Discount.CouponCode,
			&c.Discount.Active, &c.Discount.CreatedAt, &c.Discount.UpdatedAt,
			&c.Rule.ID, &c.Rule.MinQty, &c.Rule.MaxQty, &c.Rule.Priority, &c.Rule.Cumulative,
			&c.StoreIDs, &c.CustomerGroupIDs,
		); err != nil {
			return nil, err
		}
		c.Rule.DiscountID = c.Discount.ID
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// CreateDiscount inserts a discount header with its scoping rows.
func (r *Repository) CreateDiscount(ctx context.Context, d Discount, storeIDs []string, groupIDs []int64) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO discounts (name, kind, value, starts_at, ends_at, coupon_code, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NOW(), NOW())
RETURNING id`, d.Name, string(d.Kind), d.Value, d.StartsAt, d.EndsAt, d.CouponCode, d.Active).Scan(&id)
	if err != nil {
		return 0, err
	}
	for _, storeID := range storeIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO discount_stores (discount_id, store_id) VALUES ($1, $2)`, id, storeID); err != nil {
			return 0, err
		}
	}
	for _, groupID := range groupIDs {
		if _, err := tx.Exec(ctx, `INSERT INTO discount_customer_groups (discount_id, customer_group_id) VALUES ($1, $2)`, id, groupID); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit(ctx)
}

// AttachProduct binds a discount to a product with a quantity band.
func (r *Repository) AttachProduct(ctx context.Context, pd ProductDiscount) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO product_discounts (discount_id, product_id, min_qty, max_qty, priority, cumulative)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, pd.DiscountID, pd.ProductID, pd.MinQty, pd.MaxQty, pd.Priority, pd.Cumulative).Scan(&id)
	return id, err
}

// GetDiscount loads one discount header.
func (r *Repository) GetDiscount(ctx context.Context, id int64) (Discount, error) {
	var d Discount
	err := r.pool.QueryRow(ctx, `
SELECT id, name, kind, value, starts_at, ends_at, COALESCE(coupon_code, ''), active, created_at, updated_at
FROM discounts WHERE id = $1`, id).Scan(
		&d.ID, &d.Name, &d.Kind, &d.Value, &d.StartsAt, &d.EndsAt,
		&d.CouponCode, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Discount{}, ErrNotFound
		}
		return Discount{}, err
	}
	return d, nil
}

// SetActive toggles a discount without touching its scoping rows.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE discounts SET active = $2, updated_at = $3 WHERE id = $1`, id, active, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDiscount removes a discount; scoping and product rows cascade.
func (r *Repository) DeleteDiscount(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
