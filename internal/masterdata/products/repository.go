package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	SetLastPurchasePrice(ctx context.Context, id int64, price float64) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, sku, name, COALESCE(description,''), COALESCE(category_id,0), COALESCE(supplier_id,0),
COALESCE(unit_of_measure,''), standard_cost, last_purchase_price, shop_price, field_price, wholesale_price,
reorder_level, requires_batch_number, requires_expiry_date, is_active, created_at, updated_at`

func scan(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.SupplierID,
		&p.UnitOfMeasure, &p.StandardCost, &p.LastPurchasePrice, &p.ShopPrice, &p.FieldPrice,
		&p.WholesalePrice, &p.ReorderLevel, &p.RequiresBatchNumber, &p.RequiresExpiryDate,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0

	if filters.CategoryID != nil {
		n++
		where += ` AND category_id = $` + strconv.Itoa(n)
		args = append(args, *filters.CategoryID)
	}
	if filters.SupplierID != nil {
		n++
		where += ` AND supplier_id = $` + strconv.Itoa(n)
		args = append(args, *filters.SupplierID)
	}
	if filters.Search != "" {
		n++
		where += ` AND (name ILIKE $` + strconv.Itoa(n) + ` OR sku ILIKE $` + strconv.Itoa(n) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		n++
		where += ` AND is_active = $` + strconv.Itoa(n)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	query := `SELECT ` + columns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Product
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (Product, error) {
	p, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `
INSERT INTO products (sku, name, description, category_id, supplier_id, unit_of_measure,
  standard_cost, last_purchase_price, shop_price, field_price, wholesale_price,
  reorder_level, requires_batch_number, requires_expiry_date, is_active, created_at, updated_at)
VALUES ($1,$2,NULLIF($3,''),NULLIF($4,0),NULLIF($5,0),NULLIF($6,''),$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)
RETURNING id`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.SupplierID,
		product.UnitOfMeasure, product.StandardCost, product.LastPurchasePrice, product.ShopPrice,
		product.FieldPrice, product.WholesalePrice, product.ReorderLevel,
		product.RequiresBatchNumber, product.RequiresExpiryDate, product.IsActive, now).Scan(&product.ID)
	if err != nil {
		return Product{}, mapUnique(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	_, err := r.db.Exec(ctx, `
UPDATE products SET name=$1, description=NULLIF($2,''), category_id=NULLIF($3,0), supplier_id=NULLIF($4,0),
  unit_of_measure=NULLIF($5,''), standard_cost=$6, shop_price=$7, field_price=$8, wholesale_price=$9,
  reorder_level=$10, requires_batch_number=$11, requires_expiry_date=$12, is_active=$13, updated_at=NOW()
WHERE id=$14`,
		product.Name, product.Description, product.CategoryID, product.SupplierID,
		product.UnitOfMeasure, product.StandardCost, product.ShopPrice, product.FieldPrice,
		product.WholesalePrice, product.ReorderLevel, product.RequiresBatchNumber,
		product.RequiresExpiryDate, product.IsActive, id)
	return err
}

// SetLastPurchasePrice records the cost observed on the latest goods
// receipt posting.
func (r *repository) SetLastPurchasePrice(ctx context.Context, id int64, price float64) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET last_purchase_price=$1, updated_at=NOW() WHERE id=$2`, price, id)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "name":
		return "name " + dir
	case "shop_price":
		return "shop_price " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
