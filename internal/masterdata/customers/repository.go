package customers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, id int64, customer Customer) error
	ListGroups(ctx context.Context) ([]CustomerGroup, error)
	CreateGroup(ctx context.Context, group CustomerGroup) (CustomerGroup, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, name, COALESCE(group_id,0), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
is_wholesale, is_active, created_at, updated_at`

func scan(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.GroupID, &c.Email, &c.Phone, &c.Address,
		&c.IsWholesale, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0

	if filters.GroupID != nil {
		n++
		where += ` AND group_id = $` + strconv.Itoa(n)
		args = append(args, *filters.GroupID)
	}
	if filters.Search != "" {
		n++
		where += ` AND name ILIKE $` + strconv.Itoa(n)
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		n++
		where += ` AND is_active = $` + strconv.Itoa(n)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	query := `SELECT ` + columns + ` FROM customers` + where + ` ORDER BY name`
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Customer
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, c)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, customer Customer) (Customer, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `
INSERT INTO customers (name, group_id, email, phone, address, is_wholesale, is_active, created_at, updated_at)
VALUES ($1,NULLIF($2,0),NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$8)
RETURNING id`,
		customer.Name, customer.GroupID, customer.Email, customer.Phone, customer.Address,
		customer.IsWholesale, customer.IsActive, now).Scan(&customer.ID)
	if err != nil {
		return Customer{}, err
	}
	customer.CreatedAt = now
	customer.UpdatedAt = now
	return customer, nil
}

func (r *repository) Update(ctx context.Context, id int64, customer Customer) error {
	tag, err := r.db.Exec(ctx, `
UPDATE customers SET name=$1, group_id=NULLIF($2,0), email=NULLIF($3,''), phone=NULLIF($4,''),
  address=NULLIF($5,''), is_wholesale=$6, is_active=$7, updated_at=NOW()
WHERE id=$8`,
		customer.Name, customer.GroupID, customer.Email, customer.Phone, customer.Address,
		customer.IsWholesale, customer.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListGroups(ctx context.Context) ([]CustomerGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(description,'') FROM customer_groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []CustomerGroup
	for rows.Next() {
		var g CustomerGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *repository) CreateGroup(ctx context.Context, group CustomerGroup) (CustomerGroup, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO customer_groups (name, description) VALUES ($1, NULLIF($2,'')) RETURNING id`,
		group.Name, group.Description).Scan(&group.ID)
	if err != nil {
		return CustomerGroup{}, err
	}
	return group, nil
}
