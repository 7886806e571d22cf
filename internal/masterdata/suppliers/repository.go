package suppliers

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
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, id int64, supplier Supplier) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `id, name, COALESCE(contact,''), COALESCE(email,''), COALESCE(phone,''), COALESCE(address,''),
is_active, created_at, updated_at`

func scan(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.Contact, &s.Email, &s.Phone, &s.Address,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0

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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	query := `SELECT ` + columns + ` FROM suppliers` + where + ` ORDER BY name`
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Supplier
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `
INSERT INTO suppliers (name, contact, email, phone, address, is_active, created_at, updated_at)
VALUES ($1,NULLIF($2,''),NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,$7)
RETURNING id`,
		supplier.Name, supplier.Contact, supplier.Email, supplier.Phone, supplier.Address,
		supplier.IsActive, now).Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, err
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repository) Update(ctx context.Context, id int64, supplier Supplier) error {
	tag, err := r.db.Exec(ctx, `
UPDATE suppliers SET name=$1, contact=NULLIF($2,''), email=NULLIF($3,''), phone=NULLIF($4,''),
  address=NULLIF($5,''), is_active=$6, updated_at=NOW()
WHERE id=$7`,
		supplier.Name, supplier.Contact, supplier.Email, supplier.Phone, supplier.Address,
		supplier.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
