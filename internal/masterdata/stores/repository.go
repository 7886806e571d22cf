package stores

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
	List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error)
	Get(ctx context.Context, code string) (Store, error)
	Create(ctx context.Context, store Store) (Store, error)
	Update(ctx context.Context, code string, store Store) error
	Delete(ctx context.Context, code string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const columns = `code, name, type, COALESCE(address,''), COALESCE(phone,''),
cash_prefix, layby_prefix, field_prefix, is_active, created_at, updated_at`

func scan(row pgx.Row) (Store, error) {
	var s Store
	err := row.Scan(&s.Code, &s.Name, &s.Type, &s.Address, &s.Phone,
		&s.CashPrefix, &s.LaybyPrefix, &s.FieldPrefix, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Store, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0

	if filters.StoreType != "" {
		n++
		where += ` AND type = $` + strconv.Itoa(n)
		args = append(args, filters.StoreType)
	}
	if filters.Search != "" {
		n++
		where += ` AND (name ILIKE $` + strconv.Itoa(n) + ` OR code ILIKE $` + strconv.Itoa(n) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		n++
		where += ` AND is_active = $` + strconv.Itoa(n)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stores`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit < 1 {
		limit = shared.DefaultLimit
	}
	query := `SELECT ` + columns + ` FROM stores` + where + ` ORDER BY code`
	query += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Store
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, code string) (Store, error) {
	s, err := scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM stores WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, store Store) (Store, error) {
	now := time.Now()
	_, err := r.db.Exec(ctx, `
INSERT INTO stores (code, name, type, address, phone, cash_prefix, layby_prefix, field_prefix, is_active, created_at, updated_at)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9,$10,$10)`,
		store.Code, store.Name, string(store.Type), store.Address, store.Phone,
		store.CashPrefix, store.LaybyPrefix, store.FieldPrefix, store.IsActive, now)
	if err != nil {
		return Store{}, mapUnique(err)
	}
	store.CreatedAt = now
	store.UpdatedAt = now
	return store, nil
}

func (r *repository) Update(ctx context.Context, code string, store Store) error {
	tag, err := r.db.Exec(ctx, `
UPDATE stores SET name=$1, type=$2, address=NULLIF($3,''), phone=NULLIF($4,''),
  cash_prefix=$5, layby_prefix=$6, field_prefix=$7, is_active=$8, updated_at=NOW()
WHERE code=$9`,
		store.Name, string(store.Type), store.Address, store.Phone,
		store.CashPrefix, store.LaybyPrefix, store.FieldPrefix, store.IsActive, code)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, code string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM stores WHERE code = $1`, code)
	return err
}

// mapUnique surfaces prefix and code collisions: each numbering prefix
// is globally unique across stores.
func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrDuplicate
	}
	return err
}
