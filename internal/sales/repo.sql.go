package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-retail/atlas-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const invoiceColumns = `id, number, customer_id, store_id, type, status, invoice_date, due_date,
COALESCE(salesperson_id,0), COALESCE(notes,''), COALESCE(coupon_code,''), created_by,
subtotal, total_product_discount_amount, invoice_discount_amount, taxable_amount, overall_tax_rate,
tax_amount, shipping_charges, other_charges, grand_total, amount_paid, balance_due, created_at, updated_at`

func scanInvoice(row pgx.Row) (SalesInvoice, error) {
	var inv SalesInvoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.StoreID, &inv.Type, &inv.Status,
		&inv.InvoiceDate, &inv.DueDate, &inv.SalespersonID, &inv.Notes, &inv.CouponCode, &inv.CreatedBy,
		&inv.Subtotal, &inv.TotalProductDiscountAmount, &inv.InvoiceDiscountAmount, &inv.TaxableAmount,
		&inv.OverallTaxRate, &inv.TaxAmount, &inv.ShippingCharges, &inv.OtherCharges,
		&inv.GrandTotal, &inv.AmountPaid, &inv.BalanceDue, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

const lineQuery = `
SELECT id, invoice_id, product_id, COALESCE(description,''), COALESCE(unit_of_measure,''), quantity,
       unit_price_before_discount, unit_price_after_discount, discount_id,
       line_subtotal, line_tax_rate, line_tax_amount, line_total, cost_price_at_sale
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`

func scanLines(rows pgx.Rows) ([]InvoiceLine, error) {
	defer rows.Close()
	var lines []InvoiceLine
	for rows.Next() {
		var line InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.Description,
			&line.UnitOfMeasure, &line.Quantity, &line.UnitPriceBeforeDiscount, &line.UnitPriceAfterDiscount,
			&line.DiscountID, &line.LineSubtotal, &line.LineTaxRate, &line.LineTaxAmount,
			&line.LineTotal, &line.CostPriceAtSale); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetInvoice returns an invoice and its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesInvoice{}, nil, ErrNotFound
		}
		return SalesInvoice{}, nil, err
	}
	rows, err := r.pool.Query(ctx, lineQuery, id)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	return inv, lines, nil
}

// ListInvoices lists invoices by filter.
func (r *Repository) ListInvoices(ctx context.Context, filters ListFilters) ([]SalesInvoice, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+invoiceColumns+` FROM sales_invoices
WHERE ($1 = '' OR status = $1)
  AND ($2 = '' OR type = $2)
  AND ($3 = 0 OR customer_id = $3)
  AND ($4 = '' OR store_id = $4)
ORDER BY id DESC LIMIT $5 OFFSET $6`,
		string(filters.Status), string(filters.Type), filters.CustomerID, filters.StoreID, limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []SalesInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Transactional writes

func (t *txRepo) CreateInvoice(ctx context.Context, inv SalesInvoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO sales_invoices (number, customer_id, store_id, type, status, invoice_date, due_date,
  salesperson_id, notes, coupon_code, created_by,
  subtotal, total_product_discount_amount, invoice_discount_amount, taxable_amount, overall_tax_rate,
  tax_amount, shipping_charges, other_charges, grand_total, amount_paid, balance_due, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,0),NULLIF($9,''),NULLIF($10,''),$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,NOW(),NOW())
RETURNING id`,
		inv.Number, inv.CustomerID, inv.StoreID, string(inv.Type), string(inv.Status), inv.InvoiceDate, inv.DueDate,
		inv.SalespersonID, inv.Notes, inv.CouponCode, inv.CreatedBy,
		inv.Subtotal, inv.TotalProductDiscountAmount, inv.InvoiceDiscountAmount, inv.TaxableAmount, inv.OverallTaxRate,
		inv.TaxAmount, inv.ShippingCharges, inv.OtherCharges, inv.GrandTotal, inv.AmountPaid, inv.BalanceDue).Scan(&id)
	return id, err
}

func (t *txRepo) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO invoice_lines (invoice_id, product_id, description, unit_of_measure, quantity,
  unit_price_before_discount, unit_price_after_discount, discount_id,
  line_subtotal, line_tax_rate, line_tax_amount, line_total, cost_price_at_sale)
VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id`,
		line.InvoiceID, line.ProductID, line.Description, line.UnitOfMeasure, line.Quantity,
		line.UnitPriceBeforeDiscount, line.UnitPriceAfterDiscount, line.DiscountID,
		line.LineSubtotal, line.LineTaxRate, line.LineTaxAmount, line.LineTotal, line.CostPriceAtSale).Scan(&id)
	return id, err
}

func (t *txRepo) DeleteLines(ctx context.Context, invoiceID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, invoiceID)
	return err
}

func (t *txRepo) UpdateTotals(ctx context.Context, inv SalesInvoice) error {
	_, err := t.tx.Exec(ctx, `
UPDATE sales_invoices SET subtotal=$2, total_product_discount_amount=$3, invoice_discount_amount=$4,
  taxable_amount=$5, overall_tax_rate=$6, tax_amount=$7, shipping_charges=$8, other_charges=$9,
  grand_total=$10, balance_due=$11, updated_at=NOW()
WHERE id=$1`, inv.ID, inv.Subtotal, inv.TotalProductDiscountAmount, inv.InvoiceDiscountAmount,
		inv.TaxableAmount, inv.OverallTaxRate, inv.TaxAmount, inv.ShippingCharges, inv.OtherCharges,
		inv.GrandTotal, inv.BalanceDue)
	return err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_invoices SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetInvoiceForUpdate loads the invoice and lines with a row lock so
// concurrent payments against the same invoice serialise.
func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM sales_invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesInvoice{}, nil, ErrNotFound
		}
		return SalesInvoice{}, nil, err
	}
	rows, err := t.tx.Query(ctx, lineQuery, id)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	lines, err := scanLines(rows)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	return inv, lines, nil
}

func (t *txRepo) UpdatePayment(ctx context.Context, id int64, amountPaid, balanceDue float64, status InvoiceStatus) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE sales_invoices SET amount_paid=$2, balance_due=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		id, amountPaid, balanceDue, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
