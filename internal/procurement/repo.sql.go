package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-retail/atlas-erp/internal/platform/db"
	"github.com/atlas-retail/atlas-erp/internal/shared"
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

const poColumns = `id, number, supplier_id, store_id, status, order_date, expected_delivery_date,
COALESCE(shipping_address,''), COALESCE(billing_address,''), COALESCE(notes,''),
created_by, COALESCE(approved_by,0), approval_date,
subtotal, tax_amount, shipping_cost, other_charges, total_amount, created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.StoreID, &po.Status, &po.OrderDate,
		&po.ExpectedDeliveryDate, &po.ShippingAddress, &po.BillingAddress, &po.Notes,
		&po.CreatedBy, &po.ApprovedBy, &po.ApprovalDate,
		&po.Subtotal, &po.TaxAmount, &po.ShippingCost, &po.OtherCharges, &po.TotalAmount,
		&po.CreatedAt, &po.UpdatedAt)
	return po, err
}

// GetPO returns a purchase order and its lines.
func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	lines, err := r.poLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	return po, lines, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) poLines(ctx context.Context, q querier, poID int64) ([]POLine, error) {
	rows, err := q.Query(ctx, `
SELECT id, po_id, product_id, COALESCE(description,''), quantity_ordered, COALESCE(unit_of_measure,''),
       unit_price, line_total, quantity_received, expected_delivery_date, COALESCE(notes,''), version
FROM po_lines WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ProductID, &line.Description,
			&line.QuantityOrdered, &line.UnitOfMeasure, &line.UnitPrice, &line.LineTotal,
			&line.QuantityReceived, &line.ExpectedDeliveryDate, &line.Notes, &line.Version); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// GetGRN returns a goods receipt and its lines.
func (r *Repository) GetGRN(ctx context.Context, id int64) (GoodsReceipt, []GRNLine, error) {
	var grn GoodsReceipt
	err := r.pool.QueryRow(ctx, `
SELECT id, number, po_id, COALESCE(supplier_id,0), store_id, status, receipt_date,
       COALESCE(supplier_invoice_no,''), COALESCE(received_by,0), COALESCE(notes,''), created_at, updated_at
FROM goods_receipts WHERE id=$1`, id).Scan(
		&grn.ID, &grn.Number, &grn.POID, &grn.SupplierID, &grn.StoreID, &grn.Status,
		&grn.ReceiptDate, &grn.SupplierInvoiceNo, &grn.ReceivedBy, &grn.Notes, &grn.CreatedAt, &grn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, nil, ErrNotFound
		}
		return GoodsReceipt{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, grn_id, product_id, po_line_id, quantity_received, quantity_accepted, quantity_rejected,
       unit_cost, COALESCE(batch_number,''), expiry_date, COALESCE(notes,'')
FROM grn_lines WHERE grn_id=$1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, nil, err
	}
	defer rows.Close()
	var lines []GRNLine
	for rows.Next() {
		var line GRNLine
		if err := rows.Scan(&line.ID, &line.GRNID, &line.ProductID, &line.POLineID,
			&line.QuantityReceived, &line.QuantityAccepted, &line.QuantityRejected,
			&line.UnitCost, &line.BatchNumber, &line.ExpiryDate, &line.Notes); err != nil {
			return GoodsReceipt{}, nil, err
		}
		lines = append(lines, line)
	}
	return grn, lines, rows.Err()
}

// ListPOs lists purchase orders by filter.
func (r *Repository) ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+poColumns+` FROM purchase_orders
WHERE ($1 = '' OR status = $1)
  AND ($2 = 0 OR supplier_id = $2)
  AND ($3 = '' OR store_id = $3)
ORDER BY id DESC LIMIT $4 OFFSET $5`,
		string(filters.Status), filters.SupplierID, filters.StoreID, limit, filters.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// ListGRNs lists receipts linked to a purchase order.
func (r *Repository) ListGRNs(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, number, po_id, COALESCE(supplier_id,0), store_id, status, receipt_date,
       COALESCE(supplier_invoice_no,''), COALESCE(received_by,0), COALESCE(notes,''), created_at, updated_at
FROM goods_receipts WHERE po_id=$1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []GoodsReceipt
	for rows.Next() {
		var grn GoodsReceipt
		if err := rows.Scan(&grn.ID, &grn.Number, &grn.POID, &grn.SupplierID, &grn.StoreID, &grn.Status,
			&grn.ReceiptDate, &grn.SupplierInvoiceNo, &grn.ReceivedBy, &grn.Notes, &grn.CreatedAt, &grn.UpdatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, grn)
	}
	return receipts, rows.Err()
}

// Transactional writes

func (t *txRepo) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO purchase_orders (number, supplier_id, store_id, status, order_date, expected_delivery_date,
  shipping_address, billing_address, notes, created_by,
  subtotal, tax_amount, shipping_cost, other_charges, total_amount, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),$10,$11,$12,$13,$14,$15,NOW(),NOW())
RETURNING id`,
		po.Number, po.SupplierID, po.StoreID, string(po.Status), po.OrderDate, po.ExpectedDeliveryDate,
		po.ShippingAddress, po.BillingAddress, po.Notes, po.CreatedBy,
		po.Subtotal, po.TaxAmount, po.ShippingCost, po.OtherCharges, po.TotalAmount).Scan(&id)
	return id, err
}

func (t *txRepo) InsertPOLine(ctx context.Context, line POLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO po_lines (po_id, product_id, description, quantity_ordered, unit_of_measure,
  unit_price, line_total, quantity_received, expected_delivery_date, notes, version)
VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),$6,$7,0,$8,NULLIF($9,''),0)
RETURNING id`,
		line.POID, line.ProductID, line.Description, line.QuantityOrdered, line.UnitOfMeasure,
		line.UnitPrice, line.LineTotal, line.ExpectedDeliveryDate, line.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) DeletePOLines(ctx context.Context, poID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM po_lines WHERE po_id=$1`, poID)
	return err
}

func (t *txRepo) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2, updated_at=NOW() WHERE id=$1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) SetPOApproval(ctx context.Context, id int64, approvedBy int64, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET approved_by=$2, approval_date=$3, updated_at=NOW() WHERE id=$1`, id, approvedBy, at)
	return err
}

func (t *txRepo) UpdatePOTotals(ctx context.Context, po PurchaseOrder) error {
	_, err := t.tx.Exec(ctx, `
UPDATE purchase_orders SET subtotal=$2, tax_amount=$3, shipping_cost=$4, other_charges=$5, total_amount=$6, updated_at=NOW()
WHERE id=$1`, po.ID, po.Subtotal, po.TaxAmount, po.ShippingCost, po.OtherCharges, po.TotalAmount)
	return err
}

// GetPOForUpdate loads the order and lines with row locks so concurrent
// GRN postings against the same PO serialise.
func (t *txRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, err := scanPO(t.tx.QueryRow(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, nil, ErrNotFound
		}
		return PurchaseOrder{}, nil, err
	}
	rows, err := t.tx.Query(ctx, `
SELECT id, po_id, product_id, COALESCE(description,''), quantity_ordered, COALESCE(unit_of_measure,''),
       unit_price, line_total, quantity_received, expected_delivery_date, COALESCE(notes,''), version
FROM po_lines WHERE po_id=$1 ORDER BY id FOR UPDATE`, id)
	if err != nil {
		return PurchaseOrder{}, nil, err
	}
	defer rows.Close()
	var lines []POLine
	for rows.Next() {
		var line POLine
		if err := rows.Scan(&line.ID, &line.POID, &line.ProductID, &line.Description,
			&line.QuantityOrdered, &line.UnitOfMeasure, &line.UnitPrice, &line.LineTotal,
			&line.QuantityReceived, &line.ExpectedDeliveryDate, &line.Notes, &line.Version); err != nil {
			return PurchaseOrder{}, nil, err
		}
		lines = append(lines, line)
	}
	return po, lines, rows.Err()
}

// IncrementPOLineReceived applies the receipt delta with an optimistic
// version check; a stale version surfaces as a retryable conflict.
func (t *txRepo) IncrementPOLineReceived(ctx context.Context, lineID int64, delta float64, fromVersion int64) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE po_lines SET quantity_received = quantity_received + $2, version = version + 1
WHERE id=$1 AND version=$3`, lineID, delta, fromVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("po line %d: %w", lineID, shared.ErrConcurrentUpdate)
	}
	return nil
}

func (t *txRepo) CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO goods_receipts (number, po_id, supplier_id, store_id, status, receipt_date,
  supplier_invoice_no, received_by, notes, created_at, updated_at)
VALUES ($1,$2,NULLIF($3,0),$4,$5,$6,NULLIF($7,''),NULLIF($8,0),NULLIF($9,''),NOW(),NOW())
RETURNING id`,
		grn.Number, grn.POID, grn.SupplierID, grn.StoreID, string(grn.Status), grn.ReceiptDate,
		grn.SupplierInvoiceNo, grn.ReceivedBy, grn.Notes).Scan(&id)
	return id, err
}

func (t *txRepo) InsertGRNLine(ctx context.Context, line GRNLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
INSERT INTO grn_lines (grn_id, product_id, po_line_id, quantity_received, quantity_accepted,
  quantity_rejected, unit_cost, batch_number, expiry_date, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,NULLIF($10,''))
RETURNING id`,
		line.GRNID, line.ProductID, line.POLineID, line.QuantityReceived, line.QuantityAccepted,
		line.QuantityRejected, line.UnitCost, line.BatchNumber, line.ExpiryDate, line.Notes).Scan(&id)
	return id, err
}

// UpdateGRNStatus moves a receipt out of draft. The status predicate
// fences two transactions racing the same receipt: the loser matches
// zero rows and surfaces as a concurrent-update conflict.
func (t *txRepo) UpdateGRNStatus(ctx context.Context, id int64, status GRNStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE goods_receipts SET status=$2, updated_at=NOW() WHERE id=$1 AND status=$3`,
		id, string(status), string(GRNStatusDraft))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT TRUE FROM goods_receipts WHERE id=$1`, id).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return shared.ErrConcurrentUpdate
	}
	return nil
}
