package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ApprovalModule identifies the document family an approval belongs to.
type ApprovalModule string

const (
	// ModulePurchaseOrder covers purchase order submit/approve flows.
	ModulePurchaseOrder ApprovalModule = "PO"
	// ModuleGoodsReceipt covers goods receipt posting approvals.
	ModuleGoodsReceipt ApprovalModule = "GRN"
	// ModuleSalesInvoice covers sales invoice approvals.
	ModuleSalesInvoice ApprovalModule = "INVOICE"
)

// ApprovalAction enumerates approval log actions.
type ApprovalAction string

const (
	ApprovalSubmit  ApprovalAction = "SUBMIT"
	ApprovalApprove ApprovalAction = "APPROVE"
	ApprovalReject  ApprovalAction = "REJECT"
)

// DocRef derives the stable approval reference for a document. The same
// module and numeric id always map to the same UUID, so submit and
// approve entries written at different times land on one trail.
func DocRef(module ApprovalModule, id int64) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", module, id)))
}

// ApprovalLog is one entry on a document's approval trail.
type ApprovalLog struct {
	ID      int64
	Module  ApprovalModule
	RefID   uuid.UUID
	ActorID int64
	Action  ApprovalAction
	Note    string
	At      time.Time
}

func (l ApprovalLog) validate() error {
	switch {
	case l.Module == "":
		return errors.New("approval module required")
	case l.RefID == uuid.Nil:
		return errors.New("approval ref id required")
	case l.ActorID == 0:
		return errors.New("approval actor required")
	case l.Action == "":
		return errors.New("approval action required")
	}
	return nil
}

// ApprovalRecorder persists document approval trails.
type ApprovalRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewApprovalRecorder constructs ApprovalRecorder.
func NewApprovalRecorder(pool *pgxpool.Pool, logger *slog.Logger) *ApprovalRecorder {
	return &ApprovalRecorder{pool: pool, logger: logger}
}

// Record appends an entry to the trail.
func (r *ApprovalRecorder) Record(ctx context.Context, log ApprovalLog) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	if err := log.validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO approvals (module, ref_id, actor_id, action, note, at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		string(log.Module), log.RefID, log.ActorID, string(log.Action), log.Note, log.At)
	if err != nil {
		r.logger.Error("record approval", slog.Any("error", err))
		return err
	}
	return nil
}

// List returns the trail for one document, oldest entry first.
func (r *ApprovalRecorder) List(ctx context.Context, module ApprovalModule, ref uuid.UUID) ([]ApprovalLog, error) {
	if r == nil {
		return nil, errors.New("approval recorder not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, module, ref_id, actor_id, action, note, at
FROM approvals WHERE module=$1 AND ref_id=$2 ORDER BY at ASC`, string(module), ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ApprovalLog
	for rows.Next() {
		var l ApprovalLog
		var module, action string
		if err := rows.Scan(&l.ID, &module, &l.RefID, &l.ActorID, &action, &l.Note, &l.At); err != nil {
			return nil, err
		}
		l.Module = ApprovalModule(module)
		l.Action = ApprovalAction(action)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// EnsureSubmit records a submit entry unless one already exists, so a
// re-submitted document keeps a single SUBMIT on its trail.
func (r *ApprovalRecorder) EnsureSubmit(ctx context.Context, module ApprovalModule, ref uuid.UUID, actorID int64, note string) error {
	if r == nil {
		return errors.New("approval recorder not initialised")
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT true FROM approvals WHERE module=$1 AND ref_id=$2 AND action='SUBMIT' LIMIT 1`,
		string(module), ref).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.Record(ctx, ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: ApprovalSubmit, Note: note})
		}
		return err
	}
	return nil
}
