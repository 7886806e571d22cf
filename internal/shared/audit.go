package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntity names the domain area an audit entry belongs to.
type AuditEntity string

const (
	// EntityProcurement covers purchase order and goods receipt actions.
	EntityProcurement AuditEntity = "procurement"
	// EntitySales covers sales invoice actions.
	EntitySales AuditEntity = "sales"
	// EntityPricing covers discount administration actions.
	EntityPricing AuditEntity = "pricing"
)

// AuditLog is one entry in the audit trail. Meta carries
// action-specific detail such as document numbers and amounts and is
// stored as JSON.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   AuditEntity
	EntityID int64
	Meta     map[string]any
	At       time.Time
}

// AuditLogger writes the audit trail.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. Document workflows treat audit failures as
// non-fatal, so callers typically ignore the returned error.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == 0 {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return fmt.Errorf("audit meta: %w", err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		log.ActorID, log.Action, string(log.Entity), strconv.FormatInt(log.EntityID, 10), metaJSON, log.At)
	return err
}
