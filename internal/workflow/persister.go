package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/internal/domain/workorder"
	"github.com/fieldserve/workorder/internal/repository"
	"github.com/fieldserve/workorder/pkg/database"
)

// SQLStatusPersister writes the status change and its audit row in one
// transaction
type SQLStatusPersister struct {
	db     *database.DB
	orders *repository.WorkOrderRepository
	audit  *repository.AuditRepository
}

// NewSQLStatusPersister creates a transactional status persister
func NewSQLStatusPersister(db *database.DB, orders *repository.WorkOrderRepository, audit *repository.AuditRepository) *SQLStatusPersister {
	return &SQLStatusPersister{db: db, orders: orders, audit: audit}
}

// ApplyStatus updates the work order row and records the transition
func (p *SQLStatusPersister) ApplyStatus(ctx context.Context, order *entity.WorkOrder, to workorder.Status, updatedAt time.Time, actorID int64) error {
	return p.db.WithTransactionContext(ctx, func(tx *sql.Tx) error {
		if err := p.orders.UpdateStatusTx(ctx, tx, order.ID, string(to), updatedAt); err != nil {
			return err
		}

		return p.audit.InsertTx(ctx, tx, &entity.AuditLog{
			Entity:   "work_order",
			EntityID: order.ID,
			Action:   "status_transition",
			Detail:   fmt.Sprintf("%s -> %s", order.Status, to),
			ActorID:  actorID,
		})
	})
}

// Verify interface compliance
var _ StatusPersister = (*SQLStatusPersister)(nil)
