package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduleReconciler is the safety net behind the denormalized schedule
// quantities. Ledger updates rewrite the copies in the same transaction, so
// under normal operation there is nothing to do; this job catches rows that
// drifted anyway (manual SQL fixes, bugs in old mobile builds) and repairs
// them against the group ledger, which is the source of truth.
type ScheduleReconciler struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	ReconcilerID string

	BatchSize    int
	PollInterval time.Duration
}

func NewScheduleReconciler(db *gorm.DB, logger *logrus.Logger) *ScheduleReconciler {
	return &ScheduleReconciler{
		DB:           db,
		Logger:       logger,
		ReconcilerID: uuid.NewString(),
		BatchSize:    100,
		PollInterval: 5 * time.Minute,
	}
}

func (r *ScheduleReconciler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.reconcileOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.PollInterval):
		}
	}
}

type driftedSchedule struct {
	ScheduleId int `gorm:"column:schedule_id"`
	GroupId    int `gorm:"column:group_id"`
}

func (r *ScheduleReconciler) reconcileOnce(ctx context.Context) {
	db := r.DB
	if db == nil {
		return
	}

	// Active schedules whose balance copy disagrees with their group's ledger.
	// The manufactured copy is per-schedule (seeded at assignment time), so
	// only the balance copy is comparable across the join.
	var drifted []driftedSchedule
	err := db.WithContext(ctx).
		Table("production_schedules").
		Select("production_schedules.id AS schedule_id, production_groups.id AS group_id").
		Joins("JOIN production_groups ON production_groups.id = production_schedules.production_group_id").
		Where("production_schedules.schedule_status = ?", models.ScheduleStatusActive).
		Where("production_schedules.group_balanced_quantity <> production_groups.balance_manufacture_qty").
		Limit(r.BatchSize).
		Scan(&drifted).Error
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"module":       "workflow",
			"funcName":     "reconcileOnce",
			"reconcilerId": r.ReconcilerID,
		}).Error(err.Error())
		return
	}

	for _, row := range drifted {
		r.repairSchedule(ctx, row.ScheduleId, row.GroupId)
	}
}

func (r *ScheduleReconciler) repairSchedule(ctx context.Context, scheduleId int, groupId int) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.ProductionGroup
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", groupId).
			First(&group).Error; err != nil {
			return err
		}

		// Re-check under the lock: a concurrent ledger update may have
		// repaired the copy already.
		res := tx.Model(&models.ProductionSchedule{}).
			Where("id = ? AND schedule_status = ?", scheduleId, models.ScheduleStatusActive).
			Where("group_balanced_quantity <> ?", group.BalanceManufactureQty).
			Update("group_balanced_quantity", group.BalanceManufactureQty)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			r.Logger.WithFields(logrus.Fields{
				"module":       "workflow",
				"funcName":     "repairSchedule",
				"reconcilerId": r.ReconcilerID,
				"scheduleId":   scheduleId,
				"groupId":      groupId,
				"balance":      group.BalanceManufactureQty.String(),
			}).Warn("repaired drifted schedule balance")
		}
		return nil
	})
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"module":     "workflow",
			"funcName":   "repairSchedule",
			"scheduleId": scheduleId,
			"groupId":    groupId,
		}).Error(err.Error())
	}
}
