package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// GroupHistory is the append-only audit trail of the group ledger: one row
// per quantity-update transaction, never updated or deleted.
type GroupHistory struct {
	ID                        int             `gorm:"primary_key" json:"id"`
	CompanyId                 int             `gorm:"uniqueIndex:idx_history_company_idem;index;not null" json:"company_id"`
	ProductionGroupId         int             `gorm:"index;not null" json:"production_group_id"`
	ProductionScheduleId      int             `gorm:"index;not null" json:"production_schedule_id"`
	GroupManufacturedQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"group_manufactured_quantity"`
	StartTime                 *time.Time      `json:"start_time"`
	EndTime                   *time.Time      `json:"end_time"`
	EmployeeId                int             `gorm:"index;not null" json:"employee_id"`
	MachineId                 int             `gorm:"index;not null" json:"machine_id"`
	// MySQL unique indexes permit multiple NULLs, so rows without a key never collide.
	IdempotencyKey *string   `gorm:"uniqueIndex:idx_history_company_idem;size:100" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// GroupHistoryEntry is one line of the history read API, with the employee
// and machine names resolved.
type GroupHistoryEntry struct {
	ID                        int             `json:"id"`
	StartTime                 *time.Time      `json:"start_time"`
	EndTime                   *time.Time      `json:"end_time"`
	GroupManufacturedQuantity decimal.Decimal `json:"group_manufactured_quantity"`
	EmployeeId                int             `json:"-"`
	MachineId                 int             `json:"-"`
	Employee                  string          `json:"employee"`
	Machine                   string          `json:"machine"`
	CreatedAt                 time.Time       `json:"created_at"`
}

type GroupHistoryResult struct {
	ProductionGroup     *ProductionGroup     `json:"production_group"`
	ProductionHistories []*GroupHistoryEntry `json:"production_histories"`
}

// GetGroupHistory returns a group's ledger audit trail, newest first. The
// group must have at least one active schedule and itself be active.
func GetGroupHistory(ctx context.Context, groupId int) (*GroupHistoryResult, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	count, err := utils.ResourceCountWhere[ProductionSchedule](ctx, companyId,
		"production_group_id = ? AND schedule_status = ?", groupId, ScheduleStatusActive)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, utils.NewNotFoundError("schedule")
	}

	db := config.GetDB()
	var group ProductionGroup
	err = db.WithContext(ctx).
		Where("id = ? AND company_id = ? AND group_status = ?", groupId, companyId, GroupStatusActive).
		First(&group).Error
	if err != nil {
		return nil, utils.NewNotFoundError("group")
	}

	var histories []GroupHistory
	err = db.WithContext(ctx).
		Where("production_group_id = ? AND company_id = ?", groupId, companyId).
		Order("created_at DESC, id DESC").
		Find(&histories).Error
	if err != nil {
		return nil, err
	}

	entries := make([]*GroupHistoryEntry, 0, len(histories))
	for _, h := range histories {
		entries = append(entries, &GroupHistoryEntry{
			ID:                        h.ID,
			StartTime:                 h.StartTime,
			EndTime:                   h.EndTime,
			GroupManufacturedQuantity: h.GroupManufacturedQuantity,
			EmployeeId:                h.EmployeeId,
			MachineId:                 h.MachineId,
			CreatedAt:                 h.CreatedAt,
		})
	}

	return &GroupHistoryResult{
		ProductionGroup:     &group,
		ProductionHistories: entries,
	}, nil
}
