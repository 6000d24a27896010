package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductionSchedule assigns one employee and one machine to a group for a
// shift window. GroupManufacturedQuantity/GroupBalancedQuantity are
// denormalized copies of the group ledger, refreshed in the same transaction
// as every ledger change (mobile "my group schedule" views read them without
// a join).
type ProductionSchedule struct {
	ID                        int             `gorm:"primary_key" json:"id"`
	CompanyId                 int             `gorm:"index;not null" json:"company_id"`
	ProductionGroupId         int             `gorm:"index;not null" json:"production_group_id"`
	EmployeeId                int             `gorm:"index;not null" json:"employee_id"`
	MachineId                 int             `gorm:"index;not null" json:"machine_id"`
	StartTime                 *time.Time      `json:"start_time"`
	EndTime                   *time.Time      `json:"end_time"`
	GroupManufacturedQuantity decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"group_manufactured_quantity"`
	GroupBalancedQuantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"group_balanced_quantity"`
	ScheduleStatus            ScheduleStatus  `gorm:"type:enum('Active','Inactive','Completed');default:'Active'" json:"schedule_status"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionSchedule struct {
	ProductionGroupId int        `json:"production_group_id" binding:"required"`
	EmployeeId        int        `json:"employee_id" binding:"required"`
	MachineId         int        `json:"machine_id" binding:"required"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *time.Time `json:"end_time"`
}

func CreateProductionSchedule(ctx context.Context, input *NewProductionSchedule) (*ProductionSchedule, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	db := config.GetDB()
	var group ProductionGroup
	err := db.WithContext(ctx).
		Where("id = ? AND company_id = ? AND group_status = ?", input.ProductionGroupId, companyId, GroupStatusActive).
		First(&group).Error
	if err != nil {
		return nil, utils.NewNotFoundError("group")
	}

	if err := utils.ValidateResourceId[Employee](ctx, companyId, input.EmployeeId); err != nil {
		return nil, utils.NewNotFoundError("employee")
	}
	if err := utils.ValidateResourceId[Machine](ctx, companyId, input.MachineId); err != nil {
		return nil, utils.NewNotFoundError("machine")
	}

	schedule := ProductionSchedule{
		CompanyId:         companyId,
		ProductionGroupId: input.ProductionGroupId,
		EmployeeId:        input.EmployeeId,
		MachineId:         input.MachineId,
		StartTime:         input.StartTime,
		EndTime:           input.EndTime,
		// Seed the denormalized pair from the current ledger state.
		GroupManufacturedQuantity: group.ManufacturedQty,
		GroupBalancedQuantity:     group.BalanceManufactureQty,
		ScheduleStatus:            ScheduleStatusActive,
	}

	if err := db.WithContext(ctx).Create(&schedule).Error; err != nil {
		return nil, err
	}

	return &schedule, nil
}

// fetchActiveSchedulesForUpdate loads the active schedules of a
// group+employee inside the caller's transaction, ordered by id so the
// "first matching schedule" used for the history row is deterministic.
func fetchActiveSchedulesForUpdate(tx *gorm.DB, companyId int, groupId int, employeeId int) ([]ProductionSchedule, error) {
	var schedules []ProductionSchedule
	err := tx.
		Where("production_group_id = ? AND employee_id = ? AND company_id = ? AND schedule_status = ?",
			groupId, employeeId, companyId, ScheduleStatusActive).
		Order("id ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}

// syncSchedulesWithLedger fans the ledger delta out to every active schedule
// of the group+employee: the manufactured copy is incremented, the balance
// copy overwritten. Must run inside the same transaction as the group update.
func syncSchedulesWithLedger(tx *gorm.DB, companyId int, groupId int, employeeId int, usedQty decimal.Decimal, newBalance decimal.Decimal) error {
	return tx.Model(&ProductionSchedule{}).
		Where("production_group_id = ? AND employee_id = ? AND company_id = ? AND schedule_status = ?",
			groupId, employeeId, companyId, ScheduleStatusActive).
		Updates(map[string]interface{}{
			"group_manufactured_quantity": gorm.Expr("group_manufactured_quantity + ?", usedQty),
			"group_balanced_quantity":     newBalance,
		}).Error
}

// latestScheduleStatus returns the most recent schedule's status for the
// group view, or empty when the group has no schedules yet.
func latestScheduleStatus(ctx context.Context, companyId int, groupId int) (ScheduleStatus, error) {
	db := config.GetDB()
	var schedule ProductionSchedule
	err := db.WithContext(ctx).
		Where("production_group_id = ? AND company_id = ?", groupId, companyId).
		Order("id DESC").
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return schedule.ScheduleStatus, nil
}
