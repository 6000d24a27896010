package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionGroup is the quantity ledger: GroupQty is the fixed target,
// ManufacturedQty the cumulative production, BalanceManufactureQty the
// remainder. manufactured + balance == group_qty holds at all times; it is
// asserted at creation and re-asserted before every ledger commit.
type ProductionGroup struct {
	ID                    int                 `gorm:"primary_key" json:"id"`
	CompanyId             int                 `gorm:"index;not null" json:"company_id"`
	GroupGenerateId       string              `gorm:"size:30;index" json:"group_generate_id"`
	GroupValue            string              `gorm:"type:text" json:"group_value"`
	GroupQty              decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"group_qty"`
	ManufacturedQty       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"manufactured_qty"`
	BalanceManufactureQty decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"balance_manufacture_qty"`
	GroupStatus           GroupStatus         `gorm:"type:enum('Active','Inactive');default:'Active'" json:"group_status"`
	ProductionCompleted   ProductionCompleted `gorm:"type:enum('Pending','Completed');default:'Pending'" json:"production_completed"`
	CreatedAt             time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionGroup struct {
	GroupQty              decimal.Decimal  `json:"group_qty" binding:"required"`
	ManufacturedQty       decimal.Decimal  `json:"manufactured_qty"`
	BalanceManufactureQty *decimal.Decimal `json:"balance_manufacture_qty"`
	GroupValue            string           `json:"group_value"`
}

// UpdateGroupQuantityInput is the body of the quantity-update call.
// IdempotencyKey is optional; when present, a retried request with the same
// key returns the original outcome instead of double-applying.
type UpdateGroupQuantityInput struct {
	ManufacturedQuantity decimal.Decimal `json:"manufactured_quantity"`
	IdempotencyKey       *string         `json:"idempotency_key"`
}

// GroupQuantityResult echoes the applied delta and the resulting ledger state.
type GroupQuantityResult struct {
	GroupId              int             `json:"group_id"`
	GroupHistoryId       int             `json:"group_history_id"`
	ManufacturedQuantity decimal.Decimal `json:"manufactured_quantity"`
	TotalManufactured    decimal.Decimal `json:"total_manufactured"`
	TotalQuantity        decimal.Decimal `json:"total_quantity"`
	BalancedQuantity     decimal.Decimal `json:"balanced_quantity"`
	ProductionScheduleId int             `json:"production_schedule_id"`
}

/* pure ledger math, DB-free */

type ledgerState struct {
	GroupQty     decimal.Decimal
	Manufactured decimal.Decimal
	Balance      decimal.Decimal
}

func validateUsedQty(used decimal.Decimal) error {
	if used.LessThanOrEqual(decimal.Zero) {
		return utils.NewValidationError("invalid quantity")
	}
	return nil
}

// checkLedgerBounds validates the delta against the current ledger state.
// Balance is checked before target; clients rely on the message order.
func checkLedgerBounds(s ledgerState, used decimal.Decimal) error {
	if used.GreaterThan(s.Balance) {
		return utils.NewValidationError("exceeds balance")
	}
	if s.Manufactured.Add(used).GreaterThan(s.GroupQty) {
		return utils.NewValidationError("exceeds target")
	}
	return nil
}

// applyDelta computes the post-update ledger state and whether the group is
// now complete. The post-condition manufactured + balance == group_qty is
// re-asserted here; a violation means the stored row drifted and the caller
// must abort instead of committing.
func applyDelta(s ledgerState, used decimal.Decimal) (ledgerState, bool, error) {
	next := ledgerState{
		GroupQty:     s.GroupQty,
		Manufactured: s.Manufactured.Add(used),
		Balance:      s.Balance.Sub(used),
	}
	if !next.Manufactured.Add(next.Balance).Equal(next.GroupQty) {
		return ledgerState{}, false, fmt.Errorf("ledger invariant violated: manufactured %s + balance %s != target %s",
			next.Manufactured, next.Balance, next.GroupQty)
	}
	completed := next.Balance.IsZero()
	return next, completed, nil
}

/* creation */

func generateGroupId(ctx context.Context, companyId int) (string, error) {
	seq, err := config.GetRedisCounter(ctx, fmt.Sprintf("GroupNumber:%d", companyId))
	if err != nil || seq == 0 {
		// Redis unavailable; fall back to the row count. Racy under heavy
		// concurrent creation, acceptable for a human-readable label.
		count, countErr := utils.ResourceCountWhere[ProductionGroup](ctx, companyId, "1 = 1")
		if countErr != nil {
			return "", countErr
		}
		seq = count + 1
	}
	return fmt.Sprintf("PG-%06d", seq), nil
}

func CreateProductionGroup(ctx context.Context, input *NewProductionGroup) (*ProductionGroup, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	if input.GroupQty.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("invalid quantity")
	}
	if input.ManufacturedQty.IsNegative() || input.ManufacturedQty.GreaterThan(input.GroupQty) {
		return nil, utils.NewValidationError("invalid manufactured quantity")
	}

	balance := input.GroupQty.Sub(input.ManufacturedQty)
	if input.BalanceManufactureQty != nil {
		balance = *input.BalanceManufactureQty
	}
	// Reject inconsistent seeds instead of letting the ledger start drifted.
	if !input.ManufacturedQty.Add(balance).Equal(input.GroupQty) {
		return nil, utils.NewValidationError("inconsistent quantities: manufactured + balance must equal group_qty")
	}

	parsed := ParseGroupValue(input.GroupValue)
	if parsed.ParseFailed {
		return nil, utils.NewValidationError("invalid group_value")
	}
	if len(parsed.Refs) > 0 {
		var workOrderIds []int
		for _, ref := range parsed.Refs {
			workOrderIds = append(workOrderIds, ref.WorkOrderId)
		}
		if err := utils.ValidateResourcesId[WorkOrder](ctx, companyId, workOrderIds); err != nil {
			return nil, utils.NewNotFoundError("work order")
		}
	}

	generateId, err := generateGroupId(ctx, companyId)
	if err != nil {
		return nil, err
	}

	group := ProductionGroup{
		CompanyId:             companyId,
		GroupGenerateId:       generateId,
		GroupValue:            input.GroupValue,
		GroupQty:              input.GroupQty,
		ManufacturedQty:       input.ManufacturedQty,
		BalanceManufactureQty: balance,
		GroupStatus:           GroupStatusActive,
		ProductionCompleted:   ProductionCompletedPending,
	}
	if balance.IsZero() {
		group.ProductionCompleted = ProductionCompletedCompleted
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, err
	}

	return &group, nil
}

/* the ledger write path */

// ApplyManufacturedQuantity consumes used quantity against the group ledger:
// the single writer path for manufactured_qty/balance_manufacture_qty.
//
// The group row is locked (SELECT ... FOR UPDATE) before the balance and
// target checks so two concurrent requests cannot both validate against the
// same stale balance. The Redis lock in front is a best-effort optimization
// to shed obvious contention early; MySQL serializes safely without it.
func ApplyManufacturedQuantity(ctx context.Context, groupId int, input *UpdateGroupQuantityInput) (*GroupQuantityResult, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, errors.New("user id is required")
	}

	employee, err := GetEmployeeByUser(ctx, companyId, userId)
	if err != nil {
		return nil, err
	}

	if err := validateUsedQty(input.ManufacturedQuantity); err != nil {
		return nil, err
	}

	release, lockErr := utils.CompanyLock(ctx, companyId, "lock:group", strconv.Itoa(groupId), "productionGroup", "ApplyManufacturedQuantity")
	if lockErr != nil {
		config.LogError(logger, "productionGroup", "ApplyManufacturedQuantity", "Proceeding without redis lock", groupId, lockErr)
	} else {
		defer release()
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var group ProductionGroup
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND company_id = ? AND group_status = ?", groupId, companyId, GroupStatusActive).
		First(&group).Error
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("group")
		}
		return nil, utils.ClassifyDBError(err)
	}

	// Replayed request: return the original outcome, write nothing.
	if input.IdempotencyKey != nil && *input.IdempotencyKey != "" {
		var existing GroupHistory
		lookupErr := tx.
			Where("company_id = ? AND idempotency_key = ?", companyId, *input.IdempotencyKey).
			First(&existing).Error
		if lookupErr == nil {
			tx.Rollback()
			return &GroupQuantityResult{
				GroupId:              group.ID,
				GroupHistoryId:       existing.ID,
				ManufacturedQuantity: existing.GroupManufacturedQuantity,
				TotalManufactured:    group.ManufacturedQty,
				TotalQuantity:        group.GroupQty,
				BalancedQuantity:     group.BalanceManufactureQty,
				ProductionScheduleId: existing.ProductionScheduleId,
			}, nil
		}
		if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			tx.Rollback()
			return nil, utils.ClassifyDBError(lookupErr)
		}
	}

	state := ledgerState{
		GroupQty:     group.GroupQty,
		Manufactured: group.ManufacturedQty,
		Balance:      group.BalanceManufactureQty,
	}
	if err := checkLedgerBounds(state, input.ManufacturedQuantity); err != nil {
		tx.Rollback()
		return nil, err
	}

	schedules, err := fetchActiveSchedulesForUpdate(tx, companyId, groupId, employee.ID)
	if err != nil {
		tx.Rollback()
		return nil, utils.ClassifyDBError(err)
	}
	if len(schedules) == 0 {
		tx.Rollback()
		return nil, utils.NewNotFoundError("schedule")
	}
	firstSchedule := schedules[0]

	next, completed, err := applyDelta(state, input.ManufacturedQuantity)
	if err != nil {
		tx.Rollback()
		config.LogError(logger, "productionGroup", "ApplyManufacturedQuantity", "Ledger invariant check failed", group.ID, err)
		return nil, err
	}

	groupUpdates := map[string]interface{}{
		"manufactured_qty":        next.Manufactured,
		"balance_manufacture_qty": next.Balance,
	}
	if completed {
		groupUpdates["production_completed"] = ProductionCompletedCompleted
	}
	err = tx.Model(&ProductionGroup{}).
		Where("id = ? AND company_id = ?", group.ID, companyId).
		Updates(groupUpdates).Error
	if err != nil {
		tx.Rollback()
		return nil, utils.ClassifyDBError(err)
	}

	history := GroupHistory{
		CompanyId:                 companyId,
		ProductionGroupId:         group.ID,
		ProductionScheduleId:      firstSchedule.ID,
		GroupManufacturedQuantity: input.ManufacturedQuantity,
		StartTime:                 firstSchedule.StartTime,
		EndTime:                   firstSchedule.EndTime,
		EmployeeId:                employee.ID,
		MachineId:                 firstSchedule.MachineId,
		IdempotencyKey:            input.IdempotencyKey,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		if utils.IsDuplicateKeyErr(err) {
			return nil, utils.NewConflictError("duplicate idempotency key", false)
		}
		return nil, utils.ClassifyDBError(err)
	}

	if err := syncSchedulesWithLedger(tx, companyId, groupId, employee.ID, input.ManufacturedQuantity, next.Balance); err != nil {
		tx.Rollback()
		return nil, utils.ClassifyDBError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.ClassifyDBError(err)
	}

	return &GroupQuantityResult{
		GroupId:              group.ID,
		GroupHistoryId:       history.ID,
		ManufacturedQuantity: input.ManufacturedQuantity,
		TotalManufactured:    next.Manufactured,
		TotalQuantity:        next.GroupQty,
		BalancedQuantity:     next.Balance,
		ProductionScheduleId: firstSchedule.ID,
	}, nil
}

/* read side */

// GroupView is the enriched single-group read: the ledger row, its layers
// zipped with work-order fields, and the latest schedule status.
type GroupView struct {
	ProductionGroup *ProductionGroup `json:"production_group"`
	Layers          []map[string]any `json:"layers"`
	ScheduleStatus  ScheduleStatus   `json:"schedule_status,omitempty"`
}

// EnrichLayers zips group_value refs with the referenced work orders' parsed
// layer lists. Refs whose work order or layer cannot be resolved are skipped;
// the second return reports whether any embedded JSON failed to parse.
func EnrichLayers(refs []GroupValueRef, workOrders map[int]*WorkOrder) ([]map[string]any, bool) {
	layers := make([]map[string]any, 0, len(refs))
	parseFailed := false
	for _, ref := range refs {
		workOrder, ok := workOrders[ref.WorkOrderId]
		if !ok {
			continue
		}
		parsed := ParseWorkOrderSkuValues(workOrder.WorkOrderSkuValues)
		if parsed.ParseFailed {
			parseFailed = true
			continue
		}
		for _, layer := range parsed.Layers {
			layerId, ok := LayerIdOf(layer)
			if !ok || layerId != ref.LayerId {
				continue
			}
			enriched := make(map[string]any, len(layer)+6)
			for k, v := range layer {
				enriched[k] = v
			}
			enriched["work_order_id"] = workOrder.ID
			enriched["work_generate_id"] = workOrder.WorkGenerateId
			enriched["sku_name"] = workOrder.SkuName
			enriched["priority"] = workOrder.Priority
			enriched["edd"] = workOrder.Edd
			enriched["stage"] = workOrder.Stage
			layers = append(layers, enriched)
			break
		}
	}
	return layers, parseFailed
}

func GetProductionGroup(ctx context.Context, id int) (*GroupView, error) {
	logger := config.GetLogger()

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	group, err := utils.FetchModel[ProductionGroup](ctx, companyId, id)
	if err != nil {
		return nil, utils.NewNotFoundError("group")
	}

	parsed := ParseGroupValue(group.GroupValue)
	if parsed.ParseFailed {
		config.LogError(logger, "productionGroup", "GetProductionGroup", "Malformed group_value, serving empty layers", group.ID, errors.New("group_value parse failed"))
	}

	var workOrderIds []int
	for _, ref := range parsed.Refs {
		workOrderIds = append(workOrderIds, ref.WorkOrderId)
	}
	workOrders, err := fetchWorkOrdersByIds(ctx, companyId, workOrderIds)
	if err != nil {
		return nil, err
	}

	layers, layerParseFailed := EnrichLayers(parsed.Refs, workOrders)
	if layerParseFailed {
		config.LogError(logger, "productionGroup", "GetProductionGroup", "Malformed work_order_sku_values, layers skipped", group.ID, errors.New("sku values parse failed"))
	}

	status, err := latestScheduleStatus(ctx, companyId, group.ID)
	if err != nil {
		return nil, err
	}

	return &GroupView{
		ProductionGroup: group,
		Layers:          layers,
		ScheduleStatus:  status,
	}, nil
}
