package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

type WorkOrder struct {
	ID                 int            `gorm:"primary_key" json:"id"`
	CompanyId          int            `gorm:"index;not null" json:"company_id"`
	WorkGenerateId     string         `gorm:"size:30;index" json:"work_generate_id"`
	SkuName            string         `gorm:"size:100" json:"sku_name"`
	Priority           string         `gorm:"size:20" json:"priority"`
	Edd                *time.Time     `json:"edd"`
	Stage              WorkOrderStage `gorm:"type:enum('Pending','Grouped','Production','Done');default:'Pending'" json:"stage"`
	WorkOrderSkuValues string         `gorm:"type:text" json:"work_order_sku_values"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkOrder struct {
	WorkGenerateId     string     `json:"work_generate_id" binding:"required"`
	SkuName            string     `json:"sku_name" binding:"required"`
	Priority           string     `json:"priority"`
	Edd                *time.Time `json:"edd"`
	WorkOrderSkuValues string     `json:"work_order_sku_values"`
}

func CreateWorkOrder(ctx context.Context, input *NewWorkOrder) (*WorkOrder, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	if input.WorkOrderSkuValues != "" {
		if parsed := ParseWorkOrderSkuValues(input.WorkOrderSkuValues); parsed.ParseFailed {
			return nil, utils.NewValidationError("invalid work_order_sku_values")
		}
	}

	workOrder := WorkOrder{
		CompanyId:          companyId,
		WorkGenerateId:     input.WorkGenerateId,
		SkuName:            input.SkuName,
		Priority:           input.Priority,
		Edd:                input.Edd,
		Stage:              WorkOrderStagePending,
		WorkOrderSkuValues: input.WorkOrderSkuValues,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&workOrder).Error; err != nil {
		return nil, err
	}

	return &workOrder, nil
}

// fetchWorkOrdersByIds batch-loads the referenced work orders for layer
// enrichment (read path only).
func fetchWorkOrdersByIds(ctx context.Context, companyId int, ids []int) (map[int]*WorkOrder, error) {
	result := make(map[int]*WorkOrder)
	if len(ids) == 0 {
		return result, nil
	}

	db := config.GetDB()
	var workOrders []WorkOrder
	err := db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyId, utils.UniqueSlice(ids)).
		Find(&workOrders).Error
	if err != nil {
		return nil, err
	}
	for i := range workOrders {
		result[workOrders[i].ID] = &workOrders[i]
	}
	return result, nil
}
