package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// Inventory lots and their allocations to groups are written by the
// inventory service; this service reads them for material traceability only.
type Inventory struct {
	ID        int             `gorm:"primary_key" json:"id"`
	CompanyId int             `gorm:"index;not null" json:"company_id"`
	ItemName  string          `gorm:"size:100;not null" json:"item_name"`
	LotNumber string          `gorm:"size:50;index" json:"lot_number"`
	Qty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Unit      string          `gorm:"size:20" json:"unit"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type AllocationHistory struct {
	ID                int             `gorm:"primary_key" json:"id"`
	CompanyId         int             `gorm:"index;not null" json:"company_id"`
	ProductionGroupId int             `gorm:"index;not null" json:"production_group_id"`
	InventoryId       int             `gorm:"index;not null" json:"inventory_id"`
	AllocatedQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"allocated_qty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// GroupMaterial is one raw-material line of the mobile traceability view.
type GroupMaterial struct {
	AllocationId int             `json:"allocation_id"`
	InventoryId  int             `json:"inventory_id"`
	ItemName     string          `json:"item_name"`
	LotNumber    string          `json:"lot_number"`
	AllocatedQty decimal.Decimal `json:"allocated_qty"`
	Unit         string          `json:"unit"`
	AllocatedAt  time.Time       `json:"allocated_at"`
}

// GetGroupMaterials reconstructs which inventory lots were consumed by a
// group, newest allocation first.
func GetGroupMaterials(ctx context.Context, groupId int) ([]*GroupMaterial, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateResourceId[ProductionGroup](ctx, companyId, groupId); err != nil {
		return nil, utils.NewNotFoundError("group")
	}

	db := config.GetDB()
	var materials []*GroupMaterial
	err := db.WithContext(ctx).
		Table("allocation_histories").
		Select("allocation_histories.id AS allocation_id, allocation_histories.inventory_id, inventories.item_name, inventories.lot_number, allocation_histories.allocated_qty, inventories.unit, allocation_histories.created_at AS allocated_at").
		Joins("JOIN inventories ON inventories.id = allocation_histories.inventory_id").
		Where("allocation_histories.production_group_id = ? AND allocation_histories.company_id = ?", groupId, companyId).
		Order("allocation_histories.created_at DESC").
		Scan(&materials).Error
	if err != nil {
		return nil, err
	}

	return materials, nil
}
