package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

type Machine struct {
	ID                int           `gorm:"primary_key" json:"id"`
	CompanyId         int           `gorm:"index;not null" json:"company_id"`
	MachineGenerateId string        `gorm:"size:30;index" json:"machine_generate_id"`
	Name              string        `gorm:"size:100;not null" json:"name"`
	Status            MachineStatus `gorm:"type:enum('Active','Maintenance','Inactive');default:'Active'" json:"status"`
	CreatedAt         time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewMachine struct {
	MachineGenerateId string `json:"machine_generate_id" binding:"required"`
	Name              string `json:"name" binding:"required"`
}

func CreateMachine(ctx context.Context, input *NewMachine) (*Machine, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	if err := utils.ValidateUnique[Machine](ctx, companyId, "machine_generate_id", input.MachineGenerateId, 0); err != nil {
		return nil, utils.NewValidationError("duplicate machine_generate_id")
	}

	machine := Machine{
		CompanyId:         companyId,
		MachineGenerateId: input.MachineGenerateId,
		Name:              input.Name,
		Status:            MachineStatusActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&machine).Error; err != nil {
		return nil, err
	}

	return &machine, nil
}
