package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

type Employee struct {
	ID        int            `gorm:"primary_key" json:"id"`
	CompanyId int            `gorm:"uniqueIndex:idx_employee_company_user;index;not null" json:"company_id"`
	UserId    int            `gorm:"uniqueIndex:idx_employee_company_user;not null" json:"user_id"`
	Name      string         `gorm:"size:100;not null" json:"name"`
	Phone     string         `gorm:"size:30" json:"phone"`
	Status    EmployeeStatus `gorm:"type:enum('Active','Inactive');default:'Active'" json:"status"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEmployee struct {
	UserId int    `json:"user_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Phone  string `json:"phone"`
}

func employeeCacheKey(companyId int, userId int) string {
	return fmt.Sprintf("Employee:%d:%d", companyId, userId)
}

// GetEmployeeByUser resolves the calling user to the employee directory row,
// redis-cached. Inactive employees resolve like missing ones.
func GetEmployeeByUser(ctx context.Context, companyId int, userId int) (*Employee, error) {

	var employee Employee
	cacheKey := employeeCacheKey(companyId, userId)
	exists, err := config.GetRedisObject(cacheKey, &employee)
	if err == nil && exists && employee.ID > 0 {
		return &employee, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).
		Where("company_id = ? AND user_id = ? AND status = ?", companyId, userId, EmployeeStatusActive).
		First(&employee).Error
	if err != nil {
		return nil, utils.NewNotFoundError("employee")
	}

	if cacheErr := config.SetRedisObject(cacheKey, &employee, 10*time.Minute); cacheErr != nil {
		config.LogError(config.GetLogger(), "employee", "GetEmployeeByUser", "Failed to cache employee", cacheKey, cacheErr)
	}
	return &employee, nil
}

func CreateEmployee(ctx context.Context, input *NewEmployee) (*Employee, error) {

	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, errors.New("company id is required")
	}

	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("invalid phone number")
		}
	}

	employee := Employee{
		CompanyId: companyId,
		UserId:    input.UserId,
		Name:      input.Name,
		Phone:     input.Phone,
		Status:    EmployeeStatusActive,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&employee).Error; err != nil {
		if utils.IsDuplicateKeyErr(err) {
			return nil, utils.NewValidationError("employee already exists for this user")
		}
		return nil, err
	}

	// Drop any stale cached lookup for this user.
	_ = config.RemoveRedisKey(employeeCacheKey(companyId, input.UserId))

	return &employee, nil
}
