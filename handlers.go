package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/factory_backend/middlewares"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondModelError maps the model-layer error taxonomy onto HTTP statuses:
// not-found 404, validation 400, conflict 409, everything else 500.
func respondModelError(c *gin.Context, err error) {
	var notFound *utils.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": notFound.Error()})
		return
	}
	var validation *utils.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": validation.Error()})
		return
	}
	var conflict *utils.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": conflict.Error(), "retryable": conflict.Retryable})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "internal server error"})
}

func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request", "errors": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid " + name})
		return 0, false
	}
	return id, true
}

func updateGroupQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupId, ok := pathId(c, "groupId")
		if !ok {
			return
		}

		var input models.UpdateGroupQuantityInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		result, err := models.ApplyManufacturedQuantity(c.Request.Context(), groupId, &input)
		if err != nil {
			respondModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "quantity updated successfully",
			"data":    result,
		})
	}
}

func groupHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupId, ok := pathId(c, "group_id")
		if !ok {
			return
		}

		result, err := models.GetGroupHistory(c.Request.Context(), groupId)
		if err != nil {
			respondModelError(c, err)
			return
		}

		// Resolve employee/machine names through the request-scoped loaders
		// so repeated ids across history rows cost one query each.
		ctx := c.Request.Context()
		for _, entry := range result.ProductionHistories {
			if employee, loadErr := middlewares.GetEmployee(ctx, entry.EmployeeId); loadErr == nil && employee != nil {
				entry.Employee = employee.Name
			}
			if machine, loadErr := middlewares.GetMachine(ctx, entry.MachineId); loadErr == nil && machine != nil {
				entry.Machine = machine.Name
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    result,
		})
	}
}

func getGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}

		view, err := models.GetProductionGroup(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    view,
		})
	}
}

func groupMaterialsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}

		materials, err := models.GetGroupMaterials(c.Request.Context(), id)
		if err != nil {
			respondModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"materials": materials},
		})
	}
}

func createGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductionGroup
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		group, err := models.CreateProductionGroup(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "group created successfully",
			"data":    group,
		})
	}
}

func createScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductionSchedule
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}

		schedule, err := models.CreateProductionSchedule(c.Request.Context(), &input)
		if err != nil {
			respondModelError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "schedule created successfully",
			"data":    schedule,
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "route not found"})
}
