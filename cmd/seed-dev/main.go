// seed-dev creates a minimal development dataset: one employee, one machine,
// one work order, and an active production group + schedule ready to receive
// quantity updates.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-dev
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

const (
	seedCompanyId = 1
	seedUserId    = 1
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()

	ctx = utils.SetCompanyIdInContext(ctx, seedCompanyId)
	ctx = utils.SetUserIdInContext(ctx, seedUserId)
	ctx = utils.SetUserNameInContext(ctx, "Seed")

	employee, err := models.CreateEmployee(ctx, &models.NewEmployee{
		UserId: seedUserId,
		Name:   "Dev Operator",
		Phone:  "+959790000001",
	})
	if err != nil {
		// Re-running the seeder is fine; resolve the existing row instead.
		employee, err = models.GetEmployeeByUser(ctx, seedCompanyId, seedUserId)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed employee: %v\n", err)
			os.Exit(1)
		}
	}

	machine, err := models.CreateMachine(ctx, &models.NewMachine{
		MachineGenerateId: "MC-000001",
		Name:              "Dev Cutting Machine",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed machine: %v\n", err)
		os.Exit(1)
	}

	workOrder, err := models.CreateWorkOrder(ctx, &models.NewWorkOrder{
		WorkGenerateId:     "WO-000001",
		SkuName:            "DEV-SKU-A",
		Priority:           "High",
		WorkOrderSkuValues: `[{"layer_id": 1, "layer_name": "Base", "qty": 100}]`,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed work order: %v\n", err)
		os.Exit(1)
	}

	group, err := models.CreateProductionGroup(ctx, &models.NewProductionGroup{
		GroupQty:   decimal.NewFromInt(100),
		GroupValue: fmt.Sprintf(`[{"work_order_id": %d, "layer_id": 1}]`, workOrder.ID),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed production group: %v\n", err)
		os.Exit(1)
	}

	schedule, err := models.CreateProductionSchedule(ctx, &models.NewProductionSchedule{
		ProductionGroupId: group.ID,
		EmployeeId:        employee.ID,
		MachineId:         machine.ID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed production schedule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded: employee=%d machine=%d work_order=%d group=%d (%s) schedule=%d\n",
		employee.ID, machine.ID, workOrder.ID, group.ID, group.GroupGenerateId, schedule.ID)
}
