package models

import (
	"log"

	"bitbucket.org/mmdatafocus/factory_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ProductionGroup{}, &ProductionSchedule{}, &GroupHistory{},
		&Employee{}, &Machine{}, &WorkOrder{},
		&Inventory{}, &AllocationHistory{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
