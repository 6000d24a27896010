package models

type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "Active"
	GroupStatusInactive GroupStatus = "Inactive"
)

type ProductionCompleted string

const (
	ProductionCompletedPending   ProductionCompleted = "Pending"
	ProductionCompletedCompleted ProductionCompleted = "Completed"
)

type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "Active"
	ScheduleStatusInactive  ScheduleStatus = "Inactive"
	ScheduleStatusCompleted ScheduleStatus = "Completed"
)

type EmployeeStatus string

const (
	EmployeeStatusActive   EmployeeStatus = "Active"
	EmployeeStatusInactive EmployeeStatus = "Inactive"
)

type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "Active"
	MachineStatusMaintenance MachineStatus = "Maintenance"
	MachineStatusInactive    MachineStatus = "Inactive"
)

type WorkOrderStage string

const (
	WorkOrderStagePending    WorkOrderStage = "Pending"
	WorkOrderStageGrouped    WorkOrderStage = "Grouped"
	WorkOrderStageProduction WorkOrderStage = "Production"
	WorkOrderStageDone       WorkOrderStage = "Done"
)
