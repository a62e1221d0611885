package core

import "growcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Facility           = domain.Facility
	Room               = domain.Room
	RoomLayout         = domain.RoomLayout
	Rack               = domain.Rack
	Tray               = domain.Tray
	Coordinate         = domain.Coordinate
	Strain             = domain.Strain
	PlantBatch         = domain.PlantBatch
	Plant              = domain.Plant
	MetrcTag           = domain.MetrcTag
	Harvest            = domain.Harvest
	PlantEvent         = domain.PlantEvent
	EventMetadata      = domain.EventMetadata
	EventFilter        = domain.EventFilter
	EventPage          = domain.EventPage
	GrowthPhase        = domain.GrowthPhase
	PlantStatus        = domain.PlantStatus
	TagStatus          = domain.TagStatus
	HarvestStatus      = domain.HarvestStatus
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityFacility   = domain.EntityFacility
	EntityRoom       = domain.EntityRoom
	EntityStrain     = domain.EntityStrain
	EntityPlantBatch = domain.EntityPlantBatch
	EntityPlant      = domain.EntityPlant
	EntityMetrcTag   = domain.EntityMetrcTag
	EntityHarvest    = domain.EntityHarvest
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionAppend = domain.ActionAppend
)

const (
	PlantStatusActive    = domain.PlantStatusActive
	PlantStatusHarvested = domain.PlantStatusHarvested
	PlantStatusDestroyed = domain.PlantStatusDestroyed
)

const (
	TagStatusAvailable = domain.TagStatusAvailable
	TagStatusAssigned  = domain.TagStatusAssigned
	TagStatusRetired   = domain.TagStatusRetired
)
