package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ── 目录库（只读） ──

// TaskTemplate 任务模板表，对应 task_templates
type TaskTemplate struct {
	TaskTemplateID string `gorm:"type:uuid;primaryKey"         json:"task_template_id"`
	Name           string `gorm:"type:varchar(200);not null"   json:"name"`
	Description    string `gorm:"type:text"                    json:"description,omitempty"`
	BaseModel

	// 关联
	Fields []FieldTemplate `gorm:"foreignKey:TaskTemplateID;references:TaskTemplateID" json:"fields,omitempty"`
}

func (TaskTemplate) TableName() string { return "task_templates" }

func (t *TaskTemplate) BeforeCreate(*gorm.DB) error {
	ensureID(&t.TaskTemplateID)
	return nil
}

// FieldTemplate 表单字段模板表，对应 field_templates
type FieldTemplate struct {
	FieldTemplateID string         `gorm:"type:uuid;primaryKey"                    json:"field_template_id"`
	TaskTemplateID  string         `gorm:"type:uuid;not null;index"                json:"task_template_id"`
	Label           string         `gorm:"type:varchar(200);not null"              json:"label"`
	FieldType       string         `gorm:"type:varchar(20);not null;default:'text'" json:"field_type"` // text | number | boolean | select | date | photo | signature
	Required        bool           `gorm:"not null;default:false"                  json:"required"`
	Position        int            `gorm:"not null;default:0"                      json:"position"`
	Config          datatypes.JSON `json:"config,omitempty"`
	BaseModel
}

func (FieldTemplate) TableName() string { return "field_templates" }

func (f *FieldTemplate) BeforeCreate(*gorm.DB) error {
	ensureID(&f.FieldTemplateID)
	return nil
}

// Routine 例程表，对应 routines
type Routine struct {
	RoutineID   string `gorm:"type:uuid;primaryKey"       json:"routine_id"`
	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Description string `gorm:"type:text"                  json:"description,omitempty"`
	BaseModel

	// 关联
	Tasks []RoutineTaskTemplate `gorm:"foreignKey:RoutineID;references:RoutineID" json:"tasks,omitempty"`
}

func (Routine) TableName() string { return "routines" }

func (r *Routine) BeforeCreate(*gorm.DB) error {
	ensureID(&r.RoutineID)
	return nil
}

// RoutineTaskTemplate 例程任务表，对应 routine_task_templates
// DayNumber 为空表示例程挂载的每一天都适用；否则只适用于指定的工单日序号
type RoutineTaskTemplate struct {
	RoutineTaskTemplateID string `gorm:"type:uuid;primaryKey"      json:"routine_task_template_id"`
	RoutineID             string `gorm:"type:uuid;not null;index"  json:"routine_id"`
	TaskTemplateID        string `gorm:"type:uuid;not null"        json:"task_template_id"`
	Position              int    `gorm:"not null;default:0"        json:"position"`
	DayNumber             *int   `gorm:"type:smallint"             json:"day_number,omitempty"`
	BaseModel

	// 关联
	TaskTemplate *TaskTemplate `gorm:"foreignKey:TaskTemplateID;references:TaskTemplateID" json:"task_template,omitempty"`
}

func (RoutineTaskTemplate) TableName() string { return "routine_task_templates" }

func (t *RoutineTaskTemplate) BeforeCreate(*gorm.DB) error {
	ensureID(&t.RoutineTaskTemplateID)
	return nil
}

// AppliesTo 判断例程任务是否适用于指定工单日序号
func (t *RoutineTaskTemplate) AppliesTo(dayNumber int) bool {
	return t.DayNumber == nil || *t.DayNumber == dayNumber
}

// [自证通过] internal/model/catalog.go
