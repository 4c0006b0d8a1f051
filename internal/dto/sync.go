package dto

import "encoding/json"

// ── 同步模块 DTO ──
// 时间戳均为 epoch 毫秒

// SyncTaskInstance 客户端上传的任务实例
// 挂载引用二选一：routine_attachment_id + routine_task_template_id，或 standalone_attachment_id
type SyncTaskInstance struct {
	ClientID               string `json:"client_id"`
	WorkOrderDayID         string `json:"work_order_day_id"`
	RoutineAttachmentID    string `json:"routine_attachment_id,omitempty"`
	RoutineTaskTemplateID  string `json:"routine_task_template_id,omitempty"`
	StandaloneAttachmentID string `json:"standalone_attachment_id,omitempty"`
	Label                  string `json:"label,omitempty"`
	Status                 string `json:"status"`
	StartedAt              *int64 `json:"started_at,omitempty"`
	CompletedAt            *int64 `json:"completed_at,omitempty"`
	CreatedAt              int64  `json:"created_at"`
	UpdatedAt              int64  `json:"updated_at"`
}

// SyncFieldResponse 客户端上传的表单响应
// 所属实例优先按 task_instance_id（服务端 ID）解析，否则按 task_instance_client_id
type SyncFieldResponse struct {
	ClientID             string          `json:"client_id"`
	TaskInstanceID       string          `json:"task_instance_id,omitempty"`
	TaskInstanceClientID string          `json:"task_instance_client_id,omitempty"`
	FieldTemplateID      string          `json:"field_template_id"`
	Value                json.RawMessage `json:"value,omitempty"`
	BlobHandle           *string         `json:"blob_handle,omitempty"`
	CreatedAt            int64           `json:"created_at"`
	UpdatedAt            int64           `json:"updated_at"`
}

// BatchSyncRequest 批量上传请求
type BatchSyncRequest struct {
	TaskInstances  []SyncTaskInstance  `json:"task_instances"`
	FieldResponses []SyncFieldResponse `json:"field_responses"`
}

// SyncItemResult 单条上传结果
// status: created | updated | unchanged | merged | stale | read_only | failed
type SyncItemResult struct {
	ClientID  string `json:"client_id"`
	ServerID  string `json:"server_id,omitempty"`
	Status    string `json:"status"`
	ErrorCode int    `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchSyncResponse 批量上传结果，顺序与请求一致
type BatchSyncResponse struct {
	TaskInstanceResults  []SyncItemResult `json:"task_instance_results"`
	FieldResponseResults []SyncItemResult `json:"field_response_results"`
}

// TaskInstanceResponse 任务实例
type TaskInstanceResponse struct {
	ID                     string  `json:"id"`
	ClientID               string  `json:"client_id"`
	WorkOrderDayID         string  `json:"work_order_day_id"`
	PersonXID              string  `json:"person_xid"`
	RoutineAttachmentID    *string `json:"routine_attachment_id,omitempty"`
	RoutineTaskTemplateID  *string `json:"routine_task_template_id,omitempty"`
	StandaloneAttachmentID *string `json:"standalone_attachment_id,omitempty"`
	TaskTemplateID         string  `json:"task_template_id"`
	Label                  string  `json:"label"`
	Status                 string  `json:"status"`
	StartedAt              *int64  `json:"started_at,omitempty"`
	CompletedAt            *int64  `json:"completed_at,omitempty"`
	State                  string  `json:"state"`
	OrphanedAt             *int64  `json:"orphaned_at,omitempty"`
	CreatedAt              int64   `json:"created_at"`
	UpdatedAt              int64   `json:"updated_at"`
}

// FieldResponseResponse 表单响应
type FieldResponseResponse struct {
	ID              string          `json:"id"`
	ClientID        string          `json:"client_id"`
	TaskInstanceID  string          `json:"task_instance_id"`
	FieldTemplateID string          `json:"field_template_id"`
	Value           json.RawMessage `json:"value,omitempty"`
	BlobHandle      *string         `json:"blob_handle,omitempty"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
}

// FieldTemplateResponse 字段模板
type FieldTemplateResponse struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	FieldType string          `json:"field_type"`
	Required  bool            `json:"required"`
	Position  int             `json:"position"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// TaskTemplateResponse 任务模板（含字段）
type TaskTemplateResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Fields      []FieldTemplateResponse `json:"fields"`
}

// DayTaskResponse 工单日上适用的一项任务（例程任务或独立任务）
type DayTaskResponse struct {
	Kind                   string               `json:"kind"` // routine | standalone
	RoutineAttachmentID    string               `json:"routine_attachment_id,omitempty"`
	RoutineTaskTemplateID  string               `json:"routine_task_template_id,omitempty"`
	RoutineName            string               `json:"routine_name,omitempty"`
	StandaloneAttachmentID string               `json:"standalone_attachment_id,omitempty"`
	TaskTemplate           TaskTemplateResponse `json:"task_template"`
}

// SyncAssignmentResponse 展开后的分配
type SyncAssignmentResponse struct {
	AssignmentID   string            `json:"assignment_id"`
	WorkOrderDayID string            `json:"work_order_day_id"`
	DayNumber      int               `json:"day_number"`
	Date           string            `json:"date"` // YYYY-MM-DD
	DayStatus      string            `json:"day_status"`
	RequiredPeople int               `json:"required_people"`
	WorkOrderID    string            `json:"work_order_id"`
	WorkOrderTitle string            `json:"work_order_title"`
	FaenaID        string            `json:"faena_id"`
	FaenaName      string            `json:"faena_name"`
	CustomerName   string            `json:"customer_name"`
	Tasks          []DayTaskResponse `json:"tasks"`
}

// InitialSyncResponse 首次同步数据
type InitialSyncResponse struct {
	PersonXID      string                   `json:"person_xid"`
	Assignments    []SyncAssignmentResponse `json:"assignments"`
	TaskInstances  []TaskInstanceResponse   `json:"task_instances"`
	FieldResponses []FieldResponseResponse  `json:"field_responses"`
	Checkpoint     int64                    `json:"checkpoint"`
}

// SyncSinceRequest 增量拉取查询参数
type SyncSinceRequest struct {
	Since int64 `form:"since" binding:"min=0"`
}

// TaskInstanceDeltaResponse 任务实例增量
type TaskInstanceDeltaResponse struct {
	Items      []TaskInstanceResponse `json:"items"`
	Checkpoint int64                  `json:"checkpoint"`
}

// FieldResponseDeltaResponse 表单响应增量
type FieldResponseDeltaResponse struct {
	Items      []FieldResponseResponse `json:"items"`
	Checkpoint int64                   `json:"checkpoint"`
}

// [自证通过] internal/dto/sync.go
