package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/config"
	"github.com/MarcoNaik/tectramin-sub001/internal/dto"
	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	pkgerrors "github.com/MarcoNaik/tectramin-sub001/pkg/errors"
	"github.com/MarcoNaik/tectramin-sub001/pkg/metrics"
)

// ── 同步模块业务错误 ──

var (
	ErrInvalidSyncBatch      = errors.New("同步批次数据不合法")
	ErrBatchTooLarge         = errors.New("同步批次条目数超过上限")
	ErrDanglingReference     = errors.New("引用的任务实例不存在")
	ErrInstanceNotOwned      = errors.New("任务实例不属于当前人员")
	ErrFieldTemplateNotFound = errors.New("字段模板不存在")
)

// 单条同步结果状态
const (
	SyncStatusCreated   = "created"
	SyncStatusUpdated   = "updated"
	SyncStatusUnchanged = "unchanged"
	SyncStatusMerged    = "merged"
	SyncStatusStale     = "stale"
	SyncStatusReadOnly  = "read_only"
	SyncStatusFailed    = "failed"
)

// 单条失败错误码（21xxx）
const (
	SyncCodeInvalidItem           = 21001
	SyncCodeBatchTooLarge         = 21002
	SyncCodeDanglingReference     = 21003
	SyncCodeInstanceNotOwned      = 21004
	SyncCodeDayNotFound           = 21005
	SyncCodeAttachmentNotFound    = 21006
	SyncCodeTaskTemplateNotFound  = 21007
	SyncCodeFieldTemplateNotFound = 21008
	SyncCodeConflict              = 21009
)

const (
	syncKindTaskInstance  = "task_instance"
	syncKindFieldResponse = "field_response"
)

// SyncService 离线同步网关接口
//
// 设计说明：
//   - 整个 BatchSync 为一个事务，每条记录在独立 SAVEPOINT 中执行
//   - 业务错误只让该条记录失败；基础设施错误终止整个批次
//   - updated_at 是服务端单调游标；client_updated_at 用于最后写入者胜出判定
type SyncService interface {
	BatchSync(ctx context.Context, personXID string, req *dto.BatchSyncRequest) (*dto.BatchSyncResponse, error)
	GetInitialSyncData(ctx context.Context, personXID string) (*dto.InitialSyncResponse, error)
	GetTaskInstancesSince(ctx context.Context, personXID string, since int64) (*dto.TaskInstanceDeltaResponse, error)
	GetFieldResponsesSince(ctx context.Context, personXID string, since int64) (*dto.FieldResponseDeltaResponse, error)
}

type syncService struct {
	repo          *repository.Repository
	maxBatchItems int
	now           func() time.Time
	logger        *zap.Logger
}

// NewSyncService 创建 SyncService 实例
func NewSyncService(repo *repository.Repository, cfg *config.SyncConfig, logger *zap.Logger) SyncService {
	return newSyncService(repo, cfg.MaxBatchItems, time.Now, logger)
}

func newSyncService(repo *repository.Repository, maxBatchItems int, now func() time.Time, logger *zap.Logger) *syncService {
	return &syncService{repo: repo, maxBatchItems: maxBatchItems, now: now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// BatchSync
// ════════════════════════════════════════════════════════════

func (s *syncService) BatchSync(ctx context.Context, personXID string, req *dto.BatchSyncRequest) (*dto.BatchSyncResponse, error) {
	if err := validateBatch(req, s.maxBatchItems); err != nil {
		return nil, err
	}
	metrics.ObserveSyncBatch(len(req.TaskInstances) + len(req.FieldResponses))

	resp := &dto.BatchSyncResponse{
		TaskInstanceResults:  make([]dto.SyncItemResult, 0, len(req.TaskInstances)),
		FieldResponseResults: make([]dto.SyncItemResult, 0, len(req.FieldResponses)),
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		person, err := txRepo.Person.GetByXID(ctx, personXID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPersonNotFound
			}
			return err
		}

		b := &batchApplier{
			repo:     txRepo,
			person:   person.Ref(),
			nowMs:    s.now().UnixMilli(),
			resolved: make(map[string]string, len(req.TaskInstances)),
			logger:   s.logger,
		}

		// 先实例后响应，响应可引用同批次新建的实例
		for i := range req.TaskInstances {
			item := &req.TaskInstances[i]
			result, err := b.run(ctx, syncKindTaskInstance, item.ClientID, func(r *repository.Repository) (dto.SyncItemResult, error) {
				return b.applyTaskInstance(ctx, r, item)
			})
			if err != nil {
				return err
			}
			if result.ServerID != "" {
				b.resolved[item.ClientID] = result.ServerID
			}
			resp.TaskInstanceResults = append(resp.TaskInstanceResults, result)
		}

		for i := range req.FieldResponses {
			item := &req.FieldResponses[i]
			result, err := b.run(ctx, syncKindFieldResponse, item.ClientID, func(r *repository.Repository) (dto.SyncItemResult, error) {
				return b.applyFieldResponse(ctx, r, item)
			})
			if err != nil {
				return err
			}
			resp.FieldResponseResults = append(resp.FieldResponseResults, result)
		}
		return nil
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("批量同步失败", zap.String("person_xid", personXID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("批量同步完成",
		zap.String("person_xid", personXID),
		zap.Int("task_instances", len(resp.TaskInstanceResults)),
		zap.Int("field_responses", len(resp.FieldResponseResults)),
	)
	return resp, nil
}

// validateBatch 写入前校验整个批次，任一条不合法即拒绝全部
func validateBatch(req *dto.BatchSyncRequest, maxItems int) error {
	if req == nil {
		return fmt.Errorf("%w: 请求体为空", ErrInvalidSyncBatch)
	}
	if n := len(req.TaskInstances) + len(req.FieldResponses); maxItems > 0 && n > maxItems {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, n, maxItems)
	}

	seen := make(map[string]struct{}, len(req.TaskInstances))
	for i, item := range req.TaskInstances {
		if item.ClientID == "" {
			return fmt.Errorf("%w: task_instances[%d] 缺少 client_id", ErrInvalidSyncBatch, i)
		}
		if _, dup := seen[item.ClientID]; dup {
			return fmt.Errorf("%w: task_instances[%d] client_id 重复", ErrInvalidSyncBatch, i)
		}
		seen[item.ClientID] = struct{}{}

		if item.WorkOrderDayID == "" {
			return fmt.Errorf("%w: task_instances[%d] 缺少 work_order_day_id", ErrInvalidSyncBatch, i)
		}
		if !model.InstanceStatus(item.Status).Valid() {
			return fmt.Errorf("%w: task_instances[%d] status 非法: %q", ErrInvalidSyncBatch, i, item.Status)
		}
		if !syncRef(item).Valid() {
			return fmt.Errorf("%w: task_instances[%d] 挂载引用必须且只能是一种", ErrInvalidSyncBatch, i)
		}
		if item.CreatedAt < 0 || item.UpdatedAt < 0 {
			return fmt.Errorf("%w: task_instances[%d] 时间戳不能为负", ErrInvalidSyncBatch, i)
		}
	}

	seen = make(map[string]struct{}, len(req.FieldResponses))
	for i, item := range req.FieldResponses {
		if item.ClientID == "" {
			return fmt.Errorf("%w: field_responses[%d] 缺少 client_id", ErrInvalidSyncBatch, i)
		}
		if _, dup := seen[item.ClientID]; dup {
			return fmt.Errorf("%w: field_responses[%d] client_id 重复", ErrInvalidSyncBatch, i)
		}
		seen[item.ClientID] = struct{}{}

		if item.FieldTemplateID == "" {
			return fmt.Errorf("%w: field_responses[%d] 缺少 field_template_id", ErrInvalidSyncBatch, i)
		}
		if item.TaskInstanceID == "" && item.TaskInstanceClientID == "" {
			return fmt.Errorf("%w: field_responses[%d] 缺少所属任务实例", ErrInvalidSyncBatch, i)
		}
		if len(item.Value) > 0 && !json.Valid(item.Value) {
			return fmt.Errorf("%w: field_responses[%d] value 不是合法 JSON", ErrInvalidSyncBatch, i)
		}
		if item.CreatedAt < 0 || item.UpdatedAt < 0 {
			return fmt.Errorf("%w: field_responses[%d] 时间戳不能为负", ErrInvalidSyncBatch, i)
		}
	}
	return nil
}

func syncRef(item dto.SyncTaskInstance) model.AttachmentRef {
	return model.AttachmentRef{
		RoutineAttachmentID:    item.RoutineAttachmentID,
		RoutineTaskTemplateID:  item.RoutineTaskTemplateID,
		StandaloneAttachmentID: item.StandaloneAttachmentID,
	}
}

// ═══════════════════════════════════════════════════════════
// batchApplier 单个批次的执行上下文
// ═══════════════════════════════════════════════════════════

type batchApplier struct {
	repo     *repository.Repository
	person   model.PersonRef
	nowMs    int64
	resolved map[string]string // 本批次实例 client_id → 服务端 ID
	logger   *zap.Logger
}

// run 在 SAVEPOINT 中执行单条记录；业务错误转为 failed 结果
func (b *batchApplier) run(ctx context.Context, kind, clientID string, fn func(r *repository.Repository) (dto.SyncItemResult, error)) (dto.SyncItemResult, error) {
	var result dto.SyncItemResult
	err := b.repo.Transaction(ctx, func(itemRepo *repository.Repository) error {
		var err error
		result, err = fn(itemRepo)
		return err
	})
	if err != nil {
		code, ok := itemErrorCode(err)
		if !ok {
			return result, err
		}
		b.logger.Debug("同步条目失败",
			zap.String("kind", kind),
			zap.String("client_id", clientID),
			zap.Int("error_code", code),
			zap.Error(err),
		)
		result = dto.SyncItemResult{ClientID: clientID, Status: SyncStatusFailed, ErrorCode: code, Error: err.Error()}
	}
	metrics.RecordSyncItem(kind, result.Status)
	return result, nil
}

// stamp 返回严格大于旧值的服务端游标
func (b *batchApplier) stamp(prev int64) int64 {
	if b.nowMs > prev {
		return b.nowMs
	}
	return prev + 1
}

// ── 任务实例 ──

func (b *batchApplier) applyTaskInstance(ctx context.Context, r *repository.Repository, item *dto.SyncTaskInstance) (dto.SyncItemResult, error) {
	result := dto.SyncItemResult{ClientID: item.ClientID}

	stored, aliased, err := findInstance(ctx, r, item.ClientID)
	if err != nil {
		return result, err
	}
	if stored != nil {
		status, err := b.patchOwnedInstance(ctx, r, stored, item)
		if err != nil {
			return result, err
		}
		if aliased {
			status = mergedStatus(status)
		}
		result.ServerID, result.Status = stored.TaskInstanceID, status
		return result, nil
	}

	day, err := loadDay(ctx, r, item.WorkOrderDayID)
	if err != nil {
		return result, err
	}
	ref := syncRef(*item)
	templateID, templateLabel, err := resolveRef(ctx, r, day, ref)
	if err != nil {
		return result, err
	}

	label := item.Label
	if label == "" {
		label = templateLabel
	}
	inst := &model.TaskInstance{
		ClientID:        item.ClientID,
		WorkOrderDayID:  day.WorkOrderDayID,
		PersonXID:       b.person.XID,
		TaskTemplateID:  templateID,
		Label:           label,
		Status:          model.InstanceStatus(item.Status),
		StartedAt:       item.StartedAt,
		CompletedAt:     item.CompletedAt,
		State:           model.InstanceStateActive,
		ClientUpdatedAt: item.UpdatedAt,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       b.nowMs,
	}
	inst.SetRef(ref)

	created, err := r.TaskInstance.Insert(ctx, inst)
	if err != nil {
		return result, err
	}
	if created {
		result.ServerID, result.Status = inst.TaskInstanceID, SyncStatusCreated
		return result, nil
	}

	// 插入未生效：同一 client_id 已被并发写入，或该身份已由服务端物化
	if existing, err := r.TaskInstance.GetByClientID(ctx, item.ClientID); err == nil {
		status, err := b.patchOwnedInstance(ctx, r, existing, item)
		if err != nil {
			return result, err
		}
		result.ServerID, result.Status = existing.TaskInstanceID, status
		return result, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return result, err
	}

	existing, err := r.TaskInstance.GetByIdentity(ctx, day.WorkOrderDayID, b.person.XID, ref.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrMaterializationConflict
		}
		return result, err
	}
	if _, err := r.TaskInstance.CreateAlias(ctx, &model.TaskInstanceAlias{
		ClientID:       item.ClientID,
		TaskInstanceID: existing.TaskInstanceID,
	}); err != nil {
		return result, err
	}
	b.logger.Debug("离线实例与已有实例合并",
		zap.String("client_id", item.ClientID),
		zap.String("task_instance_id", existing.TaskInstanceID),
	)

	status, err := b.patchInstance(ctx, r, existing, item)
	if err != nil {
		return result, err
	}
	result.ServerID, result.Status = existing.TaskInstanceID, mergedStatus(status)
	return result, nil
}

// patchOwnedInstance 校验归属后更新实例
func (b *batchApplier) patchOwnedInstance(ctx context.Context, r *repository.Repository, stored *model.TaskInstance, item *dto.SyncTaskInstance) (string, error) {
	if stored.PersonXID != b.person.XID {
		return "", ErrInstanceNotOwned
	}
	return b.patchInstance(ctx, r, stored, item)
}

// patchInstance 只更新可变字段；结构字段（工单日、挂载、模板）忽略
func (b *batchApplier) patchInstance(ctx context.Context, r *repository.Repository, stored *model.TaskInstance, item *dto.SyncTaskInstance) (string, error) {
	if stored.IsOrphaned() {
		return SyncStatusReadOnly, nil
	}

	label := item.Label
	if label == "" {
		label = stored.Label
	}
	same := stored.Label == label &&
		string(stored.Status) == item.Status &&
		equalInt64Ptr(stored.StartedAt, item.StartedAt) &&
		equalInt64Ptr(stored.CompletedAt, item.CompletedAt)

	switch {
	case same && item.UpdatedAt <= stored.ClientUpdatedAt:
		return SyncStatusUnchanged, nil
	case item.UpdatedAt < stored.ClientUpdatedAt:
		return SyncStatusStale, nil
	}

	prev := stored.UpdatedAt
	stored.Label = label
	stored.Status = model.InstanceStatus(item.Status)
	stored.StartedAt = item.StartedAt
	stored.CompletedAt = item.CompletedAt
	stored.ClientUpdatedAt = item.UpdatedAt
	stored.UpdatedAt = b.stamp(prev)
	if err := r.TaskInstance.UpdateMutable(ctx, stored, prev); err != nil {
		return "", err
	}
	return SyncStatusUpdated, nil
}

// findInstance 按 client_id 查找实例，其次查别名
func findInstance(ctx context.Context, r *repository.Repository, clientID string) (*model.TaskInstance, bool, error) {
	inst, err := r.TaskInstance.GetByClientID(ctx, clientID)
	if err == nil {
		return inst, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	inst, err = r.TaskInstance.GetByAlias(ctx, clientID)
	if err == nil {
		return inst, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, nil
}

// resolveRef 校验挂载引用并返回模板 ID 与名称
func resolveRef(ctx context.Context, r *repository.Repository, day *model.WorkOrderDay, ref model.AttachmentRef) (string, string, error) {
	if ref.IsStandalone() {
		sa, err := r.Schedule.GetStandaloneAttachment(ctx, ref.StandaloneAttachmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", ErrAttachmentNotFound
			}
			return "", "", err
		}
		if sa.WorkOrderDayID != day.WorkOrderDayID {
			return "", "", fmt.Errorf("%w: 挂载不属于该工单日", ErrAttachmentNotFound)
		}
		tmpl, err := r.Catalog.GetTaskTemplate(ctx, sa.TaskTemplateID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", ErrTaskTemplateNotFound
			}
			return "", "", err
		}
		return tmpl.TaskTemplateID, tmpl.Name, nil
	}

	ra, err := r.Schedule.GetRoutineAttachment(ctx, ref.RoutineAttachmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrAttachmentNotFound
		}
		return "", "", err
	}
	if ra.WorkOrderDayID != day.WorkOrderDayID {
		return "", "", fmt.Errorf("%w: 挂载不属于该工单日", ErrAttachmentNotFound)
	}
	rtt, err := r.Catalog.GetRoutineTask(ctx, ref.RoutineTaskTemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrTaskTemplateNotFound
		}
		return "", "", err
	}
	if rtt.RoutineID != ra.RoutineID {
		return "", "", fmt.Errorf("%w: 例程任务不属于该挂载的例程", ErrAttachmentNotFound)
	}
	if !rtt.AppliesTo(day.DayNumber) {
		return "", "", fmt.Errorf("%w: 例程任务不适用于第 %d 天", ErrAttachmentNotFound, day.DayNumber)
	}
	return rtt.TaskTemplateID, templateName(rtt.TaskTemplate), nil
}

// ── 表单响应 ──

func (b *batchApplier) applyFieldResponse(ctx context.Context, r *repository.Repository, item *dto.SyncFieldResponse) (dto.SyncItemResult, error) {
	result := dto.SyncItemResult{ClientID: item.ClientID}

	stored, err := r.FieldResponse.GetByClientID(ctx, item.ClientID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return result, err
	}
	if stored != nil {
		status, err := b.patchOwnedResponse(ctx, r, stored, item)
		if err != nil {
			return result, err
		}
		result.ServerID, result.Status = stored.FieldResponseID, status
		return result, nil
	}

	parent, err := b.resolveParent(ctx, r, item)
	if err != nil {
		return result, err
	}
	if parent.PersonXID != b.person.XID {
		return result, ErrInstanceNotOwned
	}
	if parent.IsOrphaned() {
		result.Status = SyncStatusReadOnly
		return result, nil
	}

	ft, err := r.Catalog.GetFieldTemplate(ctx, item.FieldTemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrFieldTemplateNotFound
		}
		return result, err
	}
	if ft.TaskTemplateID != parent.TaskTemplateID {
		return result, fmt.Errorf("%w: 字段不属于该任务模板", ErrFieldTemplateNotFound)
	}

	resp := &model.FieldResponse{
		ClientID:        item.ClientID,
		TaskInstanceID:  parent.TaskInstanceID,
		FieldTemplateID: ft.FieldTemplateID,
		PersonXID:       b.person.XID,
		Value:           normalizeValue(item.Value),
		BlobHandle:      item.BlobHandle,
		ClientUpdatedAt: item.UpdatedAt,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       b.nowMs,
	}
	created, err := r.FieldResponse.Insert(ctx, resp)
	if err != nil {
		return result, err
	}
	if created {
		result.ServerID, result.Status = resp.FieldResponseID, SyncStatusCreated
		return result, nil
	}

	// 同一 client_id 已被并发写入
	existing, err := r.FieldResponse.GetByClientID(ctx, item.ClientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrMaterializationConflict
		}
		return result, err
	}
	status, err := b.patchOwnedResponse(ctx, r, existing, item)
	if err != nil {
		return result, err
	}
	result.ServerID, result.Status = existing.FieldResponseID, status
	return result, nil
}

// patchOwnedResponse 校验归属后按已存储响应的所属实例更新
func (b *batchApplier) patchOwnedResponse(ctx context.Context, r *repository.Repository, stored *model.FieldResponse, item *dto.SyncFieldResponse) (string, error) {
	if stored.PersonXID != b.person.XID {
		return "", ErrInstanceNotOwned
	}
	parent, err := r.TaskInstance.GetByID(ctx, stored.TaskInstanceID)
	if err != nil {
		return "", err
	}
	return b.patchResponse(ctx, r, stored, parent, item)
}

func (b *batchApplier) patchResponse(ctx context.Context, r *repository.Repository, stored *model.FieldResponse, parent *model.TaskInstance, item *dto.SyncFieldResponse) (string, error) {
	if parent.IsOrphaned() {
		return SyncStatusReadOnly, nil
	}

	same := sameJSONValue(stored.Value, item.Value) && equalStringPtr(stored.BlobHandle, item.BlobHandle)
	switch {
	case same && item.UpdatedAt <= stored.ClientUpdatedAt:
		return SyncStatusUnchanged, nil
	case item.UpdatedAt < stored.ClientUpdatedAt:
		return SyncStatusStale, nil
	}

	prev := stored.UpdatedAt
	stored.Value = normalizeValue(item.Value)
	stored.BlobHandle = item.BlobHandle
	stored.ClientUpdatedAt = item.UpdatedAt
	stored.UpdatedAt = b.stamp(prev)
	if err := r.FieldResponse.UpdateValue(ctx, stored, prev); err != nil {
		return "", err
	}
	return SyncStatusUpdated, nil
}

// resolveParent 解析响应所属实例
// 顺序：服务端 ID → 本批次 client_id → 已存储 client_id → 别名
func (b *batchApplier) resolveParent(ctx context.Context, r *repository.Repository, item *dto.SyncFieldResponse) (*model.TaskInstance, error) {
	if item.TaskInstanceID != "" {
		inst, err := r.TaskInstance.GetByID(ctx, item.TaskInstanceID)
		if err == nil {
			return inst, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if item.TaskInstanceClientID == "" {
			return nil, ErrDanglingReference
		}
	}

	if id, ok := b.resolved[item.TaskInstanceClientID]; ok {
		return r.TaskInstance.GetByID(ctx, id)
	}
	inst, _, err := findInstance(ctx, r, item.TaskInstanceClientID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, ErrDanglingReference
	}
	return inst, nil
}

// ════════════════════════════════════════════════════════════
// 首次同步 / 增量拉取
// ════════════════════════════════════════════════════════════

func (s *syncService) GetInitialSyncData(ctx context.Context, personXID string) (*dto.InitialSyncResponse, error) {
	// 游标取读取前服务端时间的前一毫秒：与读取同一毫秒写入的行 updated_at 不小于 now，
	// 必然出现在下一次增量中（客户端按 ID 覆盖，重复下发无副作用）
	checkpoint := s.safeWatermark()

	person, err := s.repo.Person.GetByXID(ctx, personXID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		s.logger.Error("查询人员失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}

	assignments, err := s.repo.Assignment.ListByPerson(ctx, person.PersonID)
	if err != nil {
		s.logger.Error("查询分配失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}
	dayIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		dayIDs = append(dayIDs, a.WorkOrderDayID)
	}

	var (
		routines    []model.RoutineAttachment
		standalones []model.StandaloneTaskAttachment
	)
	if len(dayIDs) > 0 {
		if routines, err = s.repo.Schedule.ListRoutineAttachments(ctx, dayIDs); err != nil {
			s.logger.Error("查询例程挂载失败", zap.Error(err))
			return nil, err
		}
		if standalones, err = s.repo.Schedule.ListStandaloneAttachments(ctx, dayIDs); err != nil {
			s.logger.Error("查询独立任务挂载失败", zap.Error(err))
			return nil, err
		}
	}

	instances, err := s.repo.TaskInstance.ListByPerson(ctx, personXID)
	if err != nil {
		s.logger.Error("查询任务实例失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}
	responses, err := s.repo.FieldResponse.ListByPerson(ctx, personXID)
	if err != nil {
		s.logger.Error("查询表单响应失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}

	resp := &dto.InitialSyncResponse{
		PersonXID:      personXID,
		Assignments:    make([]dto.SyncAssignmentResponse, 0, len(assignments)),
		TaskInstances:  make([]dto.TaskInstanceResponse, 0, len(instances)),
		FieldResponses: make([]dto.FieldResponseResponse, 0, len(responses)),
		Checkpoint:     checkpoint,
	}
	for i := range assignments {
		if assignments[i].Day == nil {
			continue
		}
		plan := planDay(assignments[i].Day, routines, standalones)
		resp.Assignments = append(resp.Assignments, toSyncAssignmentResponse(&assignments[i], plan))
	}
	for i := range instances {
		resp.TaskInstances = append(resp.TaskInstances, toTaskInstanceResponse(&instances[i]))
	}
	for i := range responses {
		resp.FieldResponses = append(resp.FieldResponses, toFieldResponseResponse(&responses[i]))
	}
	return resp, nil
}

func (s *syncService) GetTaskInstancesSince(ctx context.Context, personXID string, since int64) (*dto.TaskInstanceDeltaResponse, error) {
	watermark := s.safeWatermark()
	list, err := s.repo.TaskInstance.ListSince(ctx, personXID, since)
	if err != nil {
		s.logger.Error("增量拉取任务实例失败", zap.String("person_xid", personXID), zap.Int64("since", since), zap.Error(err))
		return nil, err
	}

	resp := &dto.TaskInstanceDeltaResponse{
		Items:      make([]dto.TaskInstanceResponse, 0, len(list)),
		Checkpoint: since,
	}
	for i := range list {
		resp.Items = append(resp.Items, toTaskInstanceResponse(&list[i]))
		resp.Checkpoint = advanceCheckpoint(resp.Checkpoint, list[i].UpdatedAt, watermark)
	}
	return resp, nil
}

func (s *syncService) GetFieldResponsesSince(ctx context.Context, personXID string, since int64) (*dto.FieldResponseDeltaResponse, error) {
	watermark := s.safeWatermark()
	list, err := s.repo.FieldResponse.ListSince(ctx, personXID, since)
	if err != nil {
		s.logger.Error("增量拉取表单响应失败", zap.String("person_xid", personXID), zap.Int64("since", since), zap.Error(err))
		return nil, err
	}

	resp := &dto.FieldResponseDeltaResponse{
		Items:      make([]dto.FieldResponseResponse, 0, len(list)),
		Checkpoint: since,
	}
	for i := range list {
		resp.Items = append(resp.Items, toFieldResponseResponse(&list[i]))
		resp.Checkpoint = advanceCheckpoint(resp.Checkpoint, list[i].UpdatedAt, watermark)
	}
	return resp, nil
}

// safeWatermark 可安全作为游标的最大值
// 与当前同一毫秒的写入可能尚未提交，游标不得越过 now-1
func (s *syncService) safeWatermark() int64 {
	return s.now().UnixMilli() - 1
}

// advanceCheckpoint 游标推进到已返回的最大 updatedAt，但不超过 watermark，且不回退
func advanceCheckpoint(current, updatedAt, watermark int64) int64 {
	next := min(updatedAt, watermark)
	if next > current {
		return next
	}
	return current
}

// ── 错误分类 ──

// itemErrorCode 返回单条失败的错误码；非业务错误返回 false
func itemErrorCode(err error) (int, bool) {
	switch {
	case errors.Is(err, ErrInvalidSyncBatch):
		return SyncCodeInvalidItem, true
	case errors.Is(err, ErrDanglingReference):
		return SyncCodeDanglingReference, true
	case errors.Is(err, ErrInstanceNotOwned):
		return SyncCodeInstanceNotOwned, true
	case errors.Is(err, ErrDayNotFound):
		return SyncCodeDayNotFound, true
	case errors.Is(err, ErrAttachmentNotFound):
		return SyncCodeAttachmentNotFound, true
	case errors.Is(err, ErrTaskTemplateNotFound):
		return SyncCodeTaskTemplateNotFound, true
	case errors.Is(err, ErrFieldTemplateNotFound):
		return SyncCodeFieldTemplateNotFound, true
	case errors.Is(err, pkgerrors.ErrOptimisticLock), errors.Is(err, ErrMaterializationConflict):
		return SyncCodeConflict, true
	case pkgerrors.IsUniqueViolation(err):
		// 并发写入撞上唯一索引，客户端重试即可
		return SyncCodeConflict, true
	}
	return 0, false
}

// mergedStatus 别名路径上的成功结果统一报告为 merged
func mergedStatus(status string) string {
	if status == SyncStatusUpdated || status == SyncStatusUnchanged {
		return SyncStatusMerged
	}
	return status
}

// ── 值比较 ──

// normalizeValue 空值与 JSON null 统一存为 NULL
func normalizeValue(raw json.RawMessage) datatypes.JSON {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return datatypes.JSON(trimmed)
}

// sameJSONValue 按 JSON 语义比较，忽略空白与键顺序
func sameJSONValue(a, b []byte) bool {
	na, nb := normalizeValue(a), normalizeValue(b)
	if na == nil || nb == nil {
		return na == nil && nb == nil
	}
	var va, vb interface{}
	if json.Unmarshal(na, &va) != nil || json.Unmarshal(nb, &vb) != nil {
		return bytes.Equal(na, nb)
	}
	return reflect.DeepEqual(va, vb)
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ── DTO 转换 ──

func toTaskInstanceResponse(t *model.TaskInstance) dto.TaskInstanceResponse {
	return dto.TaskInstanceResponse{
		ID:                     t.TaskInstanceID,
		ClientID:               t.ClientID,
		WorkOrderDayID:         t.WorkOrderDayID,
		PersonXID:              t.PersonXID,
		RoutineAttachmentID:    t.RoutineAttachmentID,
		RoutineTaskTemplateID:  t.RoutineTaskTemplateID,
		StandaloneAttachmentID: t.StandaloneAttachmentID,
		TaskTemplateID:         t.TaskTemplateID,
		Label:                  t.Label,
		Status:                 string(t.Status),
		StartedAt:              t.StartedAt,
		CompletedAt:            t.CompletedAt,
		State:                  string(t.State),
		OrphanedAt:             t.OrphanedAt,
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
	}
}

func toFieldResponseResponse(f *model.FieldResponse) dto.FieldResponseResponse {
	var value json.RawMessage
	if len(f.Value) > 0 {
		value = json.RawMessage(f.Value)
	}
	return dto.FieldResponseResponse{
		ID:              f.FieldResponseID,
		ClientID:        f.ClientID,
		TaskInstanceID:  f.TaskInstanceID,
		FieldTemplateID: f.FieldTemplateID,
		Value:           value,
		BlobHandle:      f.BlobHandle,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

func toTaskTemplateResponse(t *model.TaskTemplate) dto.TaskTemplateResponse {
	if t == nil {
		return dto.TaskTemplateResponse{Fields: []dto.FieldTemplateResponse{}}
	}
	resp := dto.TaskTemplateResponse{
		ID:          t.TaskTemplateID,
		Name:        t.Name,
		Description: t.Description,
		Fields:      make([]dto.FieldTemplateResponse, 0, len(t.Fields)),
	}
	for _, f := range t.Fields {
		var cfg json.RawMessage
		if len(f.Config) > 0 {
			cfg = json.RawMessage(f.Config)
		}
		resp.Fields = append(resp.Fields, dto.FieldTemplateResponse{
			ID:        f.FieldTemplateID,
			Label:     f.Label,
			FieldType: f.FieldType,
			Required:  f.Required,
			Position:  f.Position,
			Config:    cfg,
		})
	}
	return resp
}

func toSyncAssignmentResponse(a *model.Assignment, plan dayPlan) dto.SyncAssignmentResponse {
	day := a.Day
	resp := dto.SyncAssignmentResponse{
		AssignmentID:   a.AssignmentID,
		WorkOrderDayID: day.WorkOrderDayID,
		DayNumber:      day.DayNumber,
		Date:           day.Date.Format("2006-01-02"),
		DayStatus:      day.Status,
		RequiredPeople: day.RequiredPeople,
		Tasks:          make([]dto.DayTaskResponse, 0, len(plan.Tasks)),
	}
	if wo := day.WorkOrder; wo != nil {
		resp.WorkOrderID = wo.WorkOrderID
		resp.WorkOrderTitle = wo.Title
		if f := wo.Faena; f != nil {
			resp.FaenaID = f.FaenaID
			resp.FaenaName = f.Name
			resp.CustomerName = f.CustomerName
		}
	}

	for _, task := range plan.Tasks {
		item := dto.DayTaskResponse{TaskTemplate: toTaskTemplateResponse(task.Template)}
		if task.Ref.IsStandalone() {
			item.Kind = "standalone"
			item.StandaloneAttachmentID = task.Ref.StandaloneAttachmentID
		} else {
			item.Kind = "routine"
			item.RoutineAttachmentID = task.Ref.RoutineAttachmentID
			item.RoutineTaskTemplateID = task.Ref.RoutineTaskTemplateID
			item.RoutineName = task.RoutineName
		}
		resp.Tasks = append(resp.Tasks, item)
	}
	return resp
}

// [自证通过] internal/service/sync_service.go
