package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/MarcoNaik/tectramin-sub001/internal/dto"
	"github.com/MarcoNaik/tectramin-sub001/internal/service"
	"github.com/MarcoNaik/tectramin-sub001/pkg/response"
)

// AssignmentHandler 分配模块 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc      service.AssignmentService
	materializationSvc service.MaterializationService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService, materializationSvc service.MaterializationService) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc, materializationSvc: materializationSvc}
}

// Assign 分配人员到工单日
// POST /api/v1/days/:id/assignments
func (h *AssignmentHandler) Assign(c *gin.Context) {
	dayID := c.Param("id")
	if dayID == "" {
		response.BadRequest(c, 10001, "工单日ID不能为空")
		return
	}

	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.assignmentSvc.Assign(c.Request.Context(), dayID, req.PersonID)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// Unassign 移除分配
// DELETE /api/v1/days/:id/assignments/:personId
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	dayID, personID := c.Param("id"), c.Param("personId")
	if dayID == "" || personID == "" {
		response.BadRequest(c, 10001, "工单日ID和人员ID不能为空")
		return
	}

	if err := h.assignmentSvc.Unassign(c.Request.Context(), dayID, personID); err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, nil)
}

// BulkAssign 批量分配
// POST /api/v1/days/:id/assignments/bulk
func (h *AssignmentHandler) BulkAssign(c *gin.Context) {
	dayID := c.Param("id")
	if dayID == "" {
		response.BadRequest(c, 10001, "工单日ID不能为空")
		return
	}

	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.assignmentSvc.BulkAssign(c.Request.Context(), dayID, req.PersonIDs)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// ReplaceAssignments 重设工单日名单
// PUT /api/v1/days/:id/assignments
func (h *AssignmentHandler) ReplaceAssignments(c *gin.Context) {
	dayID := c.Param("id")
	if dayID == "" {
		response.BadRequest(c, 10001, "工单日ID不能为空")
		return
	}

	var req dto.ReplaceAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.assignmentSvc.ReplaceAssignments(c.Request.Context(), dayID, req.PersonIDs)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// Materialize 补齐已分配人员的任务实例
// POST /api/v1/days/:id/assignments/:personId/materialize
func (h *AssignmentHandler) Materialize(c *gin.Context) {
	dayID, personID := c.Param("id"), c.Param("personId")
	if dayID == "" || personID == "" {
		response.BadRequest(c, 10001, "工单日ID和人员ID不能为空")
		return
	}

	result, err := h.materializationSvc.Materialize(c.Request.Context(), dayID, personID)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *AssignmentHandler) handleAssignmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDayNotFound):
		response.NotFound(c, 20001, "工单日不存在")
	case errors.Is(err, service.ErrPersonNotFound):
		response.NotFound(c, 20002, err.Error())
	case errors.Is(err, service.ErrNotAssigned):
		response.Conflict(c, 20003, "该人员未分配到此工单日")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/assignment_handler.go
