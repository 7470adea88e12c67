package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
	"github.com/imrishuroy/go-refundflow/internal/identity"
	"github.com/imrishuroy/go-refundflow/internal/idempotency"
	"github.com/imrishuroy/go-refundflow/internal/logger"
	"github.com/imrishuroy/go-refundflow/internal/middleware"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
	"github.com/imrishuroy/go-refundflow/internal/validation"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyStore replays responses of keyed creates.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// SettlementStore exposes settlement records created by the worker.
type SettlementStore interface {
	GetByRequest(ctx context.Context, requestID string) (*settlement.Refund, error)
	Advance(ctx context.Context, refundID string, next settlement.Status, d settlement.Details) (*settlement.Refund, error)
}

// HandlerConfig groups dependencies for the refund request handlers.
// Idempotency and Settlements are optional.
type HandlerConfig struct {
	Service     *refunds.Service
	Verifier    *identity.Verifier
	Idempotency IdempotencyStore
	Settlements SettlementStore
}

type refundHandler struct {
	svc         *refunds.Service
	idem        IdempotencyStore
	settlements SettlementStore
	v           *validatorv10.Validate
}

// RegisterRefundRoutes registers the refund request API.
func RegisterRefundRoutes(r gin.IRouter, cfg HandlerConfig) {
	h := &refundHandler{
		svc:         cfg.Service,
		idem:        cfg.Idempotency,
		settlements: cfg.Settlements,
		v:           validation.New(),
	}

	api := r.Group("/", middleware.Authenticate(cfg.Verifier))
	api.POST("/refund-requests", h.create)
	api.GET("/refund-requests", h.list)
	api.GET("/refund-requests/:id", h.get)
	api.PUT("/refund-requests/:id", h.update)
	api.PATCH("/refund-requests/:id", h.updateField)
	api.DELETE("/refund-requests/:id", h.delete)
	api.POST("/refund-requests/:id/actions", h.action)

	if h.settlements != nil {
		api.GET("/refund-requests/:id/settlement", h.getSettlement)
		api.PATCH("/settlements/:refundId/status", middleware.RequireRole(identity.RoleAdmin), h.advanceSettlement)
	}
}

func principal(c *gin.Context) (identity.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		middleware.RespondError(c, apperr.ErrUnauthenticated)
	}
	return p, ok
}

func (h *refundHandler) create(c *gin.Context) {
	ctx := c.Request.Context()
	p, ok := principal(c)
	if !ok {
		return
	}

	var req validation.CreateRefundRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	// keys are per caller so two customers cannot collide
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key != "" {
		key = p.ID + ":" + key
	}

	rr, err := h.svc.Create(ctx, p, refunds.NewRequest{
		OrderID:     req.OrderID,
		VendorID:    req.VendorID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Category:    refunds.Category(req.RefundReasonCategory),
		Notes:       req.Notes,
		Attachments: req.Attachments,
	}, key)
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateRequest) && h.idem != nil {
			h.replay(c, key, err)
			return
		}
		middleware.RespondError(c, err)
		return
	}

	body, err := json.Marshal(gin.H{"refundRequest": rr})
	if err != nil {
		if key != "" && h.idem != nil {
			_ = h.idem.MarkFailed(ctx, key, fmt.Sprintf("encode response: %v", err))
		}
		middleware.RespondError(c, err)
		return
	}
	if key != "" && h.idem != nil {
		if err := h.idem.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("refund_request_id", rr.ID).Msg("store idempotent response failed")
		}
	}

	c.Header("Location", fmt.Sprintf("/refund-requests/%s", rr.ID))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// replay answers a create whose idempotency key was already used.
func (h *refundHandler) replay(c *gin.Context, key string, cause error) {
	rec, err := h.idem.Get(c.Request.Context(), key)
	if err != nil {
		middleware.RespondError(c, apperr.Unavailable(err))
		return
	}
	if rec == nil {
		middleware.RespondError(c, cause)
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"refundRequestId": rec.ResourceID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "refundRequestId": rec.ResourceID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "message": rec.Note, "refundRequestId": rec.ResourceID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *refundHandler) list(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var q validation.ListQuery
	if err := validation.BindQueryAndValidate(c, &q, h.v); err != nil {
		return
	}

	out, err := h.svc.List(c.Request.Context(), p, refunds.Filter{
		Status:     refunds.Status(q.Status),
		OrderID:    q.OrderID,
		Category:   refunds.Category(q.Category),
		CustomerID: q.CustomerID,
		VendorID:   q.VendorID,
	})
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundRequests": out, "count": len(out)})
}

func (h *refundHandler) get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.svc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *refundHandler) update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req validation.UpdateRefundRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	if req.OrderID != nil || req.CustomerID != nil || req.VendorID != nil {
		middleware.RespondError(c, apperr.Forbidden("orderId, customerId and vendorId cannot be modified"))
		return
	}

	patch := refunds.Patch{
		AdminNotes:      req.AdminNotes,
		RejectionReason: req.RejectionReason,
		Notes:           req.Notes,
		Attachments:     req.Attachments,
		Amount:          req.Amount,
		Reason:          req.Reason,
	}
	if req.RequestStatus != nil {
		s := refunds.Status(*req.RequestStatus)
		patch.RequestStatus = &s
	}
	if req.RefundReasonCategory != nil {
		cat := refunds.Category(*req.RefundReasonCategory)
		patch.Category = &cat
	}

	rr, err := h.svc.Update(c.Request.Context(), p, c.Param("id"), patch)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundRequest": rr})
}

func (h *refundHandler) updateField(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req validation.FieldUpdateRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	rr, err := h.svc.UpdateField(c.Request.Context(), p, c.Param("id"), req.Field, req.Value)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refundRequest": rr})
}

func (h *refundHandler) action(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req validation.ActionRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	data := validation.ActionData{}
	if req.Data != nil {
		data = *req.Data
	}

	var (
		rr  *refunds.RefundRequest
		err error
		msg string
	)
	switch req.Action {
	case "approve":
		rr, err = h.svc.Approve(c.Request.Context(), p, c.Param("id"), data.Notes)
		msg = "Refund request approved successfully"
	case "reject":
		rr, err = h.svc.Reject(c.Request.Context(), p, c.Param("id"), data.Reason)
		msg = "Refund request rejected successfully"
	}
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "refundRequest": rr})
}

func (h *refundHandler) delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Refund request deleted successfully"})
}
