package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
	"github.com/imrishuroy/go-refundflow/internal/middleware"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
	"github.com/imrishuroy/go-refundflow/internal/validation"
)

// getSettlement returns the refund created for a request the caller can see.
func (h *refundHandler) getSettlement(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	view, err := h.svc.Get(ctx, p, c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	refund, err := h.settlements.GetByRequest(ctx, view.RefundRequest.ID)
	if err != nil {
		middleware.RespondError(c, apperr.Unavailable(err))
		return
	}
	if refund == nil {
		middleware.RespondError(c, apperr.NotFound("settlement"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refund})
}

func (h *refundHandler) advanceSettlement(c *gin.Context) {
	var req validation.SettlementStatusRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	refund, err := h.settlements.Advance(c.Request.Context(), c.Param("refundId"), settlement.Status(req.Status), settlement.Details{
		RazorpayRefundID: req.RazorpayRefundID,
		FailureReason:    req.FailureReason,
	})
	switch {
	case errors.Is(err, settlement.ErrInvalidTransition), errors.Is(err, settlement.ErrStatusMismatch):
		middleware.RespondError(c, fmt.Errorf("%w: %v", apperr.ErrInvalidStateTransition, err))
		return
	case err != nil:
		middleware.RespondError(c, apperr.Unavailable(err))
		return
	case refund == nil:
		middleware.RespondError(c, apperr.NotFound("settlement"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refund})
}
