package validation

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CreateRefundRequest is the payload for POST /refund-requests. The customer
// is always the caller; a customerId in the body is ignored.
type CreateRefundRequest struct {
	OrderID              string          `json:"orderId" validate:"required,max=128"`
	VendorID             string          `json:"vendorId" validate:"required,max=128"`
	Amount               decimal.Decimal `json:"amount"`
	Reason               string          `json:"reason" validate:"required,max=1000"`
	RefundReasonCategory string          `json:"refundReasonCategory,omitempty" validate:"omitempty,oneof=duplicate not_as_described defective wrong_item other"`
	Notes                string          `json:"notes,omitempty" validate:"max=2000"`
	Attachments          []string        `json:"attachments,omitempty" validate:"max=10,dive,required"`
}

// UpdateRefundRequest is the payload for PUT /refund-requests/:id. Absent
// fields are left unchanged.
type UpdateRefundRequest struct {
	RequestStatus        *string          `json:"requestStatus,omitempty" validate:"omitempty,oneof=accepted rejected"`
	AdminNotes           *string          `json:"adminNotes,omitempty" validate:"omitempty,max=2000"`
	RejectionReason      *string          `json:"rejectionReason,omitempty" validate:"omitempty,max=1000"`
	Notes                *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Attachments          *[]string        `json:"attachments,omitempty" validate:"omitempty,max=10,dive,required"`
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	Reason               *string          `json:"reason,omitempty" validate:"omitempty,max=1000"`
	RefundReasonCategory *string          `json:"refundReasonCategory,omitempty" validate:"omitempty,oneof=duplicate not_as_described defective wrong_item other"`

	// Immutable fields are captured so they can be refused instead of
	// silently dropped.
	OrderID    *string `json:"orderId,omitempty"`
	CustomerID *string `json:"customerId,omitempty"`
	VendorID   *string `json:"vendorId,omitempty"`
}

// FieldUpdateRequest is the payload for PATCH /refund-requests/:id.
type FieldUpdateRequest struct {
	Field string          `json:"field" validate:"required"`
	Value json.RawMessage `json:"value"`
}

// ActionData carries the optional note of an approve or reject.
type ActionData struct {
	Notes  string `json:"notes,omitempty" validate:"max=2000"`
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// ActionRequest is the payload for POST /refund-requests/:id/actions.
type ActionRequest struct {
	Action string      `json:"action" validate:"required,oneof=approve reject"`
	Data   *ActionData `json:"data,omitempty"`
}

// ListQuery is the query string of GET /refund-requests.
type ListQuery struct {
	Status     string `form:"status" validate:"omitempty,oneof=pending accepted rejected"`
	OrderID    string `form:"orderId"`
	Category   string `form:"category" validate:"omitempty,oneof=duplicate not_as_described defective wrong_item other"`
	CustomerID string `form:"customerId"`
	VendorID   string `form:"vendorId"`
}

// SettlementStatusRequest is the payload for PATCH /settlements/:refundId/status.
type SettlementStatusRequest struct {
	Status           string `json:"status" validate:"required,oneof=processing completed failed"`
	RazorpayRefundID string `json:"razorpayRefundId,omitempty"`
	FailureReason    string `json:"failureReason,omitempty" validate:"max=1000"`
}
