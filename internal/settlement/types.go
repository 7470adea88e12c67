package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the settlement state of a refund.
type Status string

const (
	StatusInitiated  Status = "initiated"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusInitiated:  {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a refund may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Method is how money goes back to the customer.
type Method string

const (
	MethodOriginalPayment Method = "original_payment"
	MethodBankTransfer    Method = "bank_transfer"
	MethodWallet          Method = "wallet"
)

// Refund is the settlement record created once a refund request is accepted.
type Refund struct {
	RefundID          string          `json:"refundId"`
	OrderID           string          `json:"orderId"`
	CustomerID        string          `json:"customerId"`
	VendorID          string          `json:"vendorId"`
	RequestRefundID   string          `json:"requestRefundId"`
	RefundAmount      decimal.Decimal `json:"refundAmount"`
	RefundStatus      Status          `json:"refundStatus"`
	RazorpayPaymentID string          `json:"razorpayPaymentId,omitempty"`
	RazorpayRefundID  string          `json:"razorpayRefundId,omitempty"`
	RefundMethod      Method          `json:"refundMethod"`
	FailureReason     string          `json:"failureReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

var refundNamespace = uuid.MustParse("6f1c2a4e-8d3b-4f7a-9c51-2b7e0d9a4c13")

// RefundIDFor derives the refund id from the originating request id, so a
// request can only ever produce one refund.
func RefundIDFor(requestID string) string {
	return uuid.NewSHA1(refundNamespace, []byte(requestID)).String()
}

// Details are the optional fields written alongside a status change.
type Details struct {
	RazorpayRefundID string
	FailureReason    string
}
