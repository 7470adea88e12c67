package refunds

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/identity"
)

// Status is the lifecycle state of a refund request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Category classifies why the customer wants money back.
type Category string

const (
	CategoryDuplicate      Category = "duplicate"
	CategoryNotAsDescribed Category = "not_as_described"
	CategoryDefective      Category = "defective"
	CategoryWrongItem      Category = "wrong_item"
	CategoryOther          Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDuplicate, CategoryNotAsDescribed, CategoryDefective, CategoryWrongItem, CategoryOther:
		return true
	}
	return false
}

const (
	MaxReasonLength = 1000
	MaxNotesLength  = 2000
	MaxAttachments  = 10
)

// RefundRequest is a customer's claim against a single order.
type RefundRequest struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	CustomerID      string          `json:"customerId"`
	VendorID        string          `json:"vendorId"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Category        Category        `json:"refundReasonCategory"`
	Notes           string          `json:"notes,omitempty"`
	Attachments     []string        `json:"attachments,omitempty"`
	Status          Status          `json:"requestStatus"`
	ProcessedBy     string          `json:"processedBy,omitempty"`
	ProcessedAt     *time.Time      `json:"processedAt,omitempty"`
	AdminNotes      string          `json:"adminNotes,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r *RefundRequest) Clone() *RefundRequest {
	if r == nil {
		return nil
	}
	out := *r
	if r.Attachments != nil {
		out.Attachments = append([]string(nil), r.Attachments...)
	}
	if r.ProcessedAt != nil {
		at := *r.ProcessedAt
		out.ProcessedAt = &at
	}
	return &out
}

// NewRequest is the customer supplied part of a refund request.
type NewRequest struct {
	OrderID     string
	VendorID    string
	Amount      decimal.Decimal
	Reason      string
	Category    Category
	Notes       string
	Attachments []string
}

// Scope restricts which records a principal can see. Empty fields do not
// restrict.
type Scope struct {
	CustomerID string
	VendorID   string
}

// ScopeFor derives the visibility scope from the caller's role.
func ScopeFor(p identity.Principal) Scope {
	switch p.Role {
	case identity.RoleCustomer:
		return Scope{CustomerID: p.ID}
	case identity.RoleVendor:
		return Scope{VendorID: p.ID}
	case identity.RoleAdmin:
		return Scope{}
	}
	// unknown roles see nothing
	return Scope{CustomerID: "\x00", VendorID: "\x00"}
}

// Matches reports whether r is visible within s.
func (s Scope) Matches(r *RefundRequest) bool {
	if r == nil {
		return false
	}
	if s.CustomerID != "" && r.CustomerID != s.CustomerID {
		return false
	}
	if s.VendorID != "" && r.VendorID != s.VendorID {
		return false
	}
	return true
}

// Filter narrows a list query. Zero values match everything.
type Filter struct {
	Status     Status
	OrderID    string
	Category   Category
	CustomerID string
	VendorID   string
}

func (f Filter) Matches(r *RefundRequest) bool {
	switch {
	case f.Status != "" && r.Status != f.Status:
		return false
	case f.OrderID != "" && r.OrderID != f.OrderID:
		return false
	case f.Category != "" && r.Category != f.Category:
		return false
	case f.CustomerID != "" && r.CustomerID != f.CustomerID:
		return false
	case f.VendorID != "" && r.VendorID != f.VendorID:
		return false
	}
	return true
}

// Patch holds the fields an update sets. Nil fields are left alone.
type Patch struct {
	RequestStatus   *Status
	AdminNotes      *string
	RejectionReason *string
	Notes           *string
	Attachments     *[]string
	Amount          *decimal.Decimal
	Reason          *string
	Category        *Category
}

// Patchable field names, as they appear on the wire.
const (
	FieldRequestStatus   = "requestStatus"
	FieldAdminNotes      = "adminNotes"
	FieldRejectionReason = "rejectionReason"
	FieldNotes           = "notes"
	FieldAttachments     = "attachments"
	FieldAmount          = "amount"
	FieldReason          = "reason"
	FieldCategory        = "refundReasonCategory"
)

// Fields lists the wire names of the fields p sets.
func (p Patch) Fields() []string {
	var out []string
	if p.RequestStatus != nil {
		out = append(out, FieldRequestStatus)
	}
	if p.AdminNotes != nil {
		out = append(out, FieldAdminNotes)
	}
	if p.RejectionReason != nil {
		out = append(out, FieldRejectionReason)
	}
	if p.Notes != nil {
		out = append(out, FieldNotes)
	}
	if p.Attachments != nil {
		out = append(out, FieldAttachments)
	}
	if p.Amount != nil {
		out = append(out, FieldAmount)
	}
	if p.Reason != nil {
		out = append(out, FieldReason)
	}
	if p.Category != nil {
		out = append(out, FieldCategory)
	}
	return out
}

func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Stamp records who processed a request and when.
type Stamp struct {
	ProcessedBy string
	At          time.Time
}

// Apply writes p and st onto r.
func (p Patch) Apply(r *RefundRequest, st Stamp) {
	if p.RequestStatus != nil {
		r.Status = *p.RequestStatus
	}
	if p.AdminNotes != nil {
		r.AdminNotes = *p.AdminNotes
	}
	if p.RejectionReason != nil {
		r.RejectionReason = *p.RejectionReason
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.Attachments != nil {
		r.Attachments = append([]string(nil), (*p.Attachments)...)
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Reason != nil {
		r.Reason = *p.Reason
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	at := st.At
	r.ProcessedBy = st.ProcessedBy
	r.ProcessedAt = &at
	r.UpdatedAt = st.At
}

// OrderSummary is the slice of an order a refund request needs.
type OrderSummary struct {
	OrderID           string          `json:"orderId"`
	CustomerID        string          `json:"customerId"`
	VendorID          string          `json:"vendorId"`
	PaidAmount        decimal.Decimal `json:"paidAmount"`
	Status            string          `json:"status"`
	RazorpayPaymentID string          `json:"razorpayPaymentId,omitempty"`
}

// PartySummary describes a customer or vendor.
type PartySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
}

// View is a refund request enriched with its related records. Related
// records are nil when the lookup is unavailable.
type View struct {
	RefundRequest *RefundRequest `json:"refundRequest"`
	Order         *OrderSummary  `json:"order,omitempty"`
	Customer      *PartySummary  `json:"customer,omitempty"`
	Vendor        *PartySummary  `json:"vendor,omitempty"`
}

// Event types published after a request leaves pending.
const (
	EventAccepted = "refund_request.accepted"
	EventRejected = "refund_request.rejected"
)

// Event is the message published when a request reaches a terminal state.
type Event struct {
	Type        string          `json:"type"`
	RequestID   string          `json:"requestId"`
	OrderID     string          `json:"orderId"`
	CustomerID  string          `json:"customerId"`
	VendorID    string          `json:"vendorId"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	ProcessedBy string          `json:"processedBy"`
	ProcessedAt time.Time       `json:"processedAt"`
}

// EventFor builds the event for a request that has just reached a terminal
// state.
func EventFor(r *RefundRequest) Event {
	ev := Event{
		Type:        EventRejected,
		RequestID:   r.ID,
		OrderID:     r.OrderID,
		CustomerID:  r.CustomerID,
		VendorID:    r.VendorID,
		Amount:      r.Amount,
		Status:      r.Status,
		ProcessedBy: r.ProcessedBy,
	}
	if r.Status == StatusAccepted {
		ev.Type = EventAccepted
	}
	if r.ProcessedAt != nil {
		ev.ProcessedAt = *r.ProcessedAt
	}
	return ev
}
