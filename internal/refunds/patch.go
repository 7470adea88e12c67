package refunds

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
)

var immutableFields = map[string]bool{
	"id":          true,
	"orderId":     true,
	"customerId":  true,
	"vendorId":    true,
	"processedBy": true,
	"processedAt": true,
	"createdAt":   true,
	"updatedAt":   true,
}

// ParseFieldPatch turns a single {field, value} update into a Patch.
func ParseFieldPatch(field string, raw []byte) (Patch, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return Patch{}, apperr.Validation("field is required")
	}
	if immutableFields[field] {
		return Patch{}, apperr.Forbidden("%s cannot be modified", field)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Patch{}, apperr.Validation("value is required")
	}

	var p Patch
	var err error
	switch field {
	case FieldRequestStatus:
		var v Status
		err = json.Unmarshal(raw, &v)
		p.RequestStatus = &v
	case FieldAdminNotes:
		var v string
		err = json.Unmarshal(raw, &v)
		p.AdminNotes = &v
	case FieldRejectionReason:
		var v string
		err = json.Unmarshal(raw, &v)
		p.RejectionReason = &v
	case FieldNotes:
		var v string
		err = json.Unmarshal(raw, &v)
		p.Notes = &v
	case FieldAttachments:
		var v []string
		err = json.Unmarshal(raw, &v)
		p.Attachments = &v
	case FieldAmount:
		var v decimal.Decimal
		err = json.Unmarshal(raw, &v)
		p.Amount = &v
	case FieldReason:
		var v string
		err = json.Unmarshal(raw, &v)
		p.Reason = &v
	case FieldCategory:
		var v Category
		err = json.Unmarshal(raw, &v)
		p.Category = &v
	default:
		return Patch{}, apperr.Validation("unknown field %q", field)
	}
	if err != nil {
		return Patch{}, apperr.Validation("invalid value for %s: %v", field, err)
	}
	return p, nil
}

// validatePatch checks the values p carries, independent of who sends them.
func validatePatch(p Patch) error {
	if p.RequestStatus != nil {
		if !p.RequestStatus.Valid() {
			return apperr.Validation("unknown requestStatus %q", *p.RequestStatus)
		}
		if !p.RequestStatus.Terminal() {
			return apperr.Validation("requestStatus can only be set to %s or %s", StatusAccepted, StatusRejected)
		}
	}
	if p.AdminNotes != nil && len(*p.AdminNotes) > MaxNotesLength {
		return apperr.Validation("adminNotes exceeds %d characters", MaxNotesLength)
	}
	if p.RejectionReason != nil && len(*p.RejectionReason) > MaxReasonLength {
		return apperr.Validation("rejectionReason exceeds %d characters", MaxReasonLength)
	}
	if p.Notes != nil && len(*p.Notes) > MaxNotesLength {
		return apperr.Validation("notes exceeds %d characters", MaxNotesLength)
	}
	if p.Attachments != nil {
		if err := validateAttachments(*p.Attachments); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := validateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Reason != nil {
		if err := validateReason(*p.Reason); err != nil {
			return err
		}
	}
	if p.Category != nil && !p.Category.Valid() {
		return apperr.Validation("unknown refundReasonCategory %q", *p.Category)
	}
	return nil
}

func validateAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if !a.Equal(a.Round(2)) {
		return apperr.Validation("amount must have at most two decimal places")
	}
	return nil
}

func validateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return apperr.Validation("reason is required")
	}
	if len(reason) > MaxReasonLength {
		return apperr.Validation("reason exceeds %d characters", MaxReasonLength)
	}
	return nil
}

func validateAttachments(list []string) error {
	if len(list) > MaxAttachments {
		return apperr.Validation("at most %d attachments are allowed", MaxAttachments)
	}
	for i, a := range list {
		if strings.TrimSpace(a) == "" {
			return apperr.Validation("attachment %d is empty", i)
		}
	}
	return nil
}
