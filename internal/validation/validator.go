package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = fld.Tag.Get("form")
		}
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(createRefundStructValidation, CreateRefundRequest{})
	v.RegisterStructValidation(updateRefundStructValidation, UpdateRefundRequest{})
	v.RegisterStructValidation(settlementStatusStructValidation, SettlementStatusRequest{})

	return v
}

// createRefundStructValidation checks what tags cannot: a positive amount
// with at most two decimals and a reason that is not only whitespace.
func createRefundStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateRefundRequest)

	if !req.Amount.IsPositive() {
		sl.ReportError(req.Amount, "amount", "Amount", "gt_zero", "")
	} else if !req.Amount.Equal(req.Amount.Round(2)) {
		sl.ReportError(req.Amount, "amount", "Amount", "max_two_decimals", "")
	}
	if req.Reason != "" && strings.TrimSpace(req.Reason) == "" {
		sl.ReportError(req.Reason, "reason", "Reason", "not_blank", "")
	}
}

func updateRefundStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateRefundRequest)

	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			sl.ReportError(*req.Amount, "amount", "Amount", "gt_zero", "")
		} else if !req.Amount.Equal(req.Amount.Round(2)) {
			sl.ReportError(*req.Amount, "amount", "Amount", "max_two_decimals", "")
		}
	}
	if req.Reason != nil && strings.TrimSpace(*req.Reason) == "" {
		sl.ReportError(*req.Reason, "reason", "Reason", "not_blank", "")
	}
}

// settlementStatusStructValidation requires a failure reason when a refund fails.
func settlementStatusStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(SettlementStatusRequest)

	if req.Status == "failed" && strings.TrimSpace(req.FailureReason) == "" {
		sl.ReportError(req.FailureReason, "failureReason", "FailureReason", "required_when_failed", "")
	}
}
