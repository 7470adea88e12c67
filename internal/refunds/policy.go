package refunds

import (
	"strings"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
	"github.com/imrishuroy/go-refundflow/internal/identity"
)

// Action is an operation a principal can attempt on refund requests.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
)

var vendorFields = []string{
	FieldRequestStatus,
	FieldAdminNotes,
	FieldRejectionReason,
}

var adminFields = append(append([]string(nil), vendorFields...),
	FieldNotes,
	FieldAttachments,
	FieldAmount,
	FieldReason,
	FieldCategory,
)

// capabilities maps role and action to the fields that action may write.
// A present key with a nil slice grants the action without field access.
var capabilities = map[identity.Role]map[Action][]string{
	identity.RoleCustomer: {
		ActionCreate: nil,
		ActionRead:   nil,
	},
	identity.RoleVendor: {
		ActionRead:    nil,
		ActionApprove: vendorFields,
		ActionReject:  vendorFields,
		ActionUpdate:  vendorFields,
	},
	identity.RoleAdmin: {
		ActionRead:    nil,
		ActionApprove: adminFields,
		ActionReject:  adminFields,
		ActionUpdate:  adminFields,
		ActionDelete:  nil,
	},
}

// Can reports whether role may perform action at all.
func Can(role identity.Role, action Action) bool {
	_, ok := capabilities[role][action]
	return ok
}

// AllowedFields returns the fields role may write through action.
func AllowedFields(role identity.Role, action Action) []string {
	return append([]string(nil), capabilities[role][action]...)
}

// Authorize fails with Forbidden unless role may perform action.
func Authorize(p identity.Principal, action Action) error {
	if !Can(p.Role, action) {
		return apperr.Forbidden("%s cannot %s refund requests", roleName(p.Role), action)
	}
	return nil
}

// AuthorizeFields fails with Forbidden if any field is outside the set the
// role may write through action.
func AuthorizeFields(p identity.Principal, action Action, fields []string) error {
	if err := Authorize(p, action); err != nil {
		return err
	}
	allowed := AllowedFields(p.Role, action)
	var denied []string
	for _, f := range fields {
		if !contains(allowed, f) {
			denied = append(denied, f)
		}
	}
	if len(denied) > 0 {
		return apperr.Forbidden("%s cannot update %s", roleName(p.Role), strings.Join(denied, ", "))
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func roleName(r identity.Role) string {
	if r == "" {
		return "unknown role"
	}
	return string(r)
}
