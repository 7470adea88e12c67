package refunds

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/apperr"
)

func TestParseFieldPatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field string
		raw   string
		check func(Patch) bool
		want  error
	}{
		{field: FieldRequestStatus, raw: `"accepted"`, check: func(p Patch) bool { return *p.RequestStatus == StatusAccepted }},
		{field: FieldAdminNotes, raw: `"ok"`, check: func(p Patch) bool { return *p.AdminNotes == "ok" }},
		{field: FieldAttachments, raw: `["a.png","b.png"]`, check: func(p Patch) bool { return len(*p.Attachments) == 2 }},
		{field: FieldAmount, raw: `42.5`, check: func(p Patch) bool { return p.Amount.Equal(decimal.RequireFromString("42.5")) }},
		{field: FieldAmount, raw: `"42.50"`, check: func(p Patch) bool { return p.Amount.Equal(decimal.RequireFromString("42.5")) }},
		{field: FieldCategory, raw: `"defective"`, check: func(p Patch) bool { return *p.Category == CategoryDefective }},
		{field: FieldNotes, raw: `12`, want: apperr.ErrValidation},
		{field: FieldNotes, raw: `null`, want: apperr.ErrValidation},
		{field: FieldNotes, raw: ``, want: apperr.ErrValidation},
		{field: "", raw: `"x"`, want: apperr.ErrValidation},
		{field: "shipping", raw: `"x"`, want: apperr.ErrValidation},
		{field: "customerId", raw: `"C9"`, want: apperr.ErrForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.field+"="+tt.raw, func(t *testing.T) {
			t.Parallel()
			p, err := ParseFieldPatch(tt.field, []byte(tt.raw))
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(p.Fields()) != 1 || p.Fields()[0] != tt.field {
				t.Fatalf("expected only %s set, got %v", tt.field, p.Fields())
			}
			if !tt.check(p) {
				t.Fatalf("unexpected patch value")
			}
		})
	}
}

func TestValidatePatch(t *testing.T) {
	t.Parallel()

	pending := StatusPending
	unknown := Status("escalated")
	tooMany := make([]string, MaxAttachments+1)
	for i := range tooMany {
		tooMany[i] = "x"
	}
	neg := decimal.NewFromInt(-5)
	blank := " "

	for name, p := range map[string]Patch{
		"pending status":   {RequestStatus: &pending},
		"unknown status":   {RequestStatus: &unknown},
		"many attachments": {Attachments: &tooMany},
		"negative amount":  {Amount: &neg},
		"blank reason":     {Reason: &blank},
	} {
		if err := validatePatch(p); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}
}
