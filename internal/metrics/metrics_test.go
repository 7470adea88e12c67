package metrics

import (
	"context"
	"errors"
	"testing"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
)

func TestRecorder_Increment(t *testing.T) {
	cw := &awstest.CloudWatch{}
	r := NewRecorder(cw, "")

	r.Increment(context.Background(), "RefundRequestTransition", map[string]string{"Status": "accepted", "Actor": "vendor"})

	if len(cw.Inputs) != 1 || *cw.Inputs[0].Namespace != DefaultNamespace {
		t.Fatalf("unexpected inputs %+v", cw.Inputs)
	}
	data := cw.Datums()
	if len(data) != 1 {
		t.Fatalf("expected one datum, got %d", len(data))
	}
	d := data[0]
	if *d.MetricName != "RefundRequestTransition" || *d.Value != 1 || d.Unit != cwtypes.StandardUnitCount {
		t.Fatalf("unexpected datum %+v", d)
	}
	if len(d.Dimensions) != 2 || *d.Dimensions[0].Name != "Actor" || *d.Dimensions[1].Value != "accepted" {
		t.Fatalf("dimensions should be sorted by name: %+v", d.Dimensions)
	}
}

func TestRecorder_FailureIsSwallowed(t *testing.T) {
	cw := &awstest.CloudWatch{Err: errors.New("denied")}
	NewRecorder(cw, "Custom").Increment(context.Background(), "RefundRequestCreated", nil)
	if len(cw.Inputs) != 0 {
		t.Fatalf("nothing should be recorded on failure")
	}
}
