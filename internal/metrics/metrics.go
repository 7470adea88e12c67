// Package metrics publishes counters to CloudWatch.
package metrics

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/logger"
)

const DefaultNamespace = "RefundFlow"

// Recorder puts one datum per call. Failures are logged, never returned.
type Recorder struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

func NewRecorder(client aws.CloudWatchAPI, namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Recorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Increment records a count of one for name.
func (r *Recorder) Increment(ctx context.Context, name string, dims map[string]string) {
	r.Put(ctx, name, 1, cwtypes.StandardUnitCount, dims)
}

// Put records value for name.
func (r *Recorder) Put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dimensions := make([]cwtypes.Dimension, 0, len(keys))
	for _, k := range keys {
		dimensions = append(dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: awsString(dims[k]),
		})
	}

	now := r.nowFunc()
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: awsString(r.namespace),
		MetricData: []cwtypes.MetricDatum{{
			MetricName: awsString(name),
			Dimensions: dimensions,
			Timestamp:  &now,
			Unit:       unit,
			Value:      &value,
		}},
	})
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("metric", name).Msg("put metric data failed")
	}
}

// Noop discards everything.
type Noop struct{}

func (Noop) Increment(context.Context, string, map[string]string) {}

func awsString(s string) *string { return &s }
