package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes application metrics to CloudWatch. A nil client turns
// every method into a no-op, which is how local and test runs are configured.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client *cloudwatch.Client) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
	}
}

// RecordCommandExecution records duration and outcome of a command
func (m *Metrics) RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("CommandExecution"),
			Dimensions: []types.Dimension{
				{Name: aws.String("CommandName"), Value: aws.String(commandName)},
				{Name: aws.String("Status"), Value: aws.String(status)},
			},
			Value:     aws.Float64(float64(duration.Milliseconds())),
			Unit:      types.StandardUnitMilliseconds,
			Timestamp: aws.Time(time.Now()),
		},
		{
			MetricName: aws.String("CommandCount"),
			Dimensions: []types.Dimension{
				{Name: aws.String("CommandName"), Value: aws.String(commandName)},
				{Name: aws.String("Status"), Value: aws.String(status)},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// RecordLatency records latency for any operation
func (m *Metrics) RecordLatency(ctx context.Context, operation string, latency time.Duration) {
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Operation"), Value: aws.String(operation)},
			},
			Value:     aws.Float64(float64(latency.Milliseconds())),
			Unit:      types.StandardUnitMilliseconds,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// RecordError records error occurrences by type
func (m *Metrics) RecordError(ctx context.Context, errorType string, errorCode string) {
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("Errors"),
			Dimensions: []types.Dimension{
				{Name: aws.String("ErrorType"), Value: aws.String(errorType)},
				{Name: aws.String("ErrorCode"), Value: aws.String(errorCode)},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// RecordGenerationOutcome counts content generation attempts per result,
// so dashboards can track the LLM failure rate per map
func (m *Metrics) RecordGenerationOutcome(ctx context.Context, outcome string) {
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("ContentGeneration"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Outcome"), Value: aws.String(outcome)},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// StartTimer starts a labeled timer. Stop publishes the elapsed time.
// Together with Increment this satisfies the query bus metrics interface.
func (m *Metrics) StartTimer(metric, label string) Timer {
	return &cwTimer{metrics: m, metric: metric, label: label, start: time.Now()}
}

// Increment bumps a labeled counter by one
func (m *Metrics) Increment(metric, label string) {
	m.put(context.Background(), []types.MetricDatum{
		{
			MetricName: aws.String(metric),
			Dimensions: []types.Dimension{
				{Name: aws.String("Label"), Value: aws.String(label)},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// Timer measures one operation
type Timer interface {
	Stop()
}

type cwTimer struct {
	metrics *Metrics
	metric  string
	label   string
	start   time.Time
}

func (t *cwTimer) Stop() {
	t.metrics.put(context.Background(), []types.MetricDatum{
		{
			MetricName: aws.String(t.metric),
			Dimensions: []types.Dimension{
				{Name: aws.String("Label"), Value: aws.String(t.label)},
			},
			Value:     aws.Float64(float64(time.Since(t.start).Milliseconds())),
			Unit:      types.StandardUnitMilliseconds,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// put ships a metric batch, dropping it on any error. Metrics never fail
// the operation that produced them.
func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return
	}
	_, _ = m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
}
