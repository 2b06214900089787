package cloud

import (
	"context"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/kiosk404/agentcore/internal/agentcore/service/tools/local"
	"github.com/kiosk404/agentcore/pkg/logger"
)

const (
	defaultMetricDays = 7
	maxMetricDays     = 455
	dayPeriod         = int32(86400)
	hourPeriod        = int32(3600)
	maxDatapoints     = 1440
)

var daysParam = local.ParameterDef{
	Name:        "days",
	Type:        "integer",
	Description: "Number of days to look back (default: 7)",
}

// metricQuery is one statistic of one metric, reduced to a single number.
type metricQuery struct {
	key       string
	namespace string
	metric    string
	dims      map[string]string
	stat      cwtypes.Statistic
	period    int32
	// latest keeps the newest datapoint instead of adding them up.
	latest bool
}

func metricTools(c *Clients) []local.Definition {
	return []local.Definition{
		{
			Name:        "get_s3_metrics",
			Description: "Get the size and object count of an S3 bucket from CloudWatch.",
			Parameters: []local.ParameterDef{
				{Name: "bucket_name", Type: "string", Description: "Name of the S3 bucket", Required: true},
				daysParam,
				regionParam,
			},
			Handler: c.s3Metrics,
		},
		{
			Name:        "get_lambda_metrics",
			Description: "Get invocations, errors and average duration of a Lambda function from CloudWatch.",
			Parameters: []local.ParameterDef{
				{Name: "function_name", Type: "string", Description: "Name of the Lambda function", Required: true},
				daysParam,
				regionParam,
			},
			Handler: c.lambdaMetrics,
		},
		{
			Name:        "get_dynamodb_metrics",
			Description: "Get consumed read and write capacity and user errors of a DynamoDB table from CloudWatch.",
			Parameters: []local.ParameterDef{
				{Name: "table_name", Type: "string", Description: "Name of the DynamoDB table", Required: true},
				daysParam,
				regionParam,
			},
			Handler: c.dynamoMetrics,
		},
	}
}

func (c *Clients) s3Metrics(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "bucket_name")
	if err != nil {
		return nil, err
	}
	out := c.collect(ctx, params, "bucket_name", name, []metricQuery{
		{key: "bucket_size_bytes", namespace: "AWS/S3", metric: "BucketSizeBytes",
			dims: map[string]string{"BucketName": name, "StorageType": "StandardStorage"},
			stat: cwtypes.StatisticAverage, period: dayPeriod, latest: true},
		{key: "number_of_objects", namespace: "AWS/S3", metric: "NumberOfObjects",
			dims: map[string]string{"BucketName": name, "StorageType": "AllStorageTypes"},
			stat: cwtypes.StatisticAverage, period: dayPeriod, latest: true},
	})
	if size, ok := out["bucket_size_bytes"].(float64); ok {
		out["bucket_size_gb"] = math.Round(size/(1<<30)*100) / 100
	}
	return out, nil
}

func (c *Clients) lambdaMetrics(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "function_name")
	if err != nil {
		return nil, err
	}
	dims := map[string]string{"FunctionName": name}
	return c.collect(ctx, params, "function_name", name, []metricQuery{
		{key: "invocations", namespace: "AWS/Lambda", metric: "Invocations", dims: dims, stat: cwtypes.StatisticSum, period: hourPeriod},
		{key: "errors", namespace: "AWS/Lambda", metric: "Errors", dims: dims, stat: cwtypes.StatisticSum, period: hourPeriod},
		{key: "duration_avg_ms", namespace: "AWS/Lambda", metric: "Duration", dims: dims, stat: cwtypes.StatisticAverage, period: hourPeriod, latest: true},
	}), nil
}

func (c *Clients) dynamoMetrics(ctx context.Context, params map[string]any) (any, error) {
	name, err := requireString(params, "table_name")
	if err != nil {
		return nil, err
	}
	dims := map[string]string{"TableName": name}
	return c.collect(ctx, params, "table_name", name, []metricQuery{
		{key: "consumed_read_capacity", namespace: "AWS/DynamoDB", metric: "ConsumedReadCapacityUnits", dims: dims, stat: cwtypes.StatisticSum, period: hourPeriod},
		{key: "consumed_write_capacity", namespace: "AWS/DynamoDB", metric: "ConsumedWriteCapacityUnits", dims: dims, stat: cwtypes.StatisticSum, period: hourPeriod},
		{key: "user_errors", namespace: "AWS/DynamoDB", metric: "UserErrors", dims: dims, stat: cwtypes.StatisticSum, period: hourPeriod},
	}), nil
}

// collect runs every query over the requested window. A failing metric is
// reported as "unavailable" and does not fail the others.
func (c *Clients) collect(ctx context.Context, params map[string]any, idKey, id string, queries []metricQuery) map[string]any {
	days := local.IntParam(params, "days", defaultMetricDays)
	if days <= 0 {
		days = defaultMetricDays
	}
	days = min(days, maxMetricDays)
	end := c.now().UTC()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)
	region := c.region(params)

	out := map[string]any{idKey: id, "period_days": days}
	for _, q := range queries {
		// GetMetricStatistics answers at most 1440 datapoints.
		if int(end.Sub(start).Seconds())/int(q.period) > maxDatapoints {
			q.period = dayPeriod
		}
		v, ok, err := c.statistic(ctx, q, start, end, region)
		switch {
		case err != nil:
			logger.WarnX(moduleName, "metric %s/%s of %s: %v", q.namespace, q.metric, id, err)
			out[q.key] = "unavailable"
		case ok:
			out[q.key] = v
		default:
			out[q.key] = float64(0)
		}
	}
	return out
}

func (c *Clients) statistic(ctx context.Context, q metricQuery, start, end time.Time, region string) (float64, bool, error) {
	dims := make([]cwtypes.Dimension, 0, len(q.dims))
	for k, v := range q.dims {
		dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(v)})
	}
	res, err := c.CloudWatch.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.namespace),
		MetricName: aws.String(q.metric),
		Dimensions: dims,
		StartTime:  aws.Time(start),
		EndTime:    aws.Time(end),
		Period:     aws.Int32(q.period),
		Statistics: []cwtypes.Statistic{q.stat},
	}, func(o *cloudwatch.Options) {
		if region != "" {
			o.Region = region
		}
	})
	if err != nil {
		return 0, false, err
	}
	if len(res.Datapoints) == 0 {
		return 0, false, nil
	}

	if q.latest {
		var (
			newest time.Time
			value  float64
		)
		for _, dp := range res.Datapoints {
			if ts := aws.ToTime(dp.Timestamp); !ts.Before(newest) {
				newest, value = ts, pick(dp, q.stat)
			}
		}
		return value, true, nil
	}
	var total float64
	for _, dp := range res.Datapoints {
		total += pick(dp, q.stat)
	}
	return total, true, nil
}

func pick(dp cwtypes.Datapoint, stat cwtypes.Statistic) float64 {
	switch stat {
	case cwtypes.StatisticSum:
		return aws.ToFloat64(dp.Sum)
	case cwtypes.StatisticMaximum:
		return aws.ToFloat64(dp.Maximum)
	default:
		return aws.ToFloat64(dp.Average)
	}
}

func (c *Clients) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
