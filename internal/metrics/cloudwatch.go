package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cryptolens/config"
	"cryptolens/logger"
)

type cloudWatchState struct {
	client    *cloudwatch.Client
	namespace string
	region    string
}

var cwState atomic.Pointer[cloudWatchState]

// publishMetricsFunc is swapped in tests.
var publishMetricsFunc = publishMetrics

func init() {
	cwState.Store(&cloudWatchState{namespace: "CryptoLens"})
}

// InitCloudWatch creates the CloudWatch client. Static credentials from cfg
// win over the default AWS credential chain. A disabled config is a no-op.
func InitCloudWatch(ctx context.Context, cfg config.CloudWatchConfig) error {
	if !cfg.Enabled {
		return nil
	}
	log := logger.GetLogger().WithComponent("cloudwatch")

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load AWS configuration: %w", err)
	}

	state := &cloudWatchState{
		client:    cloudwatch.NewFromConfig(awsCfg),
		namespace: cfg.Namespace,
		region:    awsCfg.Region,
	}
	if state.namespace == "" {
		state.namespace = "CryptoLens"
	}
	cwState.Store(state)

	log.WithFields(logger.Fields{
		"region":    state.region,
		"namespace": state.namespace,
	}).Info("initialized CloudWatch client")
	return nil
}

// EmitMetric logs the metric, hands it to registered handlers and publishes
// it to CloudWatch when a client is configured.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	event, ok := recordMetric(log, component, metric, value, metricType, fields)
	if !ok {
		return
	}

	numeric, ok := toFloat64(event.Value)
	if !ok {
		return
	}
	publishMetricDatum(context.Background(), event, numeric)
}

func publishMetricDatum(ctx context.Context, event Metric, value float64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	unit := cwtypes.StandardUnitCount
	if raw, ok := event.Fields["unit"].(string); ok {
		if parsed, found := metricUnitFromString(raw); found {
			unit = parsed
		}
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(event.Component)}}
	for k, v := range event.Fields {
		if k == "unit" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	publishMetricsFunc(ctx, state, []cwtypes.MetricDatum{{
		MetricName: aws.String(event.Name),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(value),
		Timestamp:  aws.Time(event.Timestamp),
	}})
}

func publishMetrics(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
	if state == nil || state.client == nil || len(data) == 0 {
		return
	}

	if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		logger.GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
	}
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "percent":
		return cwtypes.StandardUnitPercent, true
	case "milliseconds", "ms":
		return cwtypes.StandardUnitMilliseconds, true
	default:
		return cwtypes.StandardUnitCount, false
	}
}
