package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeSummary MetricType = "summary"
)

// 服务指标名
const (
	MetricHTTPRequests     = "carregistry_http_requests_total"
	MetricHTTPDuration     = "carregistry_http_request_duration_seconds"
	MetricPredictions      = "carregistry_predictions_total"
	MetricRetrains         = "carregistry_retrains_total"
	MetricRetrainDuration  = "carregistry_retrain_duration_seconds"
	MetricModelSamples     = "carregistry_model_samples"
	MetricModelAccuracy    = "carregistry_model_accuracy"
	MetricModelTrainedUnix = "carregistry_model_trained_timestamp_seconds"
)

var metricHelp = map[string]string{
	MetricHTTPRequests:     "HTTP requests by method and status",
	MetricHTTPDuration:     "HTTP request latency",
	MetricPredictions:      "Predictions served by outcome",
	MetricRetrains:         "Retraining runs by result",
	MetricRetrainDuration:  "Retraining latency",
	MetricModelSamples:     "Observations the current model was trained on",
	MetricModelAccuracy:    "Training-set accuracy of the current model",
	MetricModelTrainedUnix: "When the current model was trained",
}

// maxSamples 每个摘要保留的最近样本数
const maxSamples = 1000

// Labels 指标标签
type Labels map[string]string

func (l Labels) key() string {
	if len(l) == 0 {
		return ""
	}
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf(`%s="%s"`, k, strings.ReplaceAll(l[k], `"`, `\"`))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

type series struct {
	name    string
	typ     MetricType
	labels  string
	value   float64
	sum     float64
	samples stats.Float64Data
}

// Summary 摘要统计
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	mu        sync.RWMutex
	series    map[string]*series
	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		series:    make(map[string]*series),
		startTime: time.Now(),
	}
}

func (mc *MetricsCollector) get(name string, typ MetricType, labels Labels) *series {
	lk := labels.key()
	k := name + lk
	s, ok := mc.series[k]
	if !ok {
		s = &series{name: name, typ: typ, labels: lk}
		mc.series[k] = s
	}
	return s
}

// IncrCounter 增加计数器
func (mc *MetricsCollector) IncrCounter(name string, labels Labels) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.get(name, MetricTypeCounter, labels).value++
}

// SetGauge 设置仪表
func (mc *MetricsCollector) SetGauge(name string, value float64, labels Labels) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.get(name, MetricTypeGauge, labels).value = value
}

// Observe 记录一个样本，只保留最近 maxSamples 个
func (mc *MetricsCollector) Observe(name string, value float64, labels Labels) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	s := mc.get(name, MetricTypeSummary, labels)
	s.value++
	s.sum += value
	s.samples = append(s.samples, value)
	if len(s.samples) > maxSamples {
		s.samples = s.samples[len(s.samples)-maxSamples:]
	}
}

// Value 返回计数器或仪表的当前值
func (mc *MetricsCollector) Value(name string, labels Labels) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if s, ok := mc.series[name+labels.key()]; ok {
		return s.value
	}
	return 0
}

// GetSummary 获取摘要，没有样本时返回 false
func (mc *MetricsCollector) GetSummary(name string, labels Labels) (Summary, bool) {
	mc.mu.RLock()
	s, ok := mc.series[name+labels.key()]
	var data stats.Float64Data
	if ok {
		data = append(data, s.samples...)
	}
	mc.mu.RUnlock()

	if len(data) == 0 {
		return Summary{}, false
	}
	return summarize(data), true
}

func summarize(data stats.Float64Data) Summary {
	sum := Summary{Count: len(data)}
	sum.Min, _ = data.Min()
	sum.Max, _ = data.Max()
	sum.Mean, _ = data.Mean()
	sum.P50, _ = data.PercentileNearestRank(50)
	sum.P95, _ = data.PercentileNearestRank(95)
	sum.P99, _ = data.PercentileNearestRank(99)
	return sum
}

// GetUptime 获取运行时间
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// ExportPrometheus 导出Prometheus文本格式
func (mc *MetricsCollector) ExportPrometheus() string {
	mc.mu.RLock()
	keys := make([]string, 0, len(mc.series))
	for k := range mc.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	seen := make(map[string]bool)
	for _, k := range keys {
		s := mc.series[k]
		if !seen[s.name] {
			seen[s.name] = true
			help := metricHelp[s.name]
			if help == "" {
				help = "Metric " + s.name
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", s.name, help)
			fmt.Fprintf(&b, "# TYPE %s %s\n", s.name, s.typ)
		}
		if s.typ != MetricTypeSummary {
			fmt.Fprintf(&b, "%s%s %g\n", s.name, s.labels, s.value)
			continue
		}
		if len(s.samples) > 0 {
			sum := summarize(s.samples)
			for _, q := range []struct {
				q string
				v float64
			}{{"0.5", sum.P50}, {"0.95", sum.P95}, {"0.99", sum.P99}} {
				fmt.Fprintf(&b, "%s%s %g\n", s.name, withQuantile(s.labels, q.q), q.v)
			}
			fmt.Fprintf(&b, "%s_sum%s %g\n", s.name, s.labels, s.sum)
		}
		fmt.Fprintf(&b, "%s_count%s %g\n", s.name, s.labels, s.value)
	}
	mc.mu.RUnlock()

	// 运行时指标
	fmt.Fprintf(&b, "# TYPE carregistry_uptime_seconds gauge\ncarregistry_uptime_seconds %g\n", mc.GetUptime().Seconds())
	fmt.Fprintf(&b, "# TYPE go_goroutines gauge\ngo_goroutines %d\n", runtime.NumGoroutine())
	return b.String()
}

func withQuantile(labels, q string) string {
	if labels == "" {
		return `{quantile="` + q + `"}`
	}
	return labels[:len(labels)-1] + `,quantile="` + q + `"}`
}
