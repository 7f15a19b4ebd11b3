package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	HTTP      httpSummary     `json:"http"`
	Timer     timerSummary    `json:"timer"`
	Upstream  upstreamSummary `json:"upstream"`
	Problems  problemSummary  `json:"problems"`
	RateLimit rateLimitInfo   `json:"rateLimit"`
	Auth      authInfo        `json:"auth"`
	DB        dbInfo          `json:"db"`
	Server    serverInfo      `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type timerSummary struct {
	Starts        float64 `json:"starts"`
	Stops         float64 `json:"stops"`
	P50SessionSec float64 `json:"p50SessionSeconds"`
}

type upstreamSummary struct {
	Requests float64 `json:"requests"`
	Errors   float64 `json:"errors"`
}

type problemSummary struct {
	Refreshes      float64 `json:"refreshes"`
	RefreshErrors  float64 `json:"refreshErrors"`
	LastUpsertSize float64 `json:"lastUpsertSize"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	summary := Summary{
		HTTP: httpSummary{
			TotalRequests: sumCounter(fam["studyhub_http_requests_total"]),
			ErrorRate:     errorRate(fam["studyhub_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["studyhub_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["studyhub_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["studyhub_http_request_duration_seconds"], 0.99),
		},
		Timer: timerSummary{
			Starts:        counterWithLabel(fam["studyhub_timer_transitions_total"], "action", "start"),
			Stops:         counterWithLabel(fam["studyhub_timer_transitions_total"], "action", "stop"),
			P50SessionSec: histogramPercentile(fam["studyhub_study_session_seconds"], 0.50),
		},
		Upstream: upstreamSummary{
			Requests: sumCounter(fam["studyhub_upstream_requests_total"]),
			Errors:   sumCounterWhere(fam["studyhub_upstream_requests_total"], "outcome", "error"),
		},
		Problems: problemSummary{
			Refreshes:      sumCounter(fam["studyhub_problem_refreshes_total"]),
			RefreshErrors:  counterWithLabel(fam["studyhub_problem_refreshes_total"], "status", "error"),
			LastUpsertSize: gaugeValue(fam["studyhub_problem_refresh_upserted"]),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["studyhub_ratelimit_rejections_total"]),
		},
		Auth: authInfo{
			Failures:  sumCounterWhere(fam["studyhub_auth_attempts_total"], "outcome", "failure"),
			Successes: sumCounterWhere(fam["studyhub_auth_attempts_total"], "outcome", "success"),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["studyhub_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["studyhub_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["studyhub_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     gaugeValue(fam["studyhub_server_start_time_seconds"]),
			UptimeSeconds: float64(time.Now().Unix()) - gaugeValue(fam["studyhub_server_start_time_seconds"]),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func counterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	if f == nil {
		return 0
	}

	// Aggregate all histogram metrics in the family.
	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			// Linear interpolation within this bucket.
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// If we didn't find it, return the last finite bucket upper bound.
	if len(buckets) > 0 {
		for i := len(buckets) - 1; i >= 0; i-- {
			if !math.IsInf(buckets[i].upperBound, 1) {
				return buckets[i].upperBound
			}
		}
	}
	return 0
}

// sumCounterWhere sums every series of f carrying the given label value.
func sumCounterWhere(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if hasLabel(m, labelName, labelValue) && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

// errorRate is the share of requests answered with a 4xx or 5xx status.
func errorRate(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total, errs float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errs += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errs / total
}
