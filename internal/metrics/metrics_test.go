package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSummaryHandler(t *testing.T) {
	m := New()
	m.RegisterDBPoolCollector(func() (int32, int32, int32) { return 4, 3, 1 })

	m.ObserveHTTPRequest("POST", "/start", 200, 0.01, 120)
	m.ObserveHTTPRequest("POST", "/stop", 400, 0.02, 80)
	m.IncTimerTransition("start")
	m.IncTimerTransition("stop")
	m.IncTimerTransition("stop")
	m.ObserveStudySession(600)
	m.IncUpstreamRequest("user_show", "ok")
	m.IncUpstreamRequest("top_100", "error")
	m.ObserveProblemRefresh("ok", 100)
	m.ObserveProblemRefresh("error", 0)
	m.IncAuthAttempt("login", "success")
	m.IncAuthAttempt("login", "failure")
	m.IncAuthAttempt("signup", "failure")
	m.IncRateLimitRejection("login")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var s Summary
	if err := json.NewDecoder(rr.Body).Decode(&s); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"http total", s.HTTP.TotalRequests, 2},
		{"http error rate", s.HTTP.ErrorRate, 0.5},
		{"timer starts", s.Timer.Starts, 1},
		{"timer stops", s.Timer.Stops, 2},
		{"upstream requests", s.Upstream.Requests, 2},
		{"upstream errors", s.Upstream.Errors, 1},
		{"refreshes", s.Problems.Refreshes, 2},
		{"refresh errors", s.Problems.RefreshErrors, 1},
		{"last upsert", s.Problems.LastUpsertSize, 100},
		{"auth failures", s.Auth.Failures, 2},
		{"auth successes", s.Auth.Successes, 1},
		{"rate limit rejections", s.RateLimit.Rejections, 1},
		{"db total", s.DB.TotalConns, 4},
		{"db idle", s.DB.IdleConns, 3},
		{"db acquired", s.DB.AcquiredConns, 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
	if s.Server.StartTime == 0 {
		t.Error("expected server start time to be set")
	}
}
