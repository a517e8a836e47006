package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/glycoscreen/internal/assessor"
	"github.com/mbd888/glycoscreen/internal/config"
	"github.com/mbd888/glycoscreen/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a config pointing at the shipped artifacts
func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "development",
		LogLevel:       "error",
		LogFormat:      "text",
		ModelPath:      filepath.Join("..", "..", config.DefaultModelPath),
		FeaturesPath:   filepath.Join("..", "..", config.DefaultFeaturesPath),
		RateLimitRPM:   600,
		RateLimitBurst: 100,
		CORSOrigins:    []string{"https://clinic.example.com"},
	}
}

// newTestServer creates a server over the shipped model artifacts
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewWithWriter(&bytes.Buffer{}, "error", "text"))}, opts...)
	s, err := New(testConfig(), opts...)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
	return s
}

func serve(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
	}
	return w, resp
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := serve(t, s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestHealthEndpoint_ModelUnavailable(t *testing.T) {
	s := newTestServer(t, WithAssessor(assessor.Unavailable(errors.New("no artifact"))))

	w, resp := serve(t, s, "GET", "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	if resp["status"] != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t, WithAssessor(assessor.Unavailable(nil)))

	w, _ := serve(t, s, "GET", "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 even without a model, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	// Server hasn't called Run() so ready is false
	w, _ := serve(t, s, "GET", "/health/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}

	s.ready.Store(true)
	w, _ = serve(t, s, "GET", "/health/ready", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 once ready, got %d", w.Code)
	}
}

func TestReadinessEndpoint_ModelUnavailable(t *testing.T) {
	s := newTestServer(t, WithAssessor(assessor.Unavailable(errors.New("no artifact"))))
	s.ready.Store(true)

	w, resp := serve(t, s, "GET", "/health/ready", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without a model, got %d", w.Code)
	}
	if resp["checks"] == nil {
		t.Error("Expected failing checks in response")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	serve(t, s, "GET", "/v1/features", "")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "glycoscreen_model_available 1") {
		t.Error("Expected model_available gauge in metrics output")
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/v1/features",
		"GET:/v1/model",
		"POST:/v1/assessments",
	}

	routeSet := make(map[string]bool)
	for _, route := range s.router.Routes() {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Assessment flow
// ---------------------------------------------------------------------------

func TestAssessmentFlow(t *testing.T) {
	s := newTestServer(t)

	body := `{"features":{"Pregnancies":6,"Glucose":148,"BloodPressure":72,"Insulin":0,"BMI":33.6,"Age":50}}`
	w, resp := serve(t, s, "POST", "/v1/assessments", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	asmt := resp["assessment"].(map[string]interface{})
	verdict := asmt["verdict"].(map[string]interface{})
	if verdict["label"] != "positive" {
		t.Errorf("Expected positive verdict, got %v", verdict["label"])
	}
	if _, ok := verdict["probability"].(float64); !ok {
		t.Error("Expected probability from the logistic model")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("Expected no-store on assessment responses")
	}
}

func TestAssessmentValidation(t *testing.T) {
	s := newTestServer(t)

	body := `{"features":{"Pregnancies":25,"Glucose":148,"BloodPressure":72,"Insulin":0,"BMI":33.6,"Age":150}}`
	w, resp := serve(t, s, "POST", "/v1/assessments", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if resp["error"] != "validation_failed" {
		t.Errorf("Expected validation_failed, got %v", resp["error"])
	}
	if fields := resp["fields"].([]interface{}); len(fields) != 2 {
		t.Errorf("Expected 2 field errors, got %d", len(fields))
	}
}

func TestAssessmentModelUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.json")
	s, err := New(cfg, WithLogger(logging.NewWithWriter(&bytes.Buffer{}, "error", "text")))
	if err != nil {
		t.Fatalf("missing artifacts must not fail startup: %v", err)
	}
	defer s.rateLimiter.Stop()

	body := `{"features":{"Pregnancies":0,"Glucose":85,"BloodPressure":66,"Insulin":0,"BMI":26.6,"Age":31}}`
	w, resp := serve(t, s, "POST", "/v1/assessments", body)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
	if resp["error"] != "model_unavailable" {
		t.Errorf("Expected model_unavailable, got %v", resp["error"])
	}
}

func TestRequestIDPropagated(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/features", nil)
	req.Header.Set("X-Request-ID", "req-123")
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("Expected X-Request-ID req-123, got %q", got)
	}
}

func TestRequestTooLarge(t *testing.T) {
	s := newTestServer(t)

	big := `{"features":{"Glucose":` + strings.Repeat(" ", 70<<10) + `85}}`
	w, _ := serve(t, s, "POST", "/v1/assessments", big)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for oversized body, got %d", w.Code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPM = 0
	s, err := New(cfg, WithLogger(logging.NewWithWriter(&bytes.Buffer{}, "error", "text")))
	if err != nil {
		t.Fatal(err)
	}
	if s.rateLimiter != nil {
		t.Error("Expected no limiter when RATE_LIMIT_RPM is 0")
	}
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPM = 1
	cfg.RateLimitBurst = 1
	s, err := New(cfg, WithLogger(logging.NewWithWriter(&bytes.Buffer{}, "error", "text")))
	if err != nil {
		t.Fatal(err)
	}
	defer s.rateLimiter.Stop()

	codes := make([]int, 0, 2)
	for _, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/features", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		s.router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK {
		t.Errorf("Expected first request to pass, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected a new X-Forwarded-For to share the socket's budget, got %d", codes[1])
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w, resp := serve(t, s, "GET", "/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if resp["error"] != "not_found" {
		t.Errorf("Expected not_found, got %v", resp["error"])
	}
}
