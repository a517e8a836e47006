package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("model", func(_ context.Context) Status {
		return Status{Name: "model", Healthy: true}
	})
	r.Register("features", func(_ context.Context) Status {
		return Status{Healthy: false, Detail: "file not found"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with unhealthy checker should report unhealthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[1].Name != "features" {
		t.Fatalf("expected registered name to fill in, got %q", statuses[1].Name)
	}
	if statuses[1].Detail != "file not found" {
		t.Fatalf("expected detail 'file not found', got %q", statuses[1].Detail)
	}
}

func TestErrChecker(t *testing.T) {
	var current error
	check := ErrChecker("model", func() error { return current })

	if s := check(context.Background()); !s.Healthy || s.Name != "model" {
		t.Fatalf("expected healthy model status, got %+v", s)
	}

	current = errors.New("model unavailable: open diabetes_model.json")
	s := check(context.Background())
	if s.Healthy {
		t.Fatal("expected unhealthy status")
	}
	if s.Detail != current.Error() {
		t.Fatalf("expected error text as detail, got %q", s.Detail)
	}
}

func TestRegistryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var current error
	r := NewRegistry()
	r.Register("model", ErrChecker("model", func() error { return current }))

	router := gin.New()
	router.GET("/health/ready", r.Handler("1.2.3"))

	serve := func() (int, map[string]interface{}) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		var body map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return w.Code, body
	}

	code, body := serve()
	if code != http.StatusOK || body["status"] != "healthy" || body["version"] != "1.2.3" {
		t.Fatalf("expected healthy 200, got %d %v", code, body)
	}

	current = errors.New("model unavailable")
	code, body = serve()
	if code != http.StatusServiceUnavailable || body["status"] != "unhealthy" {
		t.Fatalf("expected unhealthy 503, got %d %v", code, body)
	}
	checks := body["checks"].([]interface{})
	if len(checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(checks))
	}
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("checker", func(_ context.Context) Status {
				return Status{Name: "checker", Healthy: true}
			})
		}()
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}

	wg.Wait()
}
