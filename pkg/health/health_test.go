package health

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPChecker_HealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("healthy"))
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}

	if result.Duration <= 0 {
		t.Error("Expected positive duration")
	}
}

func TestHTTPChecker_UnhealthyEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	checker := NewHTTPChecker(server.URL)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Errorf("Expected unhealthy, got healthy: %s", result.Message)
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	checker := NewHTTPChecker("http://127.0.0.1:1").WithTimeout(time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("Expected unhealthy for refused connection")
	}
}

func TestTCPChecker_Healthy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(ln.Addr().String())
	result := checker.Check(context.Background())

	if !result.Healthy {
		t.Errorf("Expected healthy, got unhealthy: %s", result.Message)
	}

	if checker.Type() != CheckTypeTCP {
		t.Errorf("Expected tcp type, got %s", checker.Type())
	}
}

func TestTCPChecker_Refused(t *testing.T) {
	checker := NewTCPChecker("127.0.0.1:1").WithTimeout(time.Second)
	result := checker.Check(context.Background())

	if result.Healthy {
		t.Error("Expected unhealthy for refused connection")
	}
}

func TestStatusUpdate_FailureThreshold(t *testing.T) {
	status := NewStatus()
	config := DefaultConfig()
	config.Retries = 3

	fail := Result{Healthy: false, CheckedAt: time.Now()}

	status.Update(fail, config)
	status.Update(fail, config)
	if !status.Healthy {
		t.Error("should stay healthy below the retry threshold")
	}

	status.Update(fail, config)
	if status.Healthy {
		t.Error("should be unhealthy after reaching the retry threshold")
	}

	status.Update(Result{Healthy: true, CheckedAt: time.Now()}, config)
	if !status.Healthy {
		t.Error("one success should restore healthy")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("expected failures reset, got %d", status.ConsecutiveFailures)
	}
}

func TestStatusInStartPeriod(t *testing.T) {
	status := NewStatus()

	config := Config{StartPeriod: time.Minute}
	if !status.InStartPeriod(config) {
		t.Error("fresh status should be in start period")
	}

	config.StartPeriod = 0
	if status.InStartPeriod(config) {
		t.Error("zero start period should never apply")
	}
}
