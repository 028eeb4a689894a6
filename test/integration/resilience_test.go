package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/dashboard"
	"github.com/pitabwire/erpconsole/model"
)

// ==========================================================================
// Circuit Breaker Tests
// ==========================================================================

func TestResilience_CircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)
	h.SignInAs(ViewerIdentity())

	h.Backend().OnOperation("listEmployees").RespondWith(http.StatusInternalServerError, map[string]any{"error": "boom"})

	for range 3 {
		resp := h.GET("/ui/resources/employees")
		h.AssertStatus(t, resp, http.StatusBadGateway)
		resp.Body.Close()
	}

	callsBefore := len(h.Backend().AllRequests("listEmployees"))

	var body Envelope[any]
	h.AssertJSON(t, h.GET("/ui/resources/employees"), http.StatusBadGateway, &body)
	if body.Code != model.ErrBackendUnavailable {
		t.Errorf("code = %q, want %q", body.Code, model.ErrBackendUnavailable)
	}
	if callsAfter := len(h.Backend().AllRequests("listEmployees")); callsAfter != callsBefore {
		t.Errorf("backend received %d calls after the circuit opened, want 0", callsAfter-callsBefore)
	}

	h.AssertStatus(t, h.GET("/ui/ready"), http.StatusServiceUnavailable)
}

func TestResilience_CircuitBreakerRecoveryAfterTimeout(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          50 * time.Millisecond,
		}),
	)
	h.SignInAs(ViewerIdentity())

	h.Backend().OnOperation("listEmployees").
		RespondWith(http.StatusServiceUnavailable, map[string]any{"error": "down"}).
		RespondWith(http.StatusOK, PageFixture(nil, 0, 1, 10))

	resp := h.GET("/ui/resources/employees")
	h.AssertStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()

	time.Sleep(100 * time.Millisecond)

	resp = h.GET("/ui/resources/employees")
	h.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

// ==========================================================================
// Retries
// ==========================================================================

func TestResilience_RetriesIdempotentCallsOnConnectionError(t *testing.T) {
	h := NewTestHarness(t, WithRetry(2))
	h.SignInAs(ViewerIdentity())

	h.Backend().OnOperation("listEmployees").
		RespondWithConnectionError().
		RespondWith(http.StatusOK, PageFixture([]map[string]any{EmployeeFixture("001", "Ada Lovelace", "Sales")}, 1, 1, 10))

	var page employeePage
	h.AssertJSON(t, h.GET("/ui/resources/employees"), http.StatusOK, &page)
	if page.Data.TotalItems != 1 {
		t.Errorf("totalItems = %d, want 1", page.Data.TotalItems)
	}
	h.Backend().AssertCalled(t, "listEmployees", 2)
}

func TestResilience_DoesNotRetryWrites(t *testing.T) {
	h := NewTestHarness(t, WithRetry(3))
	h.SignInAs(ManagerIdentity())

	h.Backend().OnOperation("createEmployee").RespondWithConnectionError()

	resp := h.POST("/ui/resources/employees", map[string]any{
		"fullName": "Ada Lovelace",
		"email":    "ada@example.com",
	})
	h.AssertStatus(t, resp, http.StatusBadGateway)
	resp.Body.Close()
	h.Backend().AssertCalled(t, "createEmployee", 1)
}

// ==========================================================================
// Dashboard
// ==========================================================================

func TestDashboard_PartialFailureKeepsOtherParts(t *testing.T) {
	h := NewTestHarness(t)
	h.SignInAs(ManagerIdentity())

	h.Backend().OnOperation("dashboardMetrics").RespondWith(http.StatusOK, EnvelopeFixture(map[string]any{
		"totalEmployees": 42,
	}))
	h.Backend().OnOperation("salesChart").RespondWithFailure(http.StatusInternalServerError, "Report service offline")

	var view Envelope[dashboard.View]
	h.AssertJSON(t, h.GET("/ui/dashboard"), http.StatusOK, &view)

	if view.Data.Metrics == nil {
		t.Error("metrics part missing although its backend answered")
	}
	if view.Data.Errors[dashboard.PartSales] == "" {
		t.Errorf("errors = %v, want a sales failure", view.Data.Errors)
	}
	// The manager holds report:view but not warehouse:view.
	h.Backend().AssertNotCalled(t, "warehouseStats")
	h.Backend().AssertNotCalled(t, "stockHistory")
}
