package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/cloud"
	"github.com/bsinger98/MHBench/pkg/cloud/cloudtest"
	"github.com/bsinger98/MHBench/pkg/journal"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/metrics"
)

func staticCheck(status Status, msg string) CheckFunc {
	return func(context.Context) Check {
		return Check{Status: status, Message: msg}
	}
}

func TestCheckerWorstStatusWins(t *testing.T) {
	c := NewChecker()
	c.Register("a", staticCheck(StatusHealthy, ""))
	c.Register("b", staticCheck(StatusDegraded, "slow"))
	c.Register("c", staticCheck(StatusHealthy, ""))

	response := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, response.Status)
	assert.Len(t, response.Checks, 3)

	c.Register("d", staticCheck(StatusUnhealthy, "down"))
	assert.Equal(t, StatusUnhealthy, c.Run(context.Background()).Status)
}

func TestCheckerEmptyIsHealthy(t *testing.T) {
	response := NewChecker().Run(context.Background())
	assert.Equal(t, StatusHealthy, response.Status)
	assert.Empty(t, response.Checks)
}

func TestProviderCheckDegradedOnErrorServers(t *testing.T) {
	ctx := context.Background()
	fake := cloudtest.NewFake()
	for _, name := range []string{"host_a", "host_b"} {
		_, err := fake.CreateServer(ctx, cloud.CreateServerRequest{Name: name})
		require.NoError(t, err)
	}
	fake.StatusScript["host_b"] = []string{cloud.StatusError}

	check := ProviderCheck(fake)(ctx)
	assert.Equal(t, StatusDegraded, check.Status)
	assert.Contains(t, check.Message, "1 of 2")
}

func TestProviderCheckHealthy(t *testing.T) {
	check := ProviderCheck(cloudtest.NewFake())(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)
}

func TestJournalCheckNop(t *testing.T) {
	check := JournalCheck(journal.NopJournal{})(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)
}

func TestServerEndpoints(t *testing.T) {
	checker := NewChecker()
	checker.Register("provider", staticCheck(StatusDegraded, "1 of 3 servers in ERROR"))
	checker.RegisterReadiness("provider", staticCheck(StatusDegraded, "not ready"))

	server := NewServer("127.0.0.1:0", checker, metrics.NewRegistry(), logging.NewNopLogger())

	// Degraded health still answers 200 with detail.
	rec := httptest.NewRecorder()
	server.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var response Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, StatusDegraded, response.Status)
	assert.Contains(t, response.Checks["provider"].Message, "ERROR")

	// Readiness is binary.
	rec = httptest.NewRecorder()
	server.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
