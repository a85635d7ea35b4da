package v1

import (
	"context"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "provision/internal/core/context"
	"provision/internal/domain/audit"
	"provision/internal/domain/notification"
	"provision/internal/infrastructure/storage/postgres"
	"provision/pkg/numerator"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(string) (*appctx.UserContext, error) {
	return &appctx.UserContext{}, nil
}

type stubAuditor struct{}

func (stubAuditor) Record(_ context.Context, _ audit.Entry) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	rules, err := notification.NewRuleEngine()
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		TxManager:    postgres.NewTxManagerFromRawPool(nil),
		JWTValidator: stubValidator{},
		Numerator:    numerator.New(nil),
		Auditor:      stubAuditor{},
		Dispatcher:   notification.NewDispatcher(nil, rules, notification.LogSink{}),
		Rules:        rules,
	})
}

func hasRoute(router *gin.Engine, method, path string) bool {
	for _, route := range router.Routes() {
		if route.Method == method && route.Path == path {
			return true
		}
	}
	return false
}

func TestRouter_CoreRouteSurface(t *testing.T) {
	router := newTestRouter(t)

	routes := []struct{ method, path string }{
		{"POST", "/api/v1/locations/:id/deliveries"},
		{"GET", "/api/v1/locations/:id/deliveries"},
		{"POST", "/api/v1/locations/:id/issues"},
		{"GET", "/api/v1/deliveries/:id"},
		{"GET", "/api/v1/issues/:id"},
		{"POST", "/api/v1/transfers"},
		{"PATCH", "/api/v1/transfers/:id/approve"},
		{"PATCH", "/api/v1/ncrs/:id/status"},
		{"GET", "/api/v1/reports/reconciliation"},
		{"POST", "/api/v1/periods/:id/close"},
		{"GET", "/health/live"},
	}
	for _, want := range routes {
		assert.True(t, hasRoute(router, want.method, want.path),
			"missing route %s %s", want.method, want.path)
	}
}

func TestRouter_PostingsAreLocationScoped(t *testing.T) {
	router := newTestRouter(t)

	// document postings happen under the location, not the collection
	assert.False(t, hasRoute(router, "POST", "/api/v1/deliveries"))
	assert.False(t, hasRoute(router, "POST", "/api/v1/issues"))
	assert.False(t, hasRoute(router, "PUT", "/api/v1/ncrs/:id/status"))
}
