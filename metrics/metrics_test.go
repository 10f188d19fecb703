package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/invencare/go-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transition(from, to auth.SessionStatus) auth.ActivityEvent {
	return auth.ActivityEvent{
		EventType:  auth.ActivityEventSessionStatusChanged,
		FromStatus: from,
		ToStatus:   to,
	}
}

func TestMetrics_Record(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	events := []auth.ActivityEvent{
		transition(auth.StatusAuthenticating, auth.StatusAuthenticated),
		{EventType: auth.ActivityEventLoginSuccess},
		transition(auth.StatusAuthenticating, auth.StatusAuthenticated),
		{EventType: auth.ActivityEventLoginSuccess},
		transition(auth.StatusAuthenticated, auth.StatusAuthenticating),
		transition(auth.StatusAuthenticating, auth.StatusUnauthenticated),
		{EventType: auth.ActivityEventLogout},
	}
	for _, e := range events {
		require.NoError(t, m.Record(ctx, e))
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AuthenticatedCurrent))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(auth.ActivityEventLoginSuccess))))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.EventsTotal.WithLabelValues(string(auth.ActivityEventSessionStatusChanged))))

	expected := `
# HELP storeauth_session_transitions_total Total number of session status transitions
# TYPE storeauth_session_transitions_total counter
storeauth_session_transitions_total{from="authenticated",to="authenticating"} 1
storeauth_session_transitions_total{from="authenticating",to="authenticated"} 2
storeauth_session_transitions_total{from="authenticating",to="unauthenticated"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.TransitionsTotal, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.SetActiveSessions(3)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storeauth_sessions_active 3")
}
