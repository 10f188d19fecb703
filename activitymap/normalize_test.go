package activitymap_test

import (
	"context"
	"testing"
	"time"

	"github.com/invencare/go-auth"
	"github.com/invencare/go-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventSessionStatusChanged,
		UserID:     "sub-alice",
		Username:   "alice",
		FromStatus: auth.StatusAuthenticating,
		ToStatus:   auth.StatusAuthenticated,
		Metadata: map[string]any{
			"ticket": "SEC-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "sub-alice" {
		t.Fatalf("expected actor_id sub-alice, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventSessionStatusChanged) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventSessionStatusChanged, out.Verb)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "sub-alice" {
		t.Fatalf("expected object_id sub-alice, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["ticket"] != "SEC-204" {
		t.Fatalf("expected metadata ticket SEC-204, got %#v", out.Metadata["ticket"])
	}
	if out.Metadata[activitymap.MetadataKeyUsername] != "alice" {
		t.Fatalf("expected metadata username alice, got %#v", out.Metadata[activitymap.MetadataKeyUsername])
	}
	if out.Metadata[activitymap.MetadataKeyFromStatus] != string(auth.StatusAuthenticating) {
		t.Fatalf("expected metadata from_status, got %#v", out.Metadata[activitymap.MetadataKeyFromStatus])
	}
	if out.Metadata[activitymap.MetadataKeyToStatus] != string(auth.StatusAuthenticated) {
		t.Fatalf("expected metadata to_status, got %#v", out.Metadata[activitymap.MetadataKeyToStatus])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetRequest,
		Username:  "alice",
		Metadata: map[string]any{
			"session_id": "sid-1",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("browser_session"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["session_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "browser_session" {
		t.Fatalf("expected object_type browser_session, got %q", out.ObjectType)
	}
	if out.ObjectID != "sid-1" {
		t.Fatalf("expected object_id sid-1, got %q", out.ObjectID)
	}
	if out.ActorID != "alice" {
		t.Fatalf("expected username as actor, got %q", out.ActorID)
	}
	if _, ok := out.Metadata[activitymap.MetadataKeyUsername]; ok {
		t.Fatalf("username equal to actor should not be repeated in metadata")
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  auth.ActivityEvent{UserID: "user-1", Username: "alice"},
			expect: "user-1",
		},
		{
			name:   "uses username when user id missing",
			event:  auth.ActivityEvent{Username: "bob"},
			expect: "bob",
		},
		{
			name:   "uses default fallback when user missing",
			event:  auth.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when user missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("cli")},
			expect: "cli",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestSinkForwardsNormalizedRecords(t *testing.T) {
	var got []activitymap.Normalized
	sink := activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	}, activitymap.WithDefaultChannel("audit"))

	if err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLogout, UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Channel != "audit" || got[0].Verb != string(auth.ActivityEventLogout) {
		t.Fatalf("unexpected records: %+v", got)
	}
}
