package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-registry/pkg/activity"
	"github.com/goliatone/go-registry/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Source: "billing"}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()

	event := activity.BuildValueSetEvent(activity.RegistryEventInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		Path:       "api.request_limit",
		NewValue:   42,
		Channel:    "registry",
		OccurredAt: now,
	})

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != actorID {
		t.Fatalf("expected actor %s got actor=%s user=%s", actorID, record.ActorID, record.UserID)
	}
	if record.TenantID != tenantID {
		t.Fatalf("expected tenant %s got %s", tenantID, record.TenantID)
	}
	if record.Verb != activity.VerbValueSet || record.ObjectType != activity.ObjectEntry || record.ObjectID != "api.request_limit" {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "registry" {
		t.Fatalf("expected channel registry got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["new_value"] != 42 || record.Data["path"] != "api.request_limit" {
		t.Fatalf("expected metadata passthrough got %v", record.Data)
	}
	if record.Data["source"] != "billing" {
		t.Fatalf("expected source metadata got %v", record.Data["source"])
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyInvalidIDsBecomeNil(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbReset,
		ActorID:    "not-a-uuid",
		ObjectType: activity.ObjectRegistry,
		ObjectID:   activity.ObjectRegistry,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	if sink.records[0].ActorID != uuid.Nil {
		t.Fatalf("expected nil actor, got %s", sink.records[0].ActorID)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}
