package broadcast

import (
	"context"
	"errors"
	"testing"
)

func staticSnapshot(count int64) SnapshotFunc {
	return func(ctx context.Context, projectID string) (int64, error) {
		return count, nil
	}
}

func TestSubscribeDeliversInitThenLive(t *testing.T) {
	reg := NewRegistry(Options{Snapshot: staticSnapshot(7)})
	defer reg.Close()

	sub, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	reg.Publish(NewEvent("web", "evt-1", 3, "WEB-3", "TypeError: x", "error", "1.0.0", true, "2026-08-25T10:00:00.000000000Z"))

	first := <-sub.C()
	if first.Kind != KindInit {
		t.Fatalf("first envelope kind = %q, want init", first.Kind)
	}
	if first.IssueCount != 7 {
		t.Fatalf("init issue count = %d, want 7", first.IssueCount)
	}

	second := <-sub.C()
	if second.Kind != KindNewEvent {
		t.Fatalf("second envelope kind = %q, want new-event", second.Kind)
	}
	if second.EventID != "evt-1" || second.ShortID != "WEB-3" || !second.IsNewIssue {
		t.Fatalf("live envelope = %+v", second)
	}
}

func TestPublishStaysWithinProject(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Close()

	sub, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	<-sub.C() // init

	reg.Publish(NewEvent("api", "evt-9", 1, "API-1", "panic", "fatal", "", false, "2026-08-25T10:00:00.000000000Z"))

	select {
	case env := <-sub.C():
		t.Fatalf("cross-project envelope delivered: %+v", env)
	default:
	}
}

func TestOverflowDisconnectsSlowSubscriber(t *testing.T) {
	// Buffer of two: init takes a slot, one live envelope fits, the
	// second overflows and must disconnect the subscriber.
	reg := NewRegistry(Options{Buffer: 2})
	defer reg.Close()

	slow, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	reg.Publish(IssueResolved("web", 1, "WEB-1", "resolved", "2026-08-25T10:00:00.000000000Z"))
	reg.Publish(IssueResolved("web", 2, "WEB-2", "resolved", "2026-08-25T10:00:01.000000000Z"))

	if got := reg.Subscribers("web"); got != 0 {
		t.Fatalf("Subscribers() = %d after overflow, want 0", got)
	}

	// The queue drains what was delivered before the disconnect, then
	// reports closed.
	if env := <-slow.C(); env.Kind != KindInit {
		t.Fatalf("first = %q, want init", env.Kind)
	}
	if env := <-slow.C(); env.IssueID != 1 {
		t.Fatalf("second issue id = %d, want 1", env.IssueID)
	}
	if _, ok := <-slow.C(); ok {
		t.Fatalf("overflowed subscriber channel still open")
	}

	// The publisher side keeps working for fresh subscribers.
	fresh, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() after overflow error = %v", err)
	}
	<-fresh.C() // init
	reg.Publish(IssueResolved("web", 3, "WEB-3", "resolved", "2026-08-25T10:00:02.000000000Z"))
	if env := <-fresh.C(); env.IssueID != 3 {
		t.Fatalf("fresh subscriber got issue %d, want 3", env.IssueID)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Close()

	sub, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	reg.Unsubscribe(sub)
	reg.Unsubscribe(sub)

	if got := reg.Subscribers("web"); got != 0 {
		t.Fatalf("Subscribers() = %d, want 0", got)
	}
	<-sub.C() // init drains
	if _, ok := <-sub.C(); ok {
		t.Fatalf("unsubscribed channel still open")
	}
}

func TestCloseRejectsNewSubscribers(t *testing.T) {
	reg := NewRegistry(Options{})

	sub, err := reg.Subscribe(context.Background(), "web")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	reg.Close()

	if env, ok := <-sub.C(); !ok || env.Kind != KindInit {
		t.Fatalf("queued init lost on close: ok=%v kind=%q", ok, env.Kind)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatalf("subscriber channel still open after Close")
	}
	if _, err := reg.Subscribe(context.Background(), "web"); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("Subscribe() after Close error = %v, want ErrRegistryClosed", err)
	}
}

func TestSnapshotFailureFailsSubscribe(t *testing.T) {
	boom := errors.New("db gone")
	reg := NewRegistry(Options{
		Snapshot: func(ctx context.Context, projectID string) (int64, error) {
			return 0, boom
		},
	})
	defer reg.Close()

	if _, err := reg.Subscribe(context.Background(), "web"); !errors.Is(err, boom) {
		t.Fatalf("Subscribe() error = %v, want snapshot failure", err)
	}
}

func TestTapSeesEveryEnvelope(t *testing.T) {
	var tapped []Envelope
	reg := NewRegistry(Options{Tap: func(env Envelope) {
		tapped = append(tapped, env)
	}})
	defer reg.Close()

	// No subscribers at all: the tap still fires.
	reg.Publish(IssueAssigned("web", 4, "WEB-4", "dana", "2026-08-25T10:00:00.000000000Z"))
	reg.Publish(IssueRegressed("web", 4, "WEB-4", "TypeError: x", "2.0.0", "2026-08-25T10:00:01.000000000Z"))

	if len(tapped) != 2 {
		t.Fatalf("tap saw %d envelopes, want 2", len(tapped))
	}
	if tapped[0].Kind != KindIssueAssigned || tapped[0].Assignee != "dana" {
		t.Fatalf("tapped[0] = %+v", tapped[0])
	}
	if tapped[1].Kind != KindIssueRegressed || tapped[1].Release != "2.0.0" {
		t.Fatalf("tapped[1] = %+v", tapped[1])
	}
}
