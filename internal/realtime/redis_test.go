package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unreachableRedis points at a closed port so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})
	return rdb
}

func TestRedisBridgeDeliversLocallyWhenPublishFails(t *testing.T) {
	hub := NewHub(8, 100)
	user := uuid.New()
	sub := hub.Subscribe(UserTarget(user))
	defer sub.Close()

	bridge := NewRedisBridge(hub, unreachableRedis(t), "")
	if bridge.channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", bridge.channel, DefaultChannel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev := NewEvent(EventReportUpdated, UserTarget(user), "r-1", "UBICANDO", "Report update", "Officer on the way", time.Now())
	if err := bridge.Publish(ctx, ev); err == nil {
		t.Error("Publish to an unreachable Redis returned nil")
	}
	if got := drain(sub); len(got) != 1 || got[0].Key != ev.Key {
		t.Fatalf("local delivery = %+v", got)
	}
}

func TestRedisBridgeHandleDropsOwnEcho(t *testing.T) {
	hub := NewHub(8, 100)
	user := uuid.New()
	sub := hub.Subscribe(UserTarget(user))
	defer sub.Close()
	bridge := NewRedisBridge(hub, unreachableRedis(t), "campus-safety:test")

	at := time.Now()
	local := NewEvent(EventReportUpdated, UserTarget(user), "r-1", "INVESTIGANDO", "Report update", "Officer on site", at)
	hub.Deliver(local)

	encode := func(ev Event) string {
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatal(err)
		}
		return string(raw)
	}

	bridge.handle(encode(local))
	bridge.handle("{not json")
	remote := NewEvent(EventReportUpdated, UserTarget(user), "r-2", "RESUELTO", "Report resolved", "Thanks", at)
	bridge.handle(encode(remote))

	got := drain(sub)
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2: %+v", len(got), got)
	}
	if got[0].Key != local.Key || got[1].Key != remote.Key {
		t.Errorf("order = [%s %s], want local then remote", got[0].SubjectID, got[1].SubjectID)
	}
	if got[1].Target != UserTarget(user) {
		t.Errorf("remote target = %s", got[1].Target)
	}
}

func TestRedisBridgeRunStopsOnCancel(t *testing.T) {
	bridge := NewRedisBridge(NewHub(8, 100), unreachableRedis(t), "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
