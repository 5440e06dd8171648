package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/bowerhall/daylog/internal/store"
)

type fakeRemote struct {
	mu          sync.Mutex
	online      bool
	failUpserts int
	upsertCalls int
	pushed      map[string]store.MessageRow
	remoteRows  []store.MessageRow
}

func newFakeRemote(online bool) *fakeRemote {
	return &fakeRemote{online: online, pushed: map[string]store.MessageRow{}}
}

func (f *fakeRemote) Online(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeRemote) setOnline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online = v
}

func (f *fakeRemote) UpsertMessages(ctx context.Context, rows []store.MessageRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertCalls++
	if f.failUpserts > 0 {
		f.failUpserts--
		return fmt.Errorf("store rejected upsert")
	}

	for _, r := range rows {
		f.pushed[r.ID] = r
	}
	return nil
}

func (f *fakeRemote) MessagesAsc(ctx context.Context) ([]store.MessageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.MessageRow(nil), f.remoteRows...), nil
}

func (f *fakeRemote) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

func testCache(t *testing.T) *Cache {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	cache, err := NewCache(db)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache
}

func testSyncer(remote Remote) *Syncer {
	s := NewSyncer(remote)
	s.baseDelay = time.Millisecond
	return s
}

func at(sec int) time.Time {
	return time.Date(2025, 6, 10, 12, 0, sec, 0, time.UTC)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := testCache(t)

	messages := []Message{
		{ID: "b", Role: "assistant", Content: "hi there", CreatedAt: at(2), Photos: []string{"ph://1"}},
		{ID: "a", Role: "user", Content: "hello", CreatedAt: at(1), Reaction: "❤️"},
	}

	if err := cache.ReplaceAll(messages); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	loaded, err := cache.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(loaded))
	}
	if loaded[0].ID != "a" || loaded[1].ID != "b" {
		t.Errorf("expected ascending order, got %s, %s", loaded[0].ID, loaded[1].ID)
	}
	if loaded[0].Reaction != "❤️" {
		t.Errorf("reaction lost: %q", loaded[0].Reaction)
	}
	if len(loaded[1].Photos) != 1 || loaded[1].Photos[0] != "ph://1" {
		t.Errorf("photos lost: %v", loaded[1].Photos)
	}
}

func TestCacheReplaceIsSnapshot(t *testing.T) {
	cache := testCache(t)

	cache.ReplaceAll([]Message{{ID: "old", Role: "user", Content: "x", CreatedAt: at(1)}})
	cache.ReplaceAll([]Message{{ID: "new", Role: "user", Content: "y", CreatedAt: at(2)}})

	loaded, _ := cache.Load()
	if len(loaded) != 1 || loaded[0].ID != "new" {
		t.Errorf("replace must be last-writer-wins, got %v", loaded)
	}
}

func TestPushSkipsRemoteWhenOffline(t *testing.T) {
	remote := newFakeRemote(false)
	syncer := testSyncer(remote)

	syncer.Push(context.Background(), []Message{{ID: "m1", Role: "user", Content: "hi", CreatedAt: at(1)}})

	if remote.calls() != 0 {
		t.Errorf("offline push must not attempt a remote upsert, got %d calls", remote.calls())
	}
	if !syncer.Offline() {
		t.Error("expected offline state")
	}
}

func TestPushRetryBound(t *testing.T) {
	remote := newFakeRemote(true)
	remote.failUpserts = 100 // always fail
	syncer := testSyncer(remote)

	syncer.Push(context.Background(), []Message{{ID: "m1", Role: "user", Content: "hi", CreatedAt: at(1)}})

	if remote.calls() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", remote.calls())
	}
	if !syncer.Offline() {
		t.Error("exhausted retries must mark offline")
	}
	if syncer.Err() == "" {
		t.Error("exhausted retries must surface a soft error")
	}
}

func TestPushRecoversWithinBudget(t *testing.T) {
	remote := newFakeRemote(true)
	remote.failUpserts = 1
	syncer := testSyncer(remote)

	syncer.Push(context.Background(), []Message{{ID: "m1", Role: "user", Content: "hi", CreatedAt: at(1)}})

	if remote.calls() != 2 {
		t.Errorf("expected 2 attempts, got %d", remote.calls())
	}
	if syncer.Offline() {
		t.Error("successful retry must clear offline state")
	}
	if _, ok := remote.pushed["m1"]; !ok {
		t.Error("message not pushed")
	}
}

func TestMergeLocalWinsOnCollision(t *testing.T) {
	reaction := "👍"

	cache := testCache(t)
	cache.ReplaceAll([]Message{
		{ID: "m1", Role: "user", Content: "hello", CreatedAt: at(1), Reaction: "❤️"},
		{ID: "m3", Role: "user", Content: "latest", CreatedAt: at(5)},
	})

	remote := newFakeRemote(true)
	remote.remoteRows = []store.MessageRow{
		{ID: "m1", Role: "user", Content: "hello", CreatedAt: at(1), Reaction: &reaction},
		{ID: "m2", Role: "assistant", Content: "reply", CreatedAt: at(3)},
	}

	manager := NewManager(cache, testSyncer(remote))
	if err := manager.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	messages := manager.Messages()
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages after merge, got %d", len(messages))
	}

	// each id exactly once, strictly ascending timestamps
	seen := map[string]int{}
	for i, m := range messages {
		seen[m.ID]++
		if i > 0 && messages[i].CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Errorf("messages out of order at %d", i)
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("id %s appears %d times", id, n)
		}
	}

	// local copy wins on collision
	for _, m := range messages {
		if m.ID == "m1" && m.Reaction != "❤️" {
			t.Errorf("local reaction must win, got %q", m.Reaction)
		}
	}
}

func TestOfflineThenReconnect(t *testing.T) {
	remote := newFakeRemote(false)
	cache := testCache(t)
	manager := NewManager(cache, testSyncer(remote))

	manager.Append(context.Background(), Message{Role: "user", Content: "sent while offline", CreatedAt: at(1)})
	manager.Append(context.Background(), Message{Role: "assistant", Content: "queued reply", CreatedAt: at(2)})

	if remote.calls() != 0 {
		t.Fatalf("no upserts expected while offline, got %d", remote.calls())
	}

	// local cache holds both despite being offline
	cached, err := cache.Load()
	if err != nil || len(cached) != 2 {
		t.Fatalf("expected 2 cached messages, got %d (err %v)", len(cached), err)
	}

	// connectivity restored, next mutation syncs the full list
	remote.setOnline(true)
	manager.Append(context.Background(), Message{Role: "user", Content: "back online", CreatedAt: at(3)})

	if len(remote.pushed) != 3 {
		t.Errorf("expected all 3 messages upserted after reconnect, got %d", len(remote.pushed))
	}
	if manager.Offline() {
		t.Error("manager should be back online")
	}
}

func TestLoadSurvivesMissingCache(t *testing.T) {
	remote := newFakeRemote(true)
	remote.remoteRows = []store.MessageRow{
		{ID: "m1", Role: "user", Content: "from remote", CreatedAt: at(1)},
	}

	manager := NewManager(testCache(t), testSyncer(remote))
	if err := manager.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	messages := manager.Messages()
	if len(messages) != 1 || messages[0].ID != "m1" {
		t.Errorf("expected remote messages with empty cache, got %v", messages)
	}
}
