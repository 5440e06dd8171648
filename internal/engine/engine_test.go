package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bowerhall/daylog/internal/llm"
	"github.com/bowerhall/daylog/internal/store"
)

type fakeLLM struct {
	mu           sync.Mutex
	failCalls    int // -1 fails every call
	calls        int
	lastSystem   string
	lastMessages []llm.Message
	reply        string
}

func (f *fakeLLM) Chat(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.lastSystem = systemPrompt
	f.lastMessages = messages

	if f.failCalls == -1 || f.calls <= f.failCalls {
		return "", fmt.Errorf("backend unavailable")
	}
	return f.reply, nil
}

func (f *fakeLLM) prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lastMessages) == 0 {
		return ""
	}
	return f.lastMessages[len(f.lastMessages)-1].Content
}

type fakeRecords struct {
	events    []store.EventRow
	locations []store.LocationRow
	photos    []store.PhotoRow
}

func (f *fakeRecords) EventsBetween(ctx context.Context, start, end time.Time) ([]store.EventRow, error) {
	return f.events, nil
}

func (f *fakeRecords) LocationsBetween(ctx context.Context, start, end time.Time) ([]store.LocationRow, error) {
	return f.locations, nil
}

func (f *fakeRecords) PhotosBetween(ctx context.Context, start, end time.Time) ([]store.PhotoRow, error) {
	return f.photos, nil
}

// Wednesday, June 11 2025
var testNow = time.Date(2025, 6, 11, 18, 0, 0, 0, time.UTC)

func testEngine(records Records, completion, vision llm.LLM) *Engine {
	e := New(records, completion, vision, time.UTC)
	e.retryDelay = time.Millisecond
	e.now = func() time.Time { return testNow }
	return e
}

func TestComputeWindows(t *testing.T) {
	w := ComputeWindows(testNow, time.UTC)

	if !w.StartOfToday.Equal(time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start of today: %v", w.StartOfToday)
	}
	if !w.EndOfToday.Equal(time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end of today: %v", w.EndOfToday)
	}
	if !w.StartOfWeek.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week should start Monday, got %v", w.StartOfWeek)
	}
	if !w.StartOfMonth.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start of month: %v", w.StartOfMonth)
	}

	// Sunday belongs to the week that started the previous Monday
	sunday := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	if w := ComputeWindows(sunday, time.UTC); !w.StartOfWeek.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday week start: %v", w.StartOfWeek)
	}
}

func TestRetryBound(t *testing.T) {
	completion := &fakeLLM{failCalls: -1}
	e := testEngine(&fakeRecords{}, completion, &fakeLLM{})

	_, err := e.Ask(context.Background(), Turn{Query: "hello"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if completion.calls != 4 {
		t.Errorf("expected 4 total attempts, got %d", completion.calls)
	}
}

func TestRetryRecovers(t *testing.T) {
	completion := &fakeLLM{failCalls: 2, reply: "ok"}
	e := testEngine(&fakeRecords{}, completion, &fakeLLM{})

	resp, err := e.Ask(context.Background(), Turn{Query: "hello"})
	if err != nil {
		t.Fatalf("expected recovery within retry budget: %v", err)
	}
	if resp.Text != "ok" || completion.calls != 3 {
		t.Errorf("got %q after %d calls", resp.Text, completion.calls)
	}
}

func TestTodayContextDetailed(t *testing.T) {
	office := "Office"
	records := &fakeRecords{
		events: []store.EventRow{
			{Title: "Standup", StartTime: testNow.Add(-9 * time.Hour), EndTime: testNow.Add(-9*time.Hour + 30*time.Minute)},
			{Title: "Design review", StartTime: testNow.Add(-4 * time.Hour), EndTime: testNow.Add(-3 * time.Hour), Location: &office},
		},
		locations: []store.LocationRow{
			{Place: "Office", Timestamp: testNow.Add(-8 * time.Hour)},
		},
		photos: []store.PhotoRow{
			{FileURI: "ph://today", Timestamp: testNow.Add(-2 * time.Hour)},
			{FileURI: "ph://lastweek", Timestamp: testNow.AddDate(0, 0, -9)},
		},
	}

	completion := &fakeLLM{reply: "You had two meetings."}
	e := testEngine(records, completion, &fakeLLM{})

	resp, err := e.Ask(context.Background(), Turn{Query: "What did I do today?"})
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}

	prompt := completion.prompt()
	if !strings.Contains(prompt, "Standup (9:00 AM to 9:30 AM)") {
		t.Errorf("prompt missing formatted first event:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Design review (2:00 PM to 3:00 PM) at Office") {
		t.Errorf("prompt missing formatted second event:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Office at 10:00 AM") {
		t.Errorf("prompt missing location with time:\n%s", prompt)
	}
	if !strings.Contains(prompt, "What did I do today?") {
		t.Errorf("prompt missing the literal query:\n%s", prompt)
	}

	if len(resp.Photos) != 1 || resp.Photos[0] != "ph://today" {
		t.Errorf("expected today's photo selected, got %v", resp.Photos)
	}
}

func TestWeekSummarizedByDate(t *testing.T) {
	records := &fakeRecords{
		events: []store.EventRow{
			{Title: "Dentist", StartTime: testNow.AddDate(0, 0, -2), EndTime: testNow.AddDate(0, 0, -2).Add(time.Hour)},
		},
		locations: []store.LocationRow{
			{Place: "Gym", Timestamp: testNow.AddDate(0, 0, -1)},
		},
	}

	completion := &fakeLLM{reply: "ok"}
	e := testEngine(records, completion, &fakeLLM{})

	if _, err := e.Ask(context.Background(), Turn{Query: "how was my week"}); err != nil {
		t.Fatalf("ask failed: %v", err)
	}

	prompt := completion.prompt()
	if !strings.Contains(prompt, "Earlier this week:") {
		t.Fatalf("prompt missing week section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "2025-06-09: events: Dentist") {
		t.Errorf("prompt missing summarized event day:\n%s", prompt)
	}
	if !strings.Contains(prompt, "2025-06-10: places: Gym") {
		t.Errorf("prompt missing summarized location day:\n%s", prompt)
	}
}

func TestPhotoOnlyTurn(t *testing.T) {
	vision := &fakeLLM{reply: "A cat asleep on a sofa."}
	completion := &fakeLLM{reply: "That's your cat."}
	e := testEngine(&fakeRecords{}, completion, vision)

	resp, err := e.Ask(context.Background(), Turn{
		Attachment: &Attachment{URI: "ph://sent", Data: []byte{1, 2}, MediaType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}

	if vision.calls != 1 {
		t.Errorf("expected one vision call, got %d", vision.calls)
	}
	if len(vision.lastMessages) != 1 || len(vision.lastMessages[0].Images) != 1 {
		t.Fatal("vision call missing the image")
	}

	prompt := completion.prompt()
	if !strings.Contains(prompt, "What is in this photo?") {
		t.Errorf("empty query must default to the photo question:\n%s", prompt)
	}
	if !strings.Contains(prompt, "A cat asleep on a sofa.") {
		t.Errorf("vision description must be injected verbatim:\n%s", prompt)
	}
	if !strings.Contains(prompt, "ground truth") {
		t.Errorf("prompt missing ground-truth instruction:\n%s", prompt)
	}

	if len(resp.Photos) != 1 || resp.Photos[0] != "ph://sent" {
		t.Errorf("attachment must be preferred as response photo, got %v", resp.Photos)
	}
}

func TestVisionFailureFallsBack(t *testing.T) {
	vision := &fakeLLM{failCalls: -1}
	completion := &fakeLLM{reply: "ok"}
	e := testEngine(&fakeRecords{}, completion, vision)

	_, err := e.Ask(context.Background(), Turn{
		Query:      "what's this?",
		Attachment: &Attachment{URI: "ph://sent", Data: []byte{1}, MediaType: "image/png"},
	})
	if err != nil {
		t.Fatalf("vision failure must not fail the turn: %v", err)
	}

	if !strings.Contains(completion.prompt(), visionFallback) {
		t.Errorf("prompt missing fallback description:\n%s", completion.prompt())
	}
}

func TestSelectPhotosByKeyword(t *testing.T) {
	paris := "Paris, France"
	w := ComputeWindows(testNow, time.UTC)
	photos := []store.PhotoRow{
		{FileURI: "ph://paris", Timestamp: testNow.AddDate(0, 0, -3), Place: &paris},
		{FileURI: "ph://today", Timestamp: testNow.Add(-time.Hour)},
	}
	locations := []store.LocationRow{
		{Place: "Paris, France", Timestamp: testNow.AddDate(0, 0, -3)},
	}

	if got := selectPhotos("show me photos from paris, france", w, photos, locations); len(got) != 1 || got[0] != "ph://paris" {
		t.Errorf("place keyword selection: %v", got)
	}
	if got := selectPhotos("any pictures?", w, photos, locations); len(got) != 2 {
		t.Errorf("generic picture keyword should match all, got %v", got)
	}
	if got := selectPhotos("what happened today", w, photos, locations); len(got) != 1 || got[0] != "ph://today" {
		t.Errorf("today keyword selection: %v", got)
	}
}
