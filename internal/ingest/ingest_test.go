package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/crowdframe/internal/logger"
)

func init() {
	writeSleepFunc = func(d time.Duration) {}
}

func sampleRecord() Record {
	return Record{
		Sequence:   Sequence(0),
		Bucket:     "bucket",
		Task:       "Fact",
		Batch:      "Batch1",
		Worker:     "W1",
		UnitID:     "unit-1",
		TryCurrent: 1,
		Region:     "eu-west-1",
		Type:       "checkpoint",
		Details:    map[string]any{"step": 2},
	}
}

// flakyStore fails the first n writes
type flakyStore struct {
	mu    sync.Mutex
	fail  int
	calls []Item
	inner *MemoryStore
}

func (s *flakyStore) PutIfAbsent(ctx context.Context, table string, item Item) error {
	s.mu.Lock()
	s.calls = append(s.calls, item)
	fail := len(s.calls) <= s.fail
	s.mu.Unlock()
	if fail {
		return errors.New("throttled")
	}
	return s.inner.PutIfAbsent(ctx, table, item)
}

func TestTableName(t *testing.T) {
	if got := TableName("crowd", "Fact", "Batch1"); got != "crowd-Fact_Batch1_Logger" {
		t.Errorf("Expected crowd-Fact_Batch1_Logger, got %s", got)
	}
}

func TestWriter_StampsAndSerializes(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, "crowd", 3)
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }

	if err := w.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	items := store.Items("crowd-Fact_Batch1_Logger")
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].ServerTime != 1700000000000 {
		t.Errorf("Expected server time stamp, got %d", items[0].ServerTime)
	}
	if items[0].Details != `{"step":2}` {
		t.Errorf("Expected details serialized to string, got %q", items[0].Details)
	}
}

func TestWriter_RetriesMutateSequence(t *testing.T) {
	store := &flakyStore{fail: 2, inner: NewMemoryStore()}
	w := NewWriter(store, "crowd", 3)

	rec := sampleRecord()
	rec.Sequence = "17"
	if err := w.Write(context.Background(), rec); err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}

	want := []string{"17", "1_17", "2_17"}
	if len(store.calls) != len(want) {
		t.Fatalf("Expected %d attempts, got %d", len(want), len(store.calls))
	}
	for i, seq := range want {
		if store.calls[i].Sequence != seq {
			t.Errorf("attempt %d: expected sequence %s, got %s", i, seq, store.calls[i].Sequence)
		}
	}
}

func TestWriter_ExhaustedAttempts(t *testing.T) {
	store := &flakyStore{fail: 10, inner: NewMemoryStore()}
	w := NewWriter(store, "crowd", 0)

	err := w.Write(context.Background(), sampleRecord())
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("Expected ErrDeliveryFailed, got %v", err)
	}
	if len(store.calls) != DefaultMaxAttempts {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxAttempts, len(store.calls))
	}
}

func TestWriter_DuplicateRetriesUnderNewSequence(t *testing.T) {
	store := NewMemoryStore()
	w := NewWriter(store, "crowd", 3)

	if err := w.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatal(err)
	}
	// Same key again: first attempt hits ErrItemExists, second lands as 1_0
	if err := w.Write(context.Background(), sampleRecord()); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if n := len(store.Items("crowd-Fact_Batch1_Logger")); n != 2 {
		t.Errorf("Expected 2 items, got %d", n)
	}
}

func TestWriter_RejectsIncompleteRecord(t *testing.T) {
	w := NewWriter(NewMemoryStore(), "crowd", 3)
	rec := sampleRecord()
	rec.Worker = ""
	if err := w.Write(context.Background(), rec); err == nil || !strings.Contains(err.Error(), "worker") {
		t.Errorf("Expected missing worker error, got %v", err)
	}
}

func TestRecord_DecodesNumericSequence(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"sequence": 12, "worker": "W"}`), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Sequence != "12" {
		t.Errorf("Expected sequence 12, got %q", rec.Sequence)
	}
}

func TestSQLiteStore_ConditionalWrite(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	table := TableName("crowd", "Fact", "Batch1")
	item := Item{Worker: "W1", Sequence: "0", Task: "Fact", Batch: "Batch1", Details: "{}"}

	if err := store.PutIfAbsent(ctx, table, item); err != nil {
		t.Fatalf("Expected first insert to succeed, got %v", err)
	}
	if err := store.PutIfAbsent(ctx, table, item); !errors.Is(err, ErrItemExists) {
		t.Errorf("Expected ErrItemExists, got %v", err)
	}

	other := item
	other.Worker = "W2"
	if err := store.PutIfAbsent(ctx, table, other); err != nil {
		t.Errorf("Expected other worker to be independent, got %v", err)
	}

	items, err := store.Items(ctx, table, "W1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Sequence != "0" {
		t.Errorf("Expected one W1 item, got %v", items)
	}
}

func TestSQLiteStore_WithWriter(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	w := NewWriter(store, "crowd", 3)
	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		rec.Sequence = Sequence(i)
		if err := w.Write(context.Background(), rec); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	items, _ := store.Items(context.Background(), "crowd-Fact_Batch1_Logger", "W1")
	if len(items) != 3 {
		t.Errorf("Expected 3 items, got %d", len(items))
	}
}

func TestClient_DeliversOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var got []Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(NewHTTPDeliverer(server.URL, 5*time.Second, "", "", ""), 2)
	for i := 0; i < 5; i++ {
		rec := sampleRecord()
		rec.Sequence = Sequence(i)
		client.Emit(rec)
	}
	client.Close()

	if len(got) != 5 {
		t.Errorf("Expected 5 delivered records, got %d", len(got))
	}
	if delivered, failed := client.Stats(); delivered != 5 || failed != 0 {
		t.Errorf("Expected 5/0, got %d/%d", delivered, failed)
	}
}

func TestClient_FailuresGoToOperatorLog(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	client := NewClient(NewHTTPDeliverer(server.URL, 5*time.Second, "", "", ""), 1)
	client.Emit(sampleRecord())
	client.Close()

	if _, failed := client.Stats(); failed != 1 {
		t.Errorf("Expected 1 failure, got %d", failed)
	}
	if !strings.Contains(buf.String(), "dropping checkpoint record") {
		t.Errorf("Expected operator log entry, got %q", buf.String())
	}
}

func TestClient_WithLocalWriter(t *testing.T) {
	store := NewMemoryStore()
	client := NewClient(NewWriter(store, "crowd", 3), 2)
	for i := 0; i < 10; i++ {
		rec := sampleRecord()
		rec.Sequence = Sequence(i)
		client.Emit(rec)
	}
	client.Close()

	if n := len(store.Items("crowd-Fact_Batch1_Logger")); n != 10 {
		t.Errorf("Expected 10 items, got %d", n)
	}
}
