package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/doctable/kv"
	"github.com/jacentio/doctable/store"
	"github.com/jacentio/doctable/stream"
)

// --- Helpers ---

// failingKV fails every write after Ready.
type failingKV struct {
	*kv.Memory
	err error
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	return f.Memory.Set(ctx, key, value)
}

func newRegistry() *store.Registry {
	r := store.NewRegistry()
	r.Register(store.Relationship{ParentTable: "author", ChildTable: "book"})
	r.Register(store.Relationship{ParentTable: "book", ChildTable: "review"})
	return r
}

func newStore(t *testing.T, backend kv.Store, prefix string) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.KeyPrefix = prefix
	return store.NewWithRegistry(backend, cfg, newRegistry())
}

func mustSave(t *testing.T, s *store.Store, table string, rec store.Record) {
	t.Helper()
	if _, err := s.Save(context.Background(), table, rec, false); err != nil {
		t.Fatalf("save %s: %v", table, err)
	}
}

func mustExport(t *testing.T, s *store.Store, table string) string {
	t.Helper()
	raw, err := s.Export(context.Background(), table)
	if err != nil {
		t.Fatalf("export %s: %v", table, err)
	}
	return string(raw)
}

func mustCount(t *testing.T, s *store.Store, table string) int {
	t.Helper()
	n, err := s.Count(context.Background(), table)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// modify builds the stream record of a table write.
func modify(key, oldValue, newValue string) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "evt-" + key,
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				kv.AttrKey: events.NewStringAttribute(key),
			},
			OldImage: map[string]events.DynamoDBAttributeValue{
				kv.AttrKey:   events.NewStringAttribute(key),
				kv.AttrValue: events.NewStringAttribute(oldValue),
			},
			NewImage: map[string]events.DynamoDBAttributeValue{
				kv.AttrKey:   events.NewStringAttribute(key),
				kv.AttrValue: events.NewStringAttribute(newValue),
			},
		},
	}
}

// seedLibrary writes two authors, three books and two reviews.
func seedLibrary(t *testing.T, s *store.Store) {
	t.Helper()
	mustSave(t, s, "author", store.Record{"name": "Ursula"})
	mustSave(t, s, "author", store.Record{"name": "Iain"})
	mustSave(t, s, "book", store.Record{"title": "Earthsea", "author_id": 1})
	mustSave(t, s, "book", store.Record{"title": "Dispossessed", "author_id": 1})
	mustSave(t, s, "book", store.Record{"title": "Excession", "author_id": 2})
	mustSave(t, s, "review", store.Record{"stars": 5, "book_id": 1})
	mustSave(t, s, "review", store.Record{"stars": 4, "book_id": 3})
}

// --- NewHandler Tests ---

func TestNewHandler(t *testing.T) {
	// Test with nil store and logger (should not panic)
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestNewHandler_WithStore(t *testing.T) {
	s := store.New(kv.NewMemory(), store.DefaultConfig())
	h := stream.NewHandler(s, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler with store")
	}
}

// --- Handler HandleCascadeDelete Tests ---

func TestHandler_HandleCascadeDelete_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{},
	}

	// Empty event should not error
	err := h.HandleCascadeDelete(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandler_HandleCascadeDelete_InsertEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{
				EventName: "INSERT",
				Change: events.DynamoDBStreamRecord{
					NewImage: map[string]events.DynamoDBAttributeValue{
						kv.AttrKey:   events.NewStringAttribute("author"),
						kv.AttrValue: events.NewStringAttribute("[]"),
					},
				},
			},
		},
	}

	// INSERT events should be skipped (no error)
	err := h.HandleCascadeDelete(context.Background(), event)
	if err != nil {
		t.Errorf("expected no error for INSERT event, got %v", err)
	}
}

func TestHandler_HandleCascadeDelete_RemovesChildren(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "")
	seedLibrary(t, s)

	before := mustExport(t, s, "author")
	if err := s.Remove(ctx, "author", 1); err != nil {
		t.Fatal(err)
	}
	after := mustExport(t, s, "author")

	h := stream.NewHandler(s, nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{modify("author", before, after)}}
	if err := h.HandleCascadeDelete(ctx, event); err != nil {
		t.Fatalf("HandleCascadeDelete: %v", err)
	}

	books, err := s.List(ctx, "book")
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0]["title"] != "Excession" {
		t.Errorf("expected only Excession to remain, got %v", books)
	}

	// One level per invocation: reviews wait for the book table's own event.
	if n := mustCount(t, s, "review"); n != 2 {
		t.Errorf("expected reviews untouched, got %d", n)
	}
}

func TestHandler_HandleCascadeDelete_FollowsNextLevel(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "")
	seedLibrary(t, s)
	h := stream.NewHandler(s, nil)

	authorsBefore := mustExport(t, s, "author")
	booksBefore := mustExport(t, s, "book")
	if err := s.Remove(ctx, "author", 1); err != nil {
		t.Fatal(err)
	}
	authorsAfter := mustExport(t, s, "author")

	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("author", authorsBefore, authorsAfter)},
	}); err != nil {
		t.Fatal(err)
	}
	booksAfter := mustExport(t, s, "book")

	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("book", booksBefore, booksAfter)},
	}); err != nil {
		t.Fatal(err)
	}

	reviews, err := s.List(ctx, "review")
	if err != nil {
		t.Fatal(err)
	}
	if len(reviews) != 1 {
		t.Fatalf("expected 1 review left, got %d", len(reviews))
	}
	if id, _ := reviews[0].ID(); id != 2 {
		t.Errorf("expected review 2 to remain, got %d", id)
	}
}

func TestHandler_HandleCascadeDelete_RemoveEvent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "")
	seedLibrary(t, s)

	before := mustExport(t, s, "author")
	record := modify("author", before, "")
	record.EventName = "REMOVE"
	record.Change.NewImage = nil

	h := stream.NewHandler(s, nil)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}}); err != nil {
		t.Fatal(err)
	}

	// Deleting the whole table item orphans every author.
	if n := mustCount(t, s, "book"); n != 0 {
		t.Errorf("expected all books removed, got %d", n)
	}
}

func TestHandler_HandleCascadeDelete_NoRemovals(t *testing.T) {
	ctx := context.Background()
	backend := newCountingKV()
	s := newStore(t, backend, "")
	seedLibrary(t, s)

	before := mustExport(t, s, "author")
	mustSave(t, s, "author", store.Record{"name": "Octavia"})
	after := mustExport(t, s, "author")
	writes := backend.sets

	h := stream.NewHandler(s, nil)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("author", before, after)},
	}); err != nil {
		t.Fatal(err)
	}

	if backend.sets != writes {
		t.Errorf("expected no writes for an append-only change, got %d", backend.sets-writes)
	}
}

func TestHandler_HandleCascadeDelete_TableWithoutChildren(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "")
	seedLibrary(t, s)

	before := mustExport(t, s, "review")
	if err := s.Remove(ctx, "review", 1); err != nil {
		t.Fatal(err)
	}
	after := mustExport(t, s, "review")

	h := stream.NewHandler(s, nil)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("review", before, after)},
	}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, s, "book"); n != 3 {
		t.Errorf("expected books untouched, got %d", n)
	}
}

func TestHandler_HandleCascadeDelete_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "app:")
	seedLibrary(t, s)

	before := mustExport(t, s, "author")
	if err := s.Remove(ctx, "author", 2); err != nil {
		t.Fatal(err)
	}
	after := mustExport(t, s, "author")

	h := stream.NewHandler(s, nil)

	// Keys outside the prefix belong to another store sharing the table.
	foreign := modify("author", before, after)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{foreign}}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, s, "book"); n != 3 {
		t.Fatalf("expected foreign key to be ignored, got %d books", n)
	}

	own := modify("app:author", before, after)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{own}}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, s, "book"); n != 2 {
		t.Errorf("expected Excession removed, got %d books", n)
	}
}

func TestHandler_HandleCascadeDelete_RawObjectImage(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, kv.NewMemory(), "")
	seedLibrary(t, s)

	// A raw object written over a table holds no ids to diff against.
	h := stream.NewHandler(s, nil)
	record := modify("author", `{"note":"not a table"}`, `[]`)
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{record}}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, s, "book"); n != 3 {
		t.Errorf("expected books untouched, got %d", n)
	}
}

func TestHandler_HandleCascadeDelete_FailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	backend := &failingKV{Memory: kv.NewMemory()}
	s := newStore(t, backend, "")
	seedLibrary(t, s)

	before := mustExport(t, s, "author")
	if err := s.Remove(ctx, "author", 1); err != nil {
		t.Fatal(err)
	}
	after := mustExport(t, s, "author")

	backend.err = errors.New("throttled")
	h := stream.NewHandler(s, nil)
	err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("author", before, after)},
	})
	if err == nil {
		t.Fatal("expected error so the batch is retried")
	}
	if !errors.Is(err, backend.err) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}

	// Retrying after recovery completes the cascade.
	backend.err = nil
	if err := h.HandleCascadeDelete(ctx, events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify("author", before, after)},
	}); err != nil {
		t.Fatal(err)
	}
	if n := mustCount(t, s, "book"); n != 1 {
		t.Errorf("expected 1 book after retry, got %d", n)
	}
}

// countingKV counts writes.
type countingKV struct {
	*kv.Memory
	sets int
}

func newCountingKV() *countingKV {
	return &countingKV{Memory: kv.NewMemory()}
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	c.sets++
	return c.Memory.Set(ctx, key, value)
}
