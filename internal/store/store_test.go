package store

import (
	"context"
	"sort"
	"testing"
)

type record struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "mindease-mood-u1", record{Name: "a", Count: 2}); err != nil {
		t.Fatalf("Put err: %v", err)
	}

	var got record
	ok, err := s.Get(ctx, "mindease-mood-u1", &got)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if !ok || got.Name != "a" || got.Count != 2 {
		t.Fatalf("unexpected record: ok=%v got=%+v", ok, got)
	}
}

func TestMemoryStoreAbsentKey(t *testing.T) {
	s := NewMemoryStore()
	var got record
	ok, err := s.Get(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if ok {
		t.Fatal("expected absent record")
	}
}

func TestMemoryStoreCorruptRecordTreatedAbsent(t *testing.T) {
	s := NewMemoryStore()
	s.PutRaw("mindease-user", []byte("{not json"))

	var got record
	ok, err := s.Get(context.Background(), "mindease-user", &got)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if ok {
		t.Fatal("corrupt record must read as absent")
	}
}

func TestMemoryStoreListKeysPrefix(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, key := range []string{"mindease-user", "mindease-mood-u1", "mindease-checkin-u1", "other-app"} {
		if err := s.Put(ctx, key, record{}); err != nil {
			t.Fatalf("Put err: %v", err)
		}
	}

	keys, err := s.ListKeys(ctx, AppPrefix())
	if err != nil {
		t.Fatalf("ListKeys err: %v", err)
	}
	sort.Strings(keys)
	want := []string{"mindease-checkin-u1", "mindease-mood-u1", "mindease-user"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("expected key %s at %d, got %s", k, i, keys[i])
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "mindease-mood-u1", []record{{Name: "a"}}); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if err := s.Put(ctx, "mindease-mood-u1", []record{{Name: "b"}}); err != nil {
		t.Fatalf("overwrite err: %v", err)
	}

	var got []record
	ok, err := s.Get(ctx, "mindease-mood-u1", &got)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if !ok || len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("expected last write to win, got ok=%v %+v", ok, got)
	}
}

func TestFileStoreDeleteIdempotent(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "mindease-user", record{Name: "a"}); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if err := s.Delete(ctx, "mindease-user"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if err := s.Delete(ctx, "mindease-user"); err != nil {
		t.Fatalf("second Delete err: %v", err)
	}

	var got record
	if ok, _ := s.Get(ctx, "mindease-user", &got); ok {
		t.Fatal("expected record gone after delete")
	}
}

func TestFileStoreListKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore err: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"mindease-mood-u1", "mindease-mood-u2", "mindease-user"} {
		if err := s.Put(ctx, key, record{}); err != nil {
			t.Fatalf("Put err: %v", err)
		}
	}

	keys, err := s.ListKeys(ctx, "mindease-mood-")
	if err != nil {
		t.Fatalf("ListKeys err: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 mood keys, got %v", keys)
	}
}

func TestEntityKeyLayout(t *testing.T) {
	if got := EntityKey("mood", "u1"); got != "mindease-mood-u1" {
		t.Fatalf("unexpected key: %s", got)
	}
	if !BelongsTo("mindease-mood-u1", "u1") {
		t.Fatal("expected key to belong to u1")
	}
	if BelongsTo("mindease-mood-u12", "u1") {
		t.Fatal("key of another user must not match")
	}
}
