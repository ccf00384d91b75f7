package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func testKey() Key {
	return Key{Scope: "murmur", PeerID: "peer1", ChannelID: "chan1"}
}

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mem.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		fs.Close()
		ss.Close()
	})
	return map[string]Store{"file": fs, "sqlite": ss}
}

func TestStoreAppendRecent(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := testKey()
			for i := 0; i < 5; i++ {
				err := s.Append(ctx, key, Entry{
					Content:   string(rune('a' + i)),
					IsUser:    i%2 == 0,
					Timestamp: base.Add(time.Duration(i) * time.Minute),
				})
				if err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			got, err := s.Recent(ctx, key, 3)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("len = %d, want 3", len(got))
			}
			// Oldest first within the recent slice.
			if got[0].Content != "c" || got[2].Content != "e" {
				t.Errorf("Recent order = %q..%q, want c..e", got[0].Content, got[2].Content)
			}
		})
	}
}

func TestStoreKeysIsolated(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			k1 := Key{Scope: "murmur", PeerID: "p1", ChannelID: "c1"}
			k2 := Key{Scope: "murmur", PeerID: "p2", ChannelID: "c1"}

			if err := s.Append(ctx, k1, Entry{Content: "for p1"}); err != nil {
				t.Fatalf("Append: %v", err)
			}
			got, err := s.Recent(ctx, k2, 10)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Recent(k2) = %v, want empty", got)
			}
		})
	}
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			key := testKey()
			if err := s.Append(ctx, key, Entry{Content: "x"}); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := s.Reset(ctx, key); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			got, err := s.Recent(ctx, key, 10)
			if err != nil {
				t.Fatalf("Recent: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Recent after reset = %v, want empty", got)
			}
			// Reset of a missing key is not an error.
			if err := s.Reset(ctx, key); err != nil {
				t.Errorf("second Reset: %v", err)
			}
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key := testKey()
	if err := s1.Append(ctx, key, Entry{Content: "persisted", IsUser: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	s1.Close()

	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.Recent(ctx, key, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Content != "persisted" || !got[0].IsUser {
		t.Errorf("Recent after reload = %+v", got)
	}
}

func TestDecisionLog(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "mem.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	base := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := s.RecordDecision(ctx, Decision{
			ID:        string(rune('a' + i)),
			ChannelID: "c1",
			AuthorID:  "u1",
			Respond:   i == 2,
			Score:     i + 4,
			Reasoning: "because",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordDecision: %v", err)
		}
	}

	got, err := s.RecentDecisions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].ID != "c" || got[0].Score != 6 || !got[0].Respond {
		t.Errorf("newest decision = %+v", got[0])
	}
}
