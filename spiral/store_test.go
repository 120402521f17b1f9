package spiral

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// storeFactories runs each test against both built-in local backends.
func storeFactories(t *testing.T) map[string]Store {
	t.Helper()

	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	return map[string]Store{
		"fs":     fs,
		"memory": NewMemory(),
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			body := NewStringStream("round trip")
			_, _ = body.ReadN(6)

			if err := store.Put(ctx, "dir/obj.txt", body); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Get(ctx, "dir/obj.txt")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if pos, _ := got.Tell(); pos != 0 {
				t.Errorf("expected fetched stream at 0, got %d", pos)
			}
			if got.String() != "round trip" {
				t.Errorf("expected whole body, got %q", got.String())
			}
		})
	}
}

func TestStore_PutExisting(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if err := store.Put(ctx, "k", NewStringStream("a")); err != nil {
				t.Fatal(err)
			}
			err := store.Put(ctx, "k", NewStringStream("b"))
			if !errors.Is(err, ErrPathExists) {
				t.Errorf("expected ErrPathExists, got %v", err)
			}
		})
	}
}

func TestStore_PutClosedBody(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			body := NewStringStream("closed")
			_ = body.Close()

			err := store.Put(t.Context(), "k", body)
			if !errors.Is(err, ErrStreamClosed) {
				t.Errorf("expected ErrStreamClosed, got %v", err)
			}
			if exists, _ := store.Exists(t.Context(), "k"); exists {
				t.Error("expected nothing to be stored")
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(t.Context(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_InvalidPaths(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			for _, p := range []string{"", ".", "..", "../escape"} {
				if err := store.Put(ctx, p, NewStringStream("x")); !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Put(%q): expected ErrInvalidPath, got %v", p, err)
				}
				if _, err := store.Get(ctx, p); !errors.Is(err, ErrInvalidPath) {
					t.Errorf("Get(%q): expected ErrInvalidPath, got %v", p, err)
				}
			}
			if _, err := store.List(ctx, "../up"); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("List: expected ErrInvalidPath, got %v", err)
			}
		})
	}
}

func TestStore_ListExistsDelete(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			for _, k := range []string{"a/1", "a/2", "b/1"} {
				if err := store.Put(ctx, k, NewStringStream(k)); err != nil {
					t.Fatal(err)
				}
			}

			got, err := store.List(ctx, "a")
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			slices.Sort(got)
			if !slices.Equal(got, []string{"a/1", "a/2"}) {
				t.Errorf("expected [a/1 a/2], got %v", got)
			}

			if err := store.Delete(ctx, "a/1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := store.Delete(ctx, "a/1"); err != nil {
				t.Errorf("expected repeated Delete to succeed, got %v", err)
			}
			if exists, _ := store.Exists(ctx, "a/1"); exists {
				t.Error("expected a/1 to be deleted")
			}
			if exists, _ := store.Exists(ctx, "b/1"); !exists {
				t.Error("expected b/1 to exist")
			}
		})
	}
}

func TestNewFS_RequiresDirectory(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(file); err == nil {
		t.Error("expected error for file root")
	}
}

func TestMemoryFactory_SharesStore(t *testing.T) {
	factory := NewMemoryFactory()
	a, _ := factory()
	b, _ := factory()

	if err := a.Put(t.Context(), "shared", NewStringStream("x")); err != nil {
		t.Fatal(err)
	}
	if exists, _ := b.Exists(t.Context(), "shared"); !exists {
		t.Error("expected factory stores to share state")
	}
}

func TestMemoryStore_GetReturnsIndependentStreams(t *testing.T) {
	store := NewMemory()
	ctx := t.Context()
	_ = store.Put(ctx, "k", NewStringStream("same"))

	first, _ := store.Get(ctx, "k")
	_ = first.Close()

	second, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if second.String() != "same" {
		t.Errorf("expected closing one stream not to affect another, got %q", second.String())
	}
}

func TestStore_ListMatchesStringPrefix(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			for _, k := range []string{"logs/a.json.gz", "logs/b.json.gz", "logs2/c.json.gz", "other.txt"} {
				if err := store.Put(ctx, k, NewStringStream(k)); err != nil {
					t.Fatal(err)
				}
			}

			tests := []struct {
				prefix string
				want   []string
			}{
				{"", []string{"logs/a.json.gz", "logs/b.json.gz", "logs2/c.json.gz", "other.txt"}},
				{"logs", []string{"logs/a.json.gz", "logs/b.json.gz", "logs2/c.json.gz"}},
				{"logs/", []string{"logs/a.json.gz", "logs/b.json.gz"}},
				{"logs/a", []string{"logs/a.json.gz"}},
				{"/logs/b", []string{"logs/b.json.gz"}},
				{"missing/", nil},
			}
			for _, tt := range tests {
				got, err := store.List(ctx, tt.prefix)
				if err != nil {
					t.Fatalf("List(%q) failed: %v", tt.prefix, err)
				}
				if len(got) != len(tt.want) || (len(got) > 0 && !slices.Equal(got, tt.want)) {
					t.Errorf("List(%q) = %v, expected %v", tt.prefix, got, tt.want)
				}
			}
		})
	}
}

func TestStore_LeadingSlashNamesSameKey(t *testing.T) {
	for name, store := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			if err := store.Put(ctx, "/dir/obj", NewStringStream("x")); err != nil {
				t.Fatal(err)
			}
			if err := store.Put(ctx, "dir/obj", NewStringStream("y")); !errors.Is(err, ErrPathExists) {
				t.Errorf("expected ErrPathExists, got %v", err)
			}
			if exists, _ := store.Exists(ctx, "dir"); exists {
				t.Error("expected the parent of a key not to exist as a body")
			}
		})
	}
}
