package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"sessionops/internal/cookie"
)

func strPtr(s string) *string { return &s }

func newTestStore(t *testing.T) *CookieStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cookies.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	defer s.Close()

	records, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty store, got %d records", len(records))
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := []cookie.Cookie{
		{Domain: ".example.com", Name: "sid", Value: "abc", Path: "/", Expires: strPtr("1893456000"), Secure: true, HTTPOnly: true, SameSite: strPtr("lax")},
		{Domain: "app.test", Name: "theme", Value: "dark", Path: "/ui"},
	}
	ids, err := s.Save(ctx, "WS01", in)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}

	for i, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", id, err)
		}
		if rec.Source != "WS01" {
			t.Errorf("source = %q, want WS01", rec.Source)
		}
		if diff := cmp.Diff(in[i], rec.Cookie); diff != "" {
			t.Errorf("cookie %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestSaveDefaultsEmptyPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Save(ctx, "", []cookie.Cookie{{Domain: "a.test", Name: "n", Value: "v"}})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	rec, err := s.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.Cookie.Path != "/" {
		t.Errorf("path = %q, want /", rec.Cookie.Path)
	}
}

func TestGetUnknown(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrCookieNotFound) {
		t.Fatalf("expected ErrCookieNotFound, got %v", err)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	if _, err := s.Save(ctx, "first", []cookie.Cookie{{Domain: "Mail.Example.com", Name: "a"}}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := s.Save(ctx, "second", []cookie.Cookie{
		{Domain: "other.test", Name: "b"},
		{Domain: ".example.com", Name: "c"},
	}); err != nil {
		t.Fatal(err)
	}

	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var names []string
	for _, r := range all {
		names = append(names, r.Cookie.Name)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if !all[0].CapturedAt.Equal(base) {
		t.Errorf("captured_at = %v, want %v", all[0].CapturedAt, base)
	}

	filtered, err := s.List(ctx, "EXAMPLE")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	got := Cookies(filtered)
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Errorf("unexpected filtered cookies: %+v", got)
	}
}

func TestListFilterFoldsUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := []cookie.Cookie{
		{Domain: "BÜCHER.de", Name: "cart"},
		{Domain: "example.com", Name: "sid"},
	}
	if _, err := s.Save(ctx, "h", in); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, "bücher")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].Cookie.Name != "cart" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if want := cookie.FilterDomain(in, "bücher"); len(want) != len(got) {
		t.Errorf("store returned %d records, FilterDomain %d", len(got), len(want))
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids, err := s.Save(ctx, "h", []cookie.Cookie{{Domain: "a", Name: "1"}, {Domain: "b", Name: "2"}})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.Delete(ctx, ids[0], "missing")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if n, _ := s.Delete(ctx); n != 0 {
		t.Errorf("empty delete = %d, want 0", n)
	}

	rest, err := s.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 1 || rest[0].ID != ids[1] {
		t.Errorf("unexpected remaining records: %+v", rest)
	}
}
