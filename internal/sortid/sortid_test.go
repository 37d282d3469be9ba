package sortid

import (
	"sort"
	"testing"
	"time"
)

func TestNew_StringOrderMatchesCreationOrder(t *testing.T) {
	const n = 500
	ids := make([]string, n)
	for i := range ids {
		id, err := New()
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		ids[i] = id.String()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("expected ids generated in sequence to be lexicographically sorted")
	}
	for i := 1; i < n; i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate id at %d: %s", i, ids[i])
		}
	}
}

func TestTime_RoundTripsToMillisecond(t *testing.T) {
	before := time.Now().Truncate(time.Millisecond)
	id, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	after := time.Now()

	got := id.Time()
	if got.Before(before) || got.After(after) {
		t.Errorf("expected time between %v and %v, got %v", before, after, got)
	}
}

func TestParse(t *testing.T) {
	id, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if parsed.Compare(id) != 0 {
		t.Errorf("expected %s, got %s", id, parsed)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"garbage", "not-an-id"},
		{"version 4", "0b5bd6d2-5a2c-4f5e-9b4e-0f3c5d7e8a91"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	a, _ := New()
	b, _ := New()

	if a.Compare(b) != -1 {
		t.Errorf("expected earlier id to compare -1, got %d", a.Compare(b))
	}
	if b.Compare(a) != 1 {
		t.Errorf("expected later id to compare 1, got %d", b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Errorf("expected id to compare equal to itself")
	}
}

func TestIsZero(t *testing.T) {
	var zero ID
	if !zero.IsZero() {
		t.Error("expected zero value to be zero")
	}
	id, _ := New()
	if id.IsZero() {
		t.Error("expected generated id to be non-zero")
	}
}

func TestMustParse_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustParse("bad")
}
