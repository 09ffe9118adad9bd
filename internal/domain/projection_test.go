package domain

import (
	"reflect"
	"testing"
)

func TestFromSnapshotSortsByID(t *testing.T) {
	entries := map[string]Request{
		"300": {ID: 300, Track: "c"},
		"100": {ID: 100, Track: "a"},
		"200": {ID: 200, Track: "b"},
	}

	got := FromSnapshot(entries)
	wantIDs := []int64{100, 200, 300}
	for i, req := range got {
		if req.ID != wantIDs[i] {
			t.Fatalf("position %d: got id %d, want %d", i, req.ID, wantIDs[i])
		}
	}
}

// A record whose id field is unset (a partial record created by a merge into
// an absent path) falls back to its storage key as the id.
func TestFromSnapshotIDFallback(t *testing.T) {
	entries := map[string]Request{
		"1700000000000": {Played: true}, // partial record, no id field
		"1700000000500": {ID: 1700000000500, Track: "real"},
	}

	got := FromSnapshot(entries)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ID != 1700000000000 {
		t.Errorf("partial record id = %d, want storage key fallback 1700000000000", got[0].ID)
	}
	if !got[0].Played {
		t.Errorf("partial record lost its played flag")
	}
}

func TestFromSnapshotEmpty(t *testing.T) {
	got := FromSnapshot(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("FromSnapshot(nil) = %v, want empty non-nil slice", got)
	}
}

func TestOrderActive(t *testing.T) {
	in := []Request{
		{ID: 1, Played: true},
		{ID: 2, Played: false},
		{ID: 3, Played: true},
		{ID: 4, Played: false},
	}

	got := OrderActive(in)
	wantIDs := []int64{2, 4, 1, 3}
	for i, req := range got {
		if req.ID != wantIDs[i] {
			t.Fatalf("position %d: got id %d, want %d", i, req.ID, wantIDs[i])
		}
	}

	// Input order is untouched.
	if in[0].ID != 1 {
		t.Errorf("OrderActive mutated its input")
	}
}

func TestCountsOf(t *testing.T) {
	requests := []Request{
		{ID: 1, Played: true},
		{ID: 2},
		{ID: 3},
	}

	got := CountsOf(requests)
	want := QueueCounts{Total: 3, Unplayed: 2, Played: 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountsOf = %+v, want %+v", got, want)
	}
	if got.Unplayed+got.Played != got.Total {
		t.Errorf("count invariant broken: %+v", got)
	}
}

func TestDisplayName(t *testing.T) {
	r := Request{Username: ""}
	if got := r.DisplayName(); got != AnonymousName {
		t.Errorf("DisplayName = %q, want %q", got, AnonymousName)
	}
	r.Username = "viewer42"
	if got := r.DisplayName(); got != "viewer42" {
		t.Errorf("DisplayName = %q", got)
	}
}

func TestQueueValid(t *testing.T) {
	if !QueueActive.Valid() || !QueueStaged.Valid() {
		t.Errorf("known queues must validate")
	}
	if Queue("playlist").Valid() {
		t.Errorf("unknown queue must not validate")
	}
}
