package queue

import (
	"math/rand"
	"testing"

	"resona/pkg/models"
)

func makeTracks(ids ...string) []models.Track {
	tracks := make([]models.Track, len(ids))
	for i, id := range ids {
		tracks[i] = models.Track{ID: id, Title: "Track " + id}
	}
	return tracks
}

func ids(order []models.Track) []string {
	out := make([]string, len(order))
	for i, t := range order {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a []models.Track, want ...string) bool {
	if len(a) != len(want) {
		return false
	}
	for i, t := range a {
		if t.ID != want[i] {
			return false
		}
	}
	return true
}

func TestCircular(t *testing.T) {
	source := makeTracks("A", "B", "C", "D")

	tests := []struct {
		name     string
		selected string
		want     []string
	}{
		{name: "middle selection wraps", selected: "C", want: []string{"C", "D", "A", "B"}},
		{name: "first selection keeps order", selected: "A", want: []string{"A", "B", "C", "D"}},
		{name: "last selection wraps fully", selected: "D", want: []string{"D", "A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Circular(source[IndexOf(source, tt.selected)], source)
			if !equalIDs(got, tt.want...) {
				t.Errorf("Circular(%s) = %v, want %v", tt.selected, ids(got), tt.want)
			}
		})
	}
}

func TestCircularSelectionNotInSource(t *testing.T) {
	source := makeTracks("A", "B")
	outsider := models.Track{ID: "Z"}

	got := Circular(outsider, source)
	if !equalIDs(got, "Z") {
		t.Errorf("Circular with outsider = %v, want [Z]", ids(got))
	}
}

func TestCircularSingleElementSource(t *testing.T) {
	source := makeTracks("A")
	got := Circular(source[0], source)
	if !equalIDs(got, "A") {
		t.Errorf("Circular on single element = %v, want [A]", ids(got))
	}
}

func TestCircularIsRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 100; trial++ {
		n := 2 + rng.Intn(10)
		letters := make([]string, n)
		for i := range letters {
			letters[i] = string(rune('a' + i))
		}
		source := makeTracks(letters...)
		sel := rng.Intn(n)

		got := Circular(source[sel], source)
		if len(got) != n {
			t.Fatalf("rotation changed length: got %d, want %d", len(got), n)
		}
		for i := range got {
			if got[i].ID != source[(sel+i)%n].ID {
				t.Fatalf("not a rotation starting at %d: got %v from %v", sel, ids(got), ids(source))
			}
		}
	}
}

func TestShufflePinsCurrentTrack(t *testing.T) {
	canonical := makeTracks("A", "B", "C", "D")
	current := canonical[1]

	for trial := 0; trial < 50; trial++ {
		got := Shuffle(canonical, &current)
		if len(got) != len(canonical) {
			t.Fatalf("shuffle changed length: %d", len(got))
		}
		if got[0].ID != "B" {
			t.Fatalf("current track not at head: %v", ids(got))
		}
		seen := map[string]int{}
		for _, tr := range got {
			seen[tr.ID]++
		}
		for _, tr := range canonical {
			if seen[tr.ID] != 1 {
				t.Fatalf("shuffle is not a permutation: %v", ids(got))
			}
		}
	}
}

func TestShuffleWithoutCurrentTrack(t *testing.T) {
	canonical := makeTracks("A", "B", "C")
	got := Shuffle(canonical, nil)

	if len(got) != 3 {
		t.Fatalf("shuffle changed length: %d", len(got))
	}
	seen := map[string]int{}
	for _, tr := range got {
		seen[tr.ID]++
	}
	if len(seen) != 3 {
		t.Errorf("shuffle is not a permutation: %v", ids(got))
	}
}

func TestShuffleEmpty(t *testing.T) {
	if got := Shuffle(nil, nil); got != nil {
		t.Errorf("Shuffle(nil) = %v, want nil", got)
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	canonical := makeTracks("A", "B", "C", "D", "E")
	current := canonical[2]
	Shuffle(canonical, &current)
	if !equalIDs(canonical, "A", "B", "C", "D", "E") {
		t.Errorf("input mutated: %v", ids(canonical))
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name         string
		currentIndex int
		from, to     int
		wantOrder    []string
		wantIndex    int
	}{
		{name: "move current", currentIndex: 1, from: 1, to: 3, wantOrder: []string{"A", "C", "D", "B"}, wantIndex: 3},
		{name: "move across current from below", currentIndex: 2, from: 0, to: 3, wantOrder: []string{"B", "C", "D", "A"}, wantIndex: 1},
		{name: "move across current from above", currentIndex: 2, from: 3, to: 1, wantOrder: []string{"A", "D", "B", "C"}, wantIndex: 3},
		{name: "move without touching current", currentIndex: 0, from: 2, to: 3, wantOrder: []string{"A", "B", "D", "C"}, wantIndex: 0},
		{name: "move to current position from above", currentIndex: 1, from: 3, to: 1, wantOrder: []string{"A", "D", "B", "C"}, wantIndex: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := makeTracks("A", "B", "C", "D")
			gotOrder, gotIndex := Reorder(order, tt.currentIndex, tt.from, tt.to)
			if !equalIDs(gotOrder, tt.wantOrder...) {
				t.Errorf("order = %v, want %v", ids(gotOrder), tt.wantOrder)
			}
			if gotIndex != tt.wantIndex {
				t.Errorf("currentIndex = %d, want %d", gotIndex, tt.wantIndex)
			}
			if !equalIDs(order, "A", "B", "C", "D") {
				t.Errorf("input mutated: %v", ids(order))
			}
		})
	}
}

func TestReorderNoOps(t *testing.T) {
	order := makeTracks("A", "B", "C")

	tests := []struct {
		name     string
		from, to int
	}{
		{name: "from equals to", from: 1, to: 1},
		{name: "negative from", from: -1, to: 1},
		{name: "negative to", from: 1, to: -2},
		{name: "from past end", from: 3, to: 0},
		{name: "to past end", from: 0, to: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotOrder, gotIndex := Reorder(order, 2, tt.from, tt.to)
			if !equalIDs(gotOrder, "A", "B", "C") {
				t.Errorf("order = %v, want unchanged", ids(gotOrder))
			}
			if gotIndex != 2 {
				t.Errorf("currentIndex = %d, want 2", gotIndex)
			}
		})
	}
}

// Property test: after any valid reorder, the rebased index still points at
// the track that was current before the move.
func TestReorderKeepsCurrentTrackStable(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 500; trial++ {
		n := 2 + rng.Intn(8)
		letters := make([]string, n)
		for i := range letters {
			letters[i] = string(rune('a' + i))
		}
		order := makeTracks(letters...)
		currentIndex := rng.Intn(n)
		from := rng.Intn(n)
		to := rng.Intn(n)
		currentID := order[currentIndex].ID

		gotOrder, gotIndex := Reorder(order, currentIndex, from, to)

		if gotIndex < 0 || gotIndex >= len(gotOrder) {
			t.Fatalf("index out of range after reorder(from=%d,to=%d,cur=%d): %d", from, to, currentIndex, gotIndex)
		}
		if gotOrder[gotIndex].ID != currentID {
			t.Fatalf("reorder(from=%d,to=%d,cur=%d): index %d points at %s, want %s (order %v)",
				from, to, currentIndex, gotIndex, gotOrder[gotIndex].ID, currentID, ids(gotOrder))
		}
		seen := map[string]int{}
		for _, tr := range gotOrder {
			seen[tr.ID]++
		}
		if len(seen) != n {
			t.Fatalf("reorder lost tracks: %v", ids(gotOrder))
		}
	}
}

func TestAppendUnique(t *testing.T) {
	tests := []struct {
		name string
		base []string
		add  []string
		want []string
	}{
		{name: "all new", base: []string{"A"}, add: []string{"B", "C"}, want: []string{"A", "B", "C"}},
		{name: "skips duplicates", base: []string{"A", "B"}, add: []string{"B", "C", "A", "D"}, want: []string{"A", "B", "C", "D"}},
		{name: "duplicate within additions", base: []string{"A"}, add: []string{"B", "B"}, want: []string{"A", "B"}},
		{name: "empty additions", base: []string{"A", "B"}, add: nil, want: []string{"A", "B"}},
		{name: "empty base", base: nil, add: []string{"A"}, want: []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendUnique(makeTracks(tt.base...), makeTracks(tt.add...))
			if !equalIDs(got, tt.want...) {
				t.Errorf("AppendUnique = %v, want %v", ids(got), tt.want)
			}
		})
	}
}
