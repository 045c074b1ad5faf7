package roadgraph

import (
	"testing"

	"github.com/shivamshaw23/ridepool/internal/model"
)

func buildLine(t *testing.T) *Graph {
	t.Helper()
	g := New()
	// 1 -> 2 -> 3 -> 4, plus a shortcut 1 -> 3
	edges := []struct {
		from, to model.Node
		w        float64
	}{
		{1, 2, 5},
		{2, 3, 5},
		{3, 4, 5},
		{1, 3, 8},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.from, e.to, e.w); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	g.AddVertex(5) // isolated
	return g
}

func TestShortestTravelTimePicksCheaperPath(t *testing.T) {
	g := buildLine(t)
	got, err := g.ShortestTravelTime(1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8 {
		t.Fatalf("ShortestTravelTime(1,3) = %v, want 8 (direct edge beats the 5+5 detour through 2)", got)
	}
}

func TestShortestTravelTimeSameNode(t *testing.T) {
	g := buildLine(t)
	got, err := g.ShortestTravelTime(2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("ShortestTravelTime(2,2) = %v, want 0", got)
	}
}

func TestHasPathUnreachable(t *testing.T) {
	g := buildLine(t)
	ok, err := g.HasPath(4, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no path from 4 to 1 in a one-directional line graph")
	}
}

func TestHasPathIsolatedVertex(t *testing.T) {
	g := buildLine(t)
	ok, err := g.HasPath(1, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected no path to an isolated vertex")
	}
}

func TestShortestTravelTimeUnknownVertex(t *testing.T) {
	g := buildLine(t)
	if _, err := g.ShortestTravelTime(1, 99); err == nil {
		t.Fatal("expected error for unknown vertex")
	}
}

func TestAddEdgeRejectsNegativeWeight(t *testing.T) {
	g := New()
	if err := g.AddEdge(1, 2, -1); err == nil {
		t.Fatal("expected error for negative weight")
	}
}
