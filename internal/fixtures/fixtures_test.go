package fixtures_test

import (
	"testing"

	"github.com/shivamshaw23/ridepool/internal/fixtures"
)

func TestBuildGridConnected(t *testing.T) {
	grid := fixtures.BuildGrid(fixtures.GridConfig{Rows: 4, Cols: 4, SpacingKm: 0.3, OriginLat: 28.6, OriginLon: 77.2})
	if len(grid.Nodes) != 16 {
		t.Fatalf("expected 16 nodes, got %d", len(grid.Nodes))
	}
	// every vertex should reach every other vertex on a connected grid.
	for _, a := range grid.Nodes {
		for _, b := range grid.Nodes {
			ok, err := grid.Graph.HasPath(a, b)
			if err != nil {
				t.Fatalf("HasPath: %v", err)
			}
			if !ok {
				t.Fatalf("expected %d to reach %d on a fully connected grid", a, b)
			}
		}
	}
}

func TestGenerateVehiclesAndRequests(t *testing.T) {
	grid := fixtures.BuildGrid(fixtures.DefaultGridConfig())
	gen := fixtures.NewGenerator(grid.RoadGraph(), grid.Nodes, 42, 600, 600)

	vehicles, onboardIndex, err := gen.GenerateVehicles(5, 2)
	if err != nil {
		t.Fatalf("GenerateVehicles: %v", err)
	}
	if len(vehicles) != 5 {
		t.Fatalf("expected 5 vehicles, got %d", len(vehicles))
	}
	for _, v := range vehicles {
		if len(v.Onboard) > v.Capacity {
			t.Fatalf("vehicle %s onboard %d exceeds capacity %d", v.ID, len(v.Onboard), v.Capacity)
		}
		for _, rid := range v.Onboard {
			if _, ok := onboardIndex[rid]; !ok {
				t.Fatalf("onboard request %s missing from onboardIndex", rid)
			}
		}
	}

	requests, err := gen.GenerateRequests(10)
	if err != nil {
		t.Fatalf("GenerateRequests: %v", err)
	}
	if len(requests) != 10 {
		t.Fatalf("expected 10 requests, got %d", len(requests))
	}
	for _, r := range requests {
		if r.Origin == r.Destination {
			t.Fatalf("request %s has identical origin/destination", r.ID)
		}
		if r.TDropoffEarliest <= r.TRequest {
			t.Fatalf("request %s has non-positive implied travel time", r.ID)
		}
	}

	reachable, unreachable, err := fixtures.ValidateReachability(grid.RoadGraph(), vehicles, requests)
	if err != nil {
		t.Fatalf("ValidateReachability: %v", err)
	}
	if len(unreachable) != 0 {
		t.Fatalf("expected every request reachable on a fully connected grid, got unreachable: %+v", unreachable)
	}
	if len(reachable) != len(requests) {
		t.Fatalf("expected all %d requests reachable, got %d", len(requests), len(reachable))
	}
}

func TestGeneratorIsDeterministicForAFixedSeed(t *testing.T) {
	grid := fixtures.BuildGrid(fixtures.DefaultGridConfig())

	gen1 := fixtures.NewGenerator(grid.RoadGraph(), grid.Nodes, 7, 600, 600)
	r1, err := gen1.GenerateRequests(5)
	if err != nil {
		t.Fatalf("GenerateRequests: %v", err)
	}

	gen2 := fixtures.NewGenerator(grid.RoadGraph(), grid.Nodes, 7, 600, 600)
	r2, err := gen2.GenerateRequests(5)
	if err != nil {
		t.Fatalf("GenerateRequests: %v", err)
	}

	for i := range r1 {
		if r1[i] != r2[i] {
			t.Fatalf("same seed produced different requests at index %d: %+v vs %+v", i, r1[i], r2[i])
		}
	}
}
