package rtv_test

import (
	"context"
	"testing"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/internal/rtv"
	"github.com/shivamshaw23/ridepool/internal/rv"
)

const (
	nodeA model.Node = iota + 1
	nodeB
	nodeC
)

func triangle(t *testing.T) *roadgraph.Graph {
	t.Helper()
	g := roadgraph.New()
	for _, e := range []struct {
		a, b model.Node
		w    float64
	}{{nodeA, nodeB, 60}, {nodeB, nodeA, 60}, {nodeB, nodeC, 60}, {nodeC, nodeB, 60}, {nodeA, nodeC, 90}, {nodeC, nodeA, 90}} {
		if err := g.AddEdge(e.a, e.b, e.w); err != nil {
			t.Fatalf("AddEdge: %v", err)
		}
	}
	return g
}

// S2 setup: a size-2 trip for v1 covering both r1 and r2 should appear,
// with its two size-1 subsets present underneath it (I4).
func TestBuildAllProducesSizeTwoTripWithDownwardClosure(t *testing.T) {
	g := triangle(t)
	vehicles := []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 2}}
	requests := []model.Request{
		{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60},
		{ID: "r2", Origin: nodeA, Destination: nodeC, TPickupLatest: 300, TDropoffEarliest: 90},
	}
	reqIndex := map[model.RequestID]model.Request{"r1": requests[0], "r2": requests[1]}
	tunables := model.Tunables{MaxDelaySeconds: 300, PruneTopK: 30}

	rvGraph, err := rv.Build(context.Background(), g, vehicles, nil, requests, 0, tunables)
	if err != nil {
		t.Fatalf("rv.Build: %v", err)
	}
	rtvGraph, err := rtv.BuildAll(context.Background(), g, vehicles, nil, reqIndex, rvGraph, tunables)
	if err != nil {
		t.Fatalf("rtv.BuildAll: %v", err)
	}

	vt := rtvGraph.ByVehicle["v1"]
	if vt == nil {
		t.Fatal("expected trips for v1")
	}
	if _, ok := vt.Trips["r1"]; !ok {
		t.Error("expected size-1 trip {r1}")
	}
	if _, ok := vt.Trips["r2"]; !ok {
		t.Error("expected size-1 trip {r2}")
	}
	if _, ok := vt.Trips["r1+r2"]; !ok {
		t.Fatalf("expected size-2 trip {r1,r2}, got trips: %+v", vt.Trips)
	}
}

func TestBuildAllRespectsCapacityMinusOnboard(t *testing.T) {
	g := triangle(t)
	vehicles := []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 1, Onboard: []model.RequestID{"r0"}}}
	onboardIndex := map[model.RequestID]model.Request{
		"r0": {ID: "r0", Origin: nodeA, Destination: nodeB, TDropoffEarliest: 60},
	}
	requests := []model.Request{{ID: "r1", Origin: nodeB, Destination: nodeC, TPickupLatest: 500, TDropoffEarliest: 120}}
	reqIndex := map[model.RequestID]model.Request{"r1": requests[0]}
	tunables := model.Tunables{MaxDelaySeconds: 60, PruneTopK: 30}

	rvGraph, err := rv.Build(context.Background(), g, vehicles, onboardIndex, requests, 0, tunables)
	if err != nil {
		t.Fatalf("rv.Build: %v", err)
	}
	rtvGraph, err := rtv.BuildAll(context.Background(), g, vehicles, onboardIndex, reqIndex, rvGraph, tunables)
	if err != nil {
		t.Fatalf("rtv.BuildAll: %v", err)
	}

	// capacity(1) - len(onboard)(1) = 0: spec.md §4.3 stops enumeration
	// once k would exceed capacity-onboard, so a vehicle already full
	// gets no new trips at all, and is dropped from ByVehicle entirely.
	if vt, ok := rtvGraph.ByVehicle["v1"]; ok {
		t.Fatalf("expected a cap-1, 1-onboard vehicle to have no trips, got %+v", vt)
	}
}
