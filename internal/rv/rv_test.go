package rv_test

import (
	"context"
	"testing"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
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

func TestBuildVREdgeForReachableSingleRequest(t *testing.T) {
	g := triangle(t)
	vehicles := []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 2}}
	requests := []model.Request{{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60}}

	tunables := model.Tunables{MaxDelaySeconds: 300, PruneTopK: 30}
	graph, err := rv.Build(context.Background(), g, vehicles, nil, requests, 0, tunables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	edges := graph.VREdges["v1"]
	if len(edges) != 1 || edges[0].RequestA != "r1" {
		t.Fatalf("expected one VR edge to r1, got %+v", edges)
	}
}

func TestBuildRREdgeForCompatiblePair(t *testing.T) {
	g := triangle(t)
	requests := []model.Request{
		{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60},
		{ID: "r2", Origin: nodeA, Destination: nodeC, TPickupLatest: 300, TDropoffEarliest: 90},
	}
	tunables := model.Tunables{MaxDelaySeconds: 300, PruneTopK: 30}
	graph, err := rv.Build(context.Background(), g, nil, nil, requests, 0, tunables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.RREdges["r1"]) != 1 || graph.RREdges["r1"][0].RequestB != "r2" {
		t.Fatalf("expected RR edge r1-r2, got %+v", graph.RREdges["r1"])
	}
}

func TestBuildRREdgeAbsentOnDeadlineViolation(t *testing.T) {
	g := triangle(t)
	requests := []model.Request{
		{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60},
		{ID: "r2", Origin: nodeA, Destination: nodeC, TPickupLatest: 300, TDropoffEarliest: 90},
	}
	tunables := model.Tunables{MaxDelaySeconds: 10, PruneTopK: 30}
	graph, err := rv.Build(context.Background(), g, nil, nil, requests, 0, tunables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.RREdges["r1"]) != 0 {
		t.Fatalf("expected no RR edge under a tight max_delay, got %+v", graph.RREdges["r1"])
	}
}

func TestBuildPruneTopKZeroYieldsNoEdges(t *testing.T) {
	g := triangle(t)
	vehicles := []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 2}}
	requests := []model.Request{{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60}}

	tunables := model.Tunables{MaxDelaySeconds: 300, PruneTopK: 0}
	graph, err := rv.Build(context.Background(), g, vehicles, nil, requests, 0, tunables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.VREdges["v1"]) != 0 {
		t.Fatalf("expected no VR edges with prune_top_k=0, got %+v", graph.VREdges["v1"])
	}
}

func TestBuildSkipsVehicleAtCapacity(t *testing.T) {
	g := triangle(t)
	vehicles := []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 1, Onboard: []model.RequestID{"r0"}}}
	onboardIndex := map[model.RequestID]model.Request{
		"r0": {ID: "r0", Origin: nodeA, Destination: nodeB, TDropoffEarliest: 60},
	}
	requests := []model.Request{{ID: "r1", Origin: nodeA, Destination: nodeC, TPickupLatest: 300, TDropoffEarliest: 90}}

	tunables := model.Tunables{MaxDelaySeconds: 300, PruneTopK: 30}
	graph, err := rv.Build(context.Background(), g, vehicles, onboardIndex, requests, 0, tunables)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(graph.VREdges["v1"]) != 0 {
		t.Fatalf("expected a full vehicle to have no VR edges, got %+v", graph.VREdges["v1"])
	}
}
