package service_test

import (
	"context"
	"testing"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/internal/service"
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

func TestSolveRejectsEmptyBatch(t *testing.T) {
	svc := service.NewSolverService(triangle(t), nil, model.DefaultTunables())
	_, err := svc.Solve(context.Background(), service.Batch{})
	if err != service.ErrEmptyBatch {
		t.Fatalf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestSolveRejectsInvalidBatch(t *testing.T) {
	svc := service.NewSolverService(triangle(t), nil, model.DefaultTunables())
	_, err := svc.Solve(context.Background(), service.Batch{
		Vehicles: []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 2}},
		Requests: []model.Request{
			{ID: "r1", Origin: nodeA, Destination: nodeA},
		},
	})
	var invalid *model.InvalidInputError
	if err == nil {
		t.Fatal("expected an InvalidInputError for a degenerate request")
	}
	if !errorsAs(err, &invalid) {
		t.Fatalf("err = %v, want *model.InvalidInputError", err)
	}
}

func errorsAs(err error, target **model.InvalidInputError) bool {
	if ii, ok := err.(*model.InvalidInputError); ok {
		*target = ii
		return true
	}
	return false
}

func TestSolveAssignsPoolableRequests(t *testing.T) {
	svc := service.NewSolverService(triangle(t), nil, model.Tunables{
		Capacity: 2, OmegaSeconds: 600, MaxDelaySeconds: 600, PruneTopK: 30,
		CostPenalty: 1000, TimeLimitSeconds: 5, Gap: 0,
	})

	batch := service.Batch{
		Vehicles: []model.Vehicle{{ID: "v1", Position: nodeA, Capacity: 2}},
		Requests: []model.Request{
			{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 300, TDropoffEarliest: 60},
			{ID: "r2", Origin: nodeA, Destination: nodeC, TPickupLatest: 300, TDropoffEarliest: 90},
		},
	}

	result, err := svc.Solve(context.Background(), batch)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if len(result.UnservedRequests) != 0 {
		t.Fatalf("expected both requests served, got unserved %+v", result.UnservedRequests)
	}
	trip := result.Assignments["v1"]
	if trip == nil || len(trip.Requests) != 2 {
		t.Fatalf("expected v1 assigned the pooled trip, got %+v", result.Assignments)
	}
}

func TestCheckFeasibility(t *testing.T) {
	svc := service.NewSolverService(triangle(t), nil, model.Tunables{MaxDelaySeconds: 60})
	v := model.Vehicle{ID: "v1", Position: nodeA, Capacity: 2}
	r1 := model.Request{ID: "r1", Origin: nodeA, Destination: nodeB, TPickupLatest: 120, TDropoffEarliest: 60}

	seq, err := svc.CheckFeasibility(v, nil, []model.Request{r1})
	if err != nil {
		t.Fatalf("CheckFeasibility: %v", err)
	}
	if seq == nil || seq.TotalCost != 60 {
		t.Fatalf("expected a feasible 60-cost sequence, got %+v", seq)
	}
}
