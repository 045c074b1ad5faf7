package assign_test

import (
	"context"
	"testing"

	"github.com/shivamshaw23/ridepool/internal/assign"
	"github.com/shivamshaw23/ridepool/internal/model"
)

// buildRTV assembles a minimal RTV graph by hand so Greedy/Exact can be
// exercised without pulling in roadgraph/oracle/rv/rtv — those are
// covered by their own package tests.
func buildRTV(vehicleTrips map[model.VehicleID]map[string]struct {
	requests []model.RequestID
	cost     float64
}) *model.RTVGraph {
	g := &model.RTVGraph{ByVehicle: make(map[model.VehicleID]*model.VehicleTrips)}
	for vid, trips := range vehicleTrips {
		vt := &model.VehicleTrips{
			Vehicle: vid,
			Trips:   make(map[string]*model.Trip),
			Best:    make(map[string]*model.StopSequence),
		}
		for key, t := range trips {
			vt.Trips[key] = &model.Trip{ID: key, Requests: t.requests}
			vt.Best[key] = &model.StopSequence{TotalCost: t.cost}
		}
		g.ByVehicle[vid] = vt
	}
	return g
}

func TestGreedyPicksCheapestRelativeCostFirst(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {"r1": {[]model.RequestID{"r1"}, 60}},
		"v2": {"r1": {[]model.RequestID{"r1"}, 40}},
	})
	a := assign.Greedy(rtv, []model.RequestID{"r1"})

	if a.Assignments["v2"] == nil || a.Assignments["v1"] != nil {
		t.Fatalf("expected v2 (cheaper) to take r1, got %+v", a.Assignments)
	}
	if len(a.UnservedRequests) != 0 {
		t.Fatalf("expected r1 served, got unserved %+v", a.UnservedRequests)
	}
}

// S3-shaped scenario: one vehicle can only serve one of two competing
// requests; greedy leaves the other unserved.
func TestGreedyLeavesUnreachableRequestUnserved(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {"r1": {[]model.RequestID{"r1"}, 60}},
	})
	a := assign.Greedy(rtv, []model.RequestID{"r1", "r2"})

	if a.Assignments["v1"] == nil || a.Assignments["v1"].ID != "r1" {
		t.Fatalf("expected v1 assigned to r1, got %+v", a.Assignments)
	}
	if len(a.UnservedRequests) != 1 || a.UnservedRequests[0] != "r2" {
		t.Fatalf("expected r2 unserved (absent from every vehicle's trips), got %+v", a.UnservedRequests)
	}
}

func TestGreedyTieBreaksDeterministically(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v2": {"r1": {[]model.RequestID{"r1"}, 50}},
		"v1": {"r1": {[]model.RequestID{"r1"}, 50}},
	})
	a := assign.Greedy(rtv, []model.RequestID{"r1"})
	if a.Assignments["v1"] == nil {
		t.Fatalf("expected the lower vehicle id to win an exact relative-cost tie, got %+v", a.Assignments)
	}
}

// Exact must never return a solution worse than the greedy seed it is
// warm-started from (I8).
func TestExactNeverWorseThanGreedySeed(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {
			"r1":    {[]model.RequestID{"r1"}, 60},
			"r2":    {[]model.RequestID{"r2"}, 60},
			"r1+r2": {[]model.RequestID{"r1", "r2"}, 90},
		},
		"v2": {
			"r1": {[]model.RequestID{"r1"}, 40},
		},
	})
	allRequests := []model.RequestID{"r1", "r2"}
	tunables := model.Tunables{CostPenalty: 1000, TimeLimitSeconds: 5, Gap: 0}

	greedy := assign.Greedy(rtv, allRequests)
	exact := assign.Exact(context.Background(), rtv, allRequests, tunables)

	greedyObjective := greedy.ObjectiveValue + tunables.CostPenalty*float64(len(greedy.UnservedRequests))
	exactObjective := exact.ObjectiveValue + tunables.CostPenalty*float64(len(exact.UnservedRequests))
	if exactObjective > greedyObjective {
		t.Fatalf("exact objective %v worse than greedy seed %v", exactObjective, greedyObjective)
	}
	if !exact.Optimal {
		t.Fatalf("expected a small instance to solve to proven optimality")
	}
}

// Greedy seeds with v2 taking r1 alone (40) plus v1 taking r2 alone
// (60) = 100; v1 taking the pooled trip {r1,r2} (90) and leaving v2
// idle is cheaper, so Exact must find that true minimum rather than
// keep whatever Greedy happened to seed with.
func TestExactFindsCheaperThanGreedyWhenPoolingWins(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {
			"r1":    {[]model.RequestID{"r1"}, 60},
			"r2":    {[]model.RequestID{"r2"}, 60},
			"r1+r2": {[]model.RequestID{"r1", "r2"}, 90},
		},
		"v2": {
			"r1": {[]model.RequestID{"r1"}, 40},
		},
	})
	allRequests := []model.RequestID{"r1", "r2"}
	tunables := model.Tunables{CostPenalty: 1000, TimeLimitSeconds: 5, Gap: 0}

	exact := assign.Exact(context.Background(), rtv, allRequests, tunables)
	if exact.ObjectiveValue != 90 {
		t.Fatalf("objective = %v, want 90 (pooled trip on v1, v2 idle)", exact.ObjectiveValue)
	}
	if len(exact.UnservedRequests) != 0 {
		t.Fatalf("expected both requests served, got unserved %+v", exact.UnservedRequests)
	}
}

// S5: two vehicles can both reach the same request; Exact must pick
// the cheaper of the two rather than whichever Greedy happened to
// seed with.
func TestExactAssignsCompetingVehicleCheaper(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {"r1": {[]model.RequestID{"r1"}, 80}},
		"v2": {"r1": {[]model.RequestID{"r1"}, 40}},
	})
	allRequests := []model.RequestID{"r1"}
	tunables := model.Tunables{CostPenalty: 1000, TimeLimitSeconds: 5, Gap: 0}

	exact := assign.Exact(context.Background(), rtv, allRequests, tunables)

	if exact.Assignments["v2"] == nil || exact.Assignments["v1"] != nil {
		t.Fatalf("expected v2 (cost 40) to win r1 over v1 (cost 80), got %+v", exact.Assignments)
	}
	if exact.ObjectiveValue != 40 {
		t.Fatalf("objective = %v, want 40", exact.ObjectiveValue)
	}
	if len(exact.UnservedRequests) != 0 {
		t.Fatalf("expected r1 served, got unserved %+v", exact.UnservedRequests)
	}
}

// S6: a request whose only feasible trip costs more than the
// unserved-request penalty must be left unserved rather than forced
// onto a vehicle at a loss.
func TestExactLeavesRequestUnservedWhenCostExceedsPenalty(t *testing.T) {
	rtv := buildRTV(map[model.VehicleID]map[string]struct {
		requests []model.RequestID
		cost     float64
	}{
		"v1": {"r1": {[]model.RequestID{"r1"}, 5000}},
	})
	allRequests := []model.RequestID{"r1"}
	tunables := model.Tunables{CostPenalty: 1000, TimeLimitSeconds: 5, Gap: 0}

	exact := assign.Exact(context.Background(), rtv, allRequests, tunables)

	if exact.Assignments["v1"] != nil {
		t.Fatalf("expected v1 to decline the 5000-cost trip, got %+v", exact.Assignments)
	}
	if len(exact.UnservedRequests) != 1 || exact.UnservedRequests[0] != "r1" {
		t.Fatalf("expected r1 unserved (5000 > penalty 1000), got %+v", exact.UnservedRequests)
	}
	if exact.ObjectiveValue != 0 {
		t.Fatalf("objective = %v, want 0 (no trip taken, penalty applied separately)", exact.ObjectiveValue)
	}
	if !exact.Optimal {
		t.Fatalf("expected a small instance to solve to proven optimality")
	}
}

func TestExactNoVehiclesReturnsAllUnserved(t *testing.T) {
	rtv := &model.RTVGraph{ByVehicle: map[model.VehicleID]*model.VehicleTrips{}}
	exact := assign.Exact(context.Background(), rtv, []model.RequestID{"r1"}, model.DefaultTunables())
	if !exact.Optimal {
		t.Fatal("expected trivially optimal empty assignment")
	}
	if len(exact.UnservedRequests) != 1 || exact.UnservedRequests[0] != "r1" {
		t.Fatalf("expected r1 unserved, got %+v", exact.UnservedRequests)
	}
}
