package assign

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// ErrSolverTimeout is never returned as a hard failure: Exact reports
// a timeout by returning its best incumbent with Optimal=false, per
// spec.md §7's propagation policy ("return best incumbent annotated
// as non-optimal"). It is exported so callers can log or alert on the
// condition if they choose to detect it via the returned Assignment's
// Optimal field rather than an error.
var ErrSolverTimeout = errors.New("assign: solver hit its time limit before proving optimality")

// stepCheckInterval bounds how often the search checks the wall clock,
// in the style of katalvlaran/lvlath's tsp branch-and-bound engine,
// which checks its deadline every few thousand node expansions rather
// than on every single one.
const stepCheckInterval = 4096

// Exact solves the vehicle-to-trip set-partitioning problem of spec.md
// §4.5 with a deterministic depth-first branch-and-bound search over
// vehicles in ascending id order: at each vehicle, branch on "take one
// of its RTV trips" or "take none", pruning a branch the moment its
// forced cost (already-committed cost plus the penalty for any
// request that provably cannot be served by any undecided vehicle)
// meets or exceeds the best whole solution found so far.
//
// There is no MILP library anywhere in the example pack this module
// was grounded on; this solver plays the role the spec's "ILP
// backend" interface describes (add variable / add constraint / set
// objective / set warm start / solve) without binding to gurobi,
// CPLEX, or an LP-relaxation-based open source solver, none of which
// appear in any reachable dependency. See DESIGN.md for the per-
// dependency justification this choice requires.
//
// The Greedy seed is used as the initial incumbent — the Go
// equivalent of "set epsilon(T,v)=1 for every pair in the greedy
// seed": a hand-rolled branch-and-bound has no variable-level MIP
// warm start to set, but seeding the incumbent achieves the same
// effect, since the search only ever replaces the incumbent with a
// strictly cheaper complete assignment.
func Exact(ctx context.Context, rtv *model.RTVGraph, allRequests []model.RequestID, t model.Tunables) *model.Assignment {
	seed := Greedy(rtv, allRequests)

	vehicleIDs := make([]model.VehicleID, 0, len(rtv.ByVehicle))
	for vid, vt := range rtv.ByVehicle {
		if len(vt.Trips) > 0 {
			vehicleIDs = append(vehicleIDs, vid)
		}
	}
	sort.Slice(vehicleIDs, func(i, j int) bool { return vehicleIDs[i] < vehicleIDs[j] })

	if len(vehicleIDs) == 0 {
		seed.Optimal = true
		return seed
	}

	s := &solver{
		rtv:         rtv,
		vehicleIDs:  vehicleIDs,
		allRequests: allRequests,
		penalty:     t.CostPenalty,
		gap:         t.Gap,
	}
	s.requestVehicles = s.buildRequestVehicleIndex()

	s.bestCost = seedObjective(seed, t.CostPenalty)
	s.bestAssignment = seed

	deadline := time.Now().Add(time.Duration(t.TimeLimitSeconds * float64(time.Second)))
	s.deadline = deadline

	served := make(map[model.RequestID]bool)
	decisions := make([]vehicleDecision, 0, len(vehicleIDs))
	s.search(ctx, 0, 0, served, decisions)

	s.bestAssignment.Optimal = !s.timedOut && !s.withinGapOnly
	return s.bestAssignment
}

func seedObjective(a *model.Assignment, penalty float64) float64 {
	return a.ObjectiveValue + penalty*float64(len(a.UnservedRequests))
}

type vehicleDecision struct {
	vehicle model.VehicleID
	tripKey string // empty means "none"
}

type solver struct {
	rtv         *model.RTVGraph
	vehicleIDs  []model.VehicleID
	allRequests []model.RequestID
	penalty     float64
	gap         float64

	// requestVehicles maps a request to the indices (into vehicleIDs)
	// of every vehicle that has at least one trip covering it — used
	// to detect when a request becomes provably unservable.
	requestVehicles map[model.RequestID][]int

	deadline time.Time
	steps    int
	timedOut bool

	// withinGapOnly records whether any branch was cut solely by the
	// gap tolerance rather than proven dominated, in which case the
	// returned incumbent is gap-optimal but not certified exact.
	withinGapOnly bool

	bestCost       float64
	bestAssignment *model.Assignment
}

func (s *solver) buildRequestVehicleIndex() map[model.RequestID][]int {
	idx := make(map[model.RequestID][]int)
	for vi, vid := range s.vehicleIDs {
		vt := s.rtv.ByVehicle[vid]
		seen := make(map[model.RequestID]bool)
		for _, trip := range vt.Trips {
			for _, r := range trip.Requests {
				if !seen[r] {
					seen[r] = true
					idx[r] = append(idx[r], vi)
				}
			}
		}
	}
	return idx
}

// doomedCount returns how many requests, given decisions made for
// vehicles [0,nextIndex) and the current served set, can no longer be
// covered by any vehicle at index >= nextIndex. Those requests will
// certainly cost the penalty in any completion of this branch, so this
// count yields an exact — not estimated — forced-cost contribution.
func (s *solver) doomedCount(nextIndex int, served map[model.RequestID]bool) int {
	doomed := 0
	for _, r := range s.allRequests {
		if served[r] {
			continue
		}
		stillPossible := false
		for _, vi := range s.requestVehicles[r] {
			if vi >= nextIndex {
				stillPossible = true
				break
			}
		}
		if !stillPossible {
			doomed++
		}
	}
	return doomed
}

// search explores vehicle decisions depth-first. partialCost is the
// sum of trip costs already committed; served tracks requests covered
// by those commitments.
func (s *solver) search(
	ctx context.Context,
	index int,
	partialCost float64,
	served map[model.RequestID]bool,
	decisions []vehicleDecision,
) {
	if s.timedOut {
		return
	}
	s.steps++
	if s.steps%stepCheckInterval == 0 {
		select {
		case <-ctx.Done():
			s.timedOut = true
			return
		default:
		}
		if time.Now().After(s.deadline) {
			s.timedOut = true
			return
		}
	}

	bound := partialCost + s.penalty*float64(s.doomedCount(index, served))
	// A node is pruned once its forced cost is within the configured
	// relative gap of the incumbent, not only when it matches or
	// exceeds it outright — the same tolerance a MIP solver's "gap"
	// option expresses, traded here for search speed rather than a
	// certificate of strict optimality.
	if bound >= s.bestCost*(1-s.gap) {
		if bound < s.bestCost {
			s.withinGapOnly = true
		}
		return
	}

	if index == len(s.vehicleIDs) {
		unservedCount := 0
		for _, r := range s.allRequests {
			if !served[r] {
				unservedCount++
			}
		}
		total := partialCost + s.penalty*float64(unservedCount)
		if total < s.bestCost {
			s.bestCost = total
			s.bestAssignment = s.materialize(decisions, total)
		}
		return
	}

	vid := s.vehicleIDs[index]
	vt := s.rtv.ByVehicle[vid]

	keys := make([]string, 0, len(vt.Trips))
	for key := range vt.Trips {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return vt.Best[keys[i]].TotalCost < vt.Best[keys[j]].TotalCost
	})

	// Branch 1: take no trip for this vehicle.
	s.search(ctx, index+1, partialCost, served, append(decisions, vehicleDecision{vehicle: vid}))
	if s.timedOut {
		return
	}

	// Branch 2+: take one of its trips, cheapest first, skipping any
	// whose requests overlap what's already served.
	for _, key := range keys {
		trip := vt.Trips[key]
		if anyServed(trip.Requests, served) {
			continue
		}
		for _, r := range trip.Requests {
			served[r] = true
		}
		seq := vt.Best[key]
		s.search(ctx, index+1, partialCost+seq.TotalCost, served,
			append(decisions, vehicleDecision{vehicle: vid, tripKey: key}))
		for _, r := range trip.Requests {
			delete(served, r)
		}
		if s.timedOut {
			return
		}
	}
}

func (s *solver) materialize(decisions []vehicleDecision, total float64) *model.Assignment {
	a := &model.Assignment{
		Assignments:    make(map[model.VehicleID]*model.Trip),
		StopSequences:  make(map[model.VehicleID]*model.StopSequence),
		ObjectiveValue: 0,
	}
	served := make(map[model.RequestID]bool)
	for _, d := range decisions {
		if d.tripKey == "" {
			continue
		}
		vt := s.rtv.ByVehicle[d.vehicle]
		trip := vt.Trips[d.tripKey]
		seq := vt.Best[d.tripKey]
		a.Assignments[d.vehicle] = trip
		a.StopSequences[d.vehicle] = seq
		a.ObjectiveValue += seq.TotalCost
		for _, r := range trip.Requests {
			served[r] = true
		}
	}
	a.UnservedRequests = unservedFrom(s.allRequests, served)
	return a
}
