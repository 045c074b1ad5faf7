// Package assign turns an RTV graph into a vehicle-to-trip Assignment:
// greedy.go implements the relative-cost heuristic seeder (spec C5),
// bnb.go implements the exact set-partitioning solver (spec C6) that
// uses the greedy result as its starting incumbent.
package assign

import (
	"sort"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// candidate is one (vehicle, trip) pairing considered by the greedy
// pass, kept alongside its relative cost for comparison.
type candidate struct {
	vehicle  model.VehicleID
	tripKey  string
	trip     *model.Trip
	seq      *model.StopSequence
	relative float64
}

// Greedy implements the relative-cost seeder from spec.md §4.4:
// repeatedly pick the (vehicle, trip) pair minimizing cost(T,v)/|T|
// among pairs whose vehicle is still unassigned and whose requests are
// entirely unserved, until no eligible pair remains.
//
// Grounded on problem_formulation.py's greedy_assignment, with one
// necessary change: Python relies on set iteration order, which the
// CPython implementation does not even guarantee reproducibly across
// runs; this Go port collects all eligible candidates per round and
// breaks ties by (vehicle id, trip id) ascending before picking the
// minimum, so that invariant I9 (determinism) holds exactly, not just
// "usually".
func Greedy(rtv *model.RTVGraph, allRequests []model.RequestID) *model.Assignment {
	unassignedVehicles := make(map[model.VehicleID]bool)
	for vid, vt := range rtv.ByVehicle {
		if len(vt.Trips) > 0 {
			unassignedVehicles[vid] = true
		}
	}
	servedRequests := make(map[model.RequestID]bool)

	result := &model.Assignment{
		Assignments:   make(map[model.VehicleID]*model.Trip),
		StopSequences: make(map[model.VehicleID]*model.StopSequence),
	}

	for len(unassignedVehicles) > 0 {
		best, ok := pickBest(rtv, unassignedVehicles, servedRequests)
		if !ok {
			break
		}
		result.Assignments[best.vehicle] = best.trip
		result.StopSequences[best.vehicle] = best.seq
		result.ObjectiveValue += best.seq.TotalCost
		delete(unassignedVehicles, best.vehicle)
		for _, r := range best.trip.Requests {
			servedRequests[r] = true
		}
	}

	result.UnservedRequests = unservedFrom(allRequests, servedRequests)
	return result
}

// pickBest collects every eligible candidate for this round and
// returns the one with minimum relative cost, ties broken by
// (vehicle id, trip id) ascending.
func pickBest(rtv *model.RTVGraph, unassignedVehicles map[model.VehicleID]bool, served map[model.RequestID]bool) (candidate, bool) {
	var candidates []candidate
	for vid := range unassignedVehicles {
		vt := rtv.ByVehicle[vid]
		for key, trip := range vt.Trips {
			if anyServed(trip.Requests, served) {
				continue
			}
			seq := vt.Best[key]
			candidates = append(candidates, candidate{
				vehicle:  vid,
				tripKey:  key,
				trip:     trip,
				seq:      seq,
				relative: seq.TotalCost / float64(len(trip.Requests)),
			})
		}
	}
	if len(candidates) == 0 {
		return candidate{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.relative != b.relative {
			return a.relative < b.relative
		}
		if a.vehicle != b.vehicle {
			return a.vehicle < b.vehicle
		}
		return a.tripKey < b.tripKey
	})
	return candidates[0], true
}

func anyServed(requests []model.RequestID, served map[model.RequestID]bool) bool {
	for _, r := range requests {
		if served[r] {
			return true
		}
	}
	return false
}

// unservedFrom reports every request from the full batch that the
// assignment did not cover, including requests with no RTV edge at
// all (e.g. pruned or unreachable).
func unservedFrom(allRequests []model.RequestID, served map[model.RequestID]bool) []model.RequestID {
	var out []model.RequestID
	for _, r := range allRequests {
		if !served[r] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
