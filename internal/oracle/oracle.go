// Package oracle implements the trip feasibility oracle (spec C2): for
// one vehicle and a candidate set of new requests, find the lowest-cost
// stop sequence that respects pickup-before-dropoff precedence,
// capacity, and the pickup/drop-off deadlines, or report that no such
// sequence exists.
//
// The search is a branch-and-bound depth-first enumeration in the
// style of katalvlaran/lvlath's tsp branch-and-bound engine: a
// candidate stop is only ever appended to a partial sequence after its
// precedence and capacity legality is checked, and the travel-time
// simulation runs incrementally so a deadline violation kills a branch
// immediately rather than after a full permutation is built. This
// avoids road_network.py's generate-every-permutation-then-filter
// approach, which the spec's redesign notes call out as unnecessary
// work at scale.
package oracle

import (
	"errors"
	"sort"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
)

// ErrInfeasible is never returned by Travel: infeasibility is a normal
// outcome reported as (nil, nil), matching the RV/RTV stages' policy
// of never raising on routine infeasibility. It is exported so callers
// that want to treat "could not find any trip" distinctly from bugs
// in their own request data can compare against it if they choose to
// synthesize it themselves; Travel itself only ever returns errors
// that come from the underlying RoadGraph.
var ErrInfeasible = errors.New("oracle: no feasible stop sequence")

// maxSearchSteps bounds the branch-and-bound exploration as a safety
// valve against pathological inputs; legitimate batches never get
// close to it since trip size is bounded by vehicle capacity.
const maxSearchSteps = 2_000_000

type stop struct {
	req  model.RequestID
	kind model.StopKind
	node model.Node
}

// requestIndex is a lookup from request id to its full record, used to
// read deadlines while simulating.
type requestIndex map[model.RequestID]model.Request

// Travel computes the shortest feasible stop sequence for vehicle to
// serve its onboard passengers (onboard) plus newRequests, or reports
// infeasibility as (nil, nil). An error is only returned if the
// underlying RoadGraph faults.
//
// Edge cases (spec.md §4.1):
//   - No onboard passengers and no new requests: nothing to do, (nil, nil).
//   - New requests empty but onboard non-empty: the existing plan is
//     returned unchanged at cost 0 — drop-offs for onboard passengers
//     in ascending request-id order.
func Travel(
	rg roadgraph.RoadGraph,
	vehicle model.Vehicle,
	onboard []model.Request,
	newRequests []model.Request,
	t model.Tunables,
) (*model.StopSequence, error) {
	if len(newRequests) == 0 {
		if len(onboard) == 0 {
			return nil, nil
		}
		return existingPlan(onboard), nil
	}

	idx := make(requestIndex, len(onboard)+len(newRequests))
	for _, r := range onboard {
		idx[r.ID] = r
	}
	for _, r := range newRequests {
		idx[r.ID] = r
	}

	stops := buildStops(onboard, newRequests)
	minDropsFirst := len(newRequests) - vehicle.Capacity + len(onboard)
	if minDropsFirst < 0 {
		minDropsFirst = 0
	}

	s := &searcher{
		rg:            rg,
		idx:           idx,
		stops:         stops,
		capacity:      vehicle.Capacity,
		numOnboard:    len(onboard),
		minDropsFirst: minDropsFirst,
		maxDelay:      t.MaxDelaySeconds,
		bestCost:      roadgraph.Unreachable,
	}

	visited := make([]bool, len(stops))
	pickedUp := make(map[model.RequestID]bool, len(onboard)+len(newRequests))
	for _, r := range onboard {
		pickedUp[r.ID] = true
	}

	var fault error
	s.search(visited, pickedUp, 0, 0, vehicle.Position, vehicle.Clock, 0, nil, &fault)
	if fault != nil {
		return nil, fault
	}
	if s.best == nil {
		return nil, nil
	}
	return &model.StopSequence{Stops: s.best, TotalCost: s.bestCost}, nil
}

// existingPlan returns drop-offs for onboard passengers, ascending by
// request id, at zero incremental cost (spec's empty-N resolution).
func existingPlan(onboard []model.Request) *model.StopSequence {
	sorted := make([]model.Request, len(onboard))
	copy(sorted, onboard)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	stops := make([]model.Stop, len(sorted))
	for i, r := range sorted {
		stops[i] = model.Stop{Request: r.ID, Kind: model.Dropoff, Node: r.Destination}
	}
	return &model.StopSequence{Stops: stops, TotalCost: 0}
}

func buildStops(onboard, newRequests []model.Request) []stop {
	stops := make([]stop, 0, len(onboard)+2*len(newRequests))
	for _, r := range onboard {
		stops = append(stops, stop{req: r.ID, kind: model.Dropoff, node: r.Destination})
	}
	for _, r := range newRequests {
		stops = append(stops, stop{req: r.ID, kind: model.Pickup, node: r.Origin})
	}
	for _, r := range newRequests {
		stops = append(stops, stop{req: r.ID, kind: model.Dropoff, node: r.Destination})
	}
	return stops
}

type searcher struct {
	rg  roadgraph.RoadGraph
	idx requestIndex

	stops         []stop
	capacity      int
	numOnboard    int
	minDropsFirst int
	maxDelay      float64

	steps    int
	best     []model.Stop
	bestCost float64
}

// search explores partial stop orderings depth-first. Candidates at
// each level are generated in ascending (request id, kind) order so
// that, among equal-cost complete sequences, the first one found is
// the lexicographically smallest — matching the tie-break rule.
func (s *searcher) search(
	visited []bool,
	pickedUp map[model.RequestID]bool,
	pickupsMade, dropoffsMade int,
	position model.Node,
	currentTime, totalCost float64,
	order []model.Stop,
	fault *error,
) {
	if *fault != nil {
		return
	}
	s.steps++
	if s.steps > maxSearchSteps {
		return
	}
	if totalCost >= s.bestCost {
		return // branch-and-bound: this partial path cannot beat the incumbent
	}

	if len(order) == len(s.stops) {
		s.best = append([]model.Stop(nil), order...)
		s.bestCost = totalCost
		return
	}

	candidates := s.legalCandidates(visited, pickedUp, pickupsMade, dropoffsMade)
	for _, ci := range candidates {
		st := s.stops[ci]

		travelTime, err := s.rg.ShortestTravelTime(position, st.node)
		if err != nil {
			*fault = err
			return
		}
		if travelTime >= roadgraph.Unreachable {
			continue
		}

		newTime := currentTime + travelTime
		req := s.idx[st.req]
		if st.kind == model.Pickup {
			if newTime > req.TPickupLatest {
				continue
			}
		} else {
			if newTime > req.TDropoffEarliest+s.maxDelay {
				continue
			}
		}

		visited[ci] = true
		wasPicked := pickedUp[st.req]
		if st.kind == model.Pickup {
			pickedUp[st.req] = true
		}

		nextPickups, nextDropoffs := pickupsMade, dropoffsMade
		if st.kind == model.Pickup {
			nextPickups++
		} else {
			nextDropoffs++
		}

		s.search(visited, pickedUp, nextPickups, nextDropoffs, st.node, newTime, totalCost+travelTime,
			append(order, model.Stop{Request: st.req, Kind: st.kind, Node: st.node}), fault)

		visited[ci] = false
		if st.kind == model.Pickup && !wasPicked {
			delete(pickedUp, st.req)
		}
	}
}

// legalCandidates returns the indices of not-yet-visited stops whose
// precedence and capacity constraints are satisfiable right now,
// sorted deterministically. Time-window feasibility is checked by the
// caller once it knows the travel time to reach the candidate.
func (s *searcher) legalCandidates(
	visited []bool,
	pickedUp map[model.RequestID]bool,
	pickupsMade, dropoffsMade int,
) []int {
	var out []int
	for i, st := range s.stops {
		if visited[i] {
			continue
		}
		if st.kind == model.Dropoff {
			if !pickedUp[st.req] {
				continue
			}
			out = append(out, i)
			continue
		}

		// Pickup of a new request: onboard-first policy (constraint 3),
		// then capacity at the resulting prefix (constraint 2).
		if dropoffsMade < s.minDropsFirst {
			continue
		}
		if s.numOnboard+(pickupsMade+1)-dropoffsMade > s.capacity {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.stops[out[i]], s.stops[out[j]]
		if a.req != b.req {
			return a.req < b.req
		}
		return a.kind < b.kind
	})
	return out
}
