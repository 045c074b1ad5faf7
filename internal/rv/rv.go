// Package rv builds the RV (Request-Vehicle) compatibility graph (spec
// C3): Vehicle-Request edges from calling the feasibility oracle on
// single requests, and Request-Request edges from a cheaper
// travel-time-only necessary-condition check, both optionally pruned
// to the top-K cheapest edges per node.
//
// Grounded on original_source/optimizer/graphs/rv_graph.py's
// generate_rv_graph: the same two edge-construction passes (VR via the
// oracle, RR via three composite stop orderings), re-expressed with
// Go's bounded-worker-pool concurrency instead of a single Python
// loop, since spec.md §5 explicitly allows partitioning VR edges by
// vehicle and RR edges by request pair as independent units of work.
//
// Pruning policy: an edge survives if EITHER endpoint's top-K list
// keeps it ("two-sided keep" — documented choice per spec.md §4.2,
// which leaves the tie between symmetric-keep and symmetric-remove to
// the implementer). This favors recall over a tighter RTV search
// space, matching the spec's framing of RR edges as a loose filter
// rather than a certificate.
package rv

import (
	"context"
	"sort"
	"sync"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/oracle"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
)

// maxWorkers bounds fan-out concurrency, mirroring the bounded
// connection-pool sizing the teacher applies to Postgres and Redis
// clients rather than leaving goroutine counts unbounded.
const maxWorkers = 16

// Build constructs the RV graph for one batch. onboardIndex must
// contain every request referenced by a vehicle's Onboard list (their
// full records, including deadlines), since the oracle needs them to
// simulate drop-offs for already-onboard passengers.
func Build(
	ctx context.Context,
	rg roadgraph.RoadGraph,
	vehicles []model.Vehicle,
	onboardIndex map[model.RequestID]model.Request,
	requests []model.Request,
	currentTime float64,
	t model.Tunables,
) (*model.RVGraph, error) {
	vrEdges, err := buildVREdges(ctx, rg, vehicles, onboardIndex, requests, t)
	if err != nil {
		return nil, err
	}
	rrEdges, err := buildRREdges(ctx, rg, requests, currentTime, t)
	if err != nil {
		return nil, err
	}

	// Each node's own incident list is pruned to its top-K cheapest
	// edges independently (RVGraph stores edges per-incident-node), so
	// an edge surviving in either endpoint's list is kept even if the
	// other endpoint dropped it — the "two-sided keep" rule.
	g := model.NewRVGraph()
	for v, edges := range vrEdges {
		g.VREdges[v] = prune(edges, t.PruneTopK)
	}
	for r, edges := range rrEdges {
		g.RREdges[r] = prune(edges, t.PruneTopK)
	}
	return g, nil
}

type vrResult struct {
	vehicle model.VehicleID
	request model.RequestID
	cost    float64
	stops   []model.Stop
}

func buildVREdges(
	ctx context.Context,
	rg roadgraph.RoadGraph,
	vehicles []model.Vehicle,
	onboardIndex map[model.RequestID]model.Request,
	requests []model.Request,
	t model.Tunables,
) (map[model.VehicleID][]model.RVEdge, error) {
	type job struct {
		vehicle model.Vehicle
		request model.Request
	}
	var jobs []job
	for _, v := range vehicles {
		if len(v.Onboard) >= v.Capacity {
			continue
		}
		for _, r := range requests {
			jobs = append(jobs, job{vehicle: v, request: r})
		}
	}

	results := make([]*vrResult, len(jobs))
	var firstErr error
	var mu sync.Mutex

	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for i, j := range jobs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, j job) {
			defer wg.Done()
			defer func() { <-sem }()

			onboardReqs := make([]model.Request, 0, len(j.vehicle.Onboard))
			for _, rid := range j.vehicle.Onboard {
				onboardReqs = append(onboardReqs, onboardIndex[rid])
			}
			seq, err := oracle.Travel(rg, j.vehicle, onboardReqs, []model.Request{j.request}, t)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			if seq == nil {
				return
			}
			results[i] = &vrResult{vehicle: j.vehicle.ID, request: j.request.ID, cost: seq.TotalCost, stops: seq.Stops}
		}(i, j)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	out := make(map[model.VehicleID][]model.RVEdge)
	for _, r := range results {
		if r == nil {
			continue
		}
		out[r.vehicle] = append(out[r.vehicle], model.RVEdge{
			Kind: "vr", Vehicle: r.vehicle, RequestA: r.request, Cost: r.cost, Stops: r.stops,
		})
	}
	// Deterministic combiner: sort each vehicle's edges by request id
	// regardless of goroutine completion order (invariant I9).
	for v := range out {
		sort.Slice(out[v], func(i, j int) bool { return out[v][i].RequestA < out[v][j].RequestA })
	}
	return out, nil
}

type rrResult struct {
	a, b model.RequestID
	cost float64
	ok   bool
}

func buildRREdges(
	ctx context.Context,
	rg roadgraph.RoadGraph,
	requests []model.Request,
	currentTime float64,
	t model.Tunables,
) (map[model.RequestID][]model.RVEdge, error) {
	var pairs [][2]model.Request
	for i := 0; i < len(requests); i++ {
		for j := i + 1; j < len(requests); j++ {
			pairs = append(pairs, [2]model.Request{requests[i], requests[j]})
		}
	}

	results := make([]rrResult, len(pairs))
	var firstErr error
	var mu sync.Mutex
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, p := range pairs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p [2]model.Request) {
			defer wg.Done()
			defer func() { <-sem }()

			feasible, cost, err := compatiblePair(rg, p[0], p[1], currentTime, t.MaxDelaySeconds)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = rrResult{a: p[0].ID, b: p[1].ID, cost: cost, ok: feasible}
		}(i, p)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	out := make(map[model.RequestID][]model.RVEdge)
	for _, r := range results {
		if !r.ok {
			continue
		}
		out[r.a] = append(out[r.a], model.RVEdge{Kind: "rr", RequestA: r.a, RequestB: r.b, Cost: r.cost})
		out[r.b] = append(out[r.b], model.RVEdge{Kind: "rr", RequestA: r.b, RequestB: r.a, Cost: r.cost})
	}
	for r := range out {
		sort.Slice(out[r], func(i, j int) bool { return out[r][i].RequestB < out[r][j].RequestB })
	}
	return out, nil
}

// compatiblePair checks the three composite hypothetical-empty-vehicle
// orderings from spec.md §4.2 and reports feasibility if any one of
// them respects every visited stop's own deadline. The edge weight is
// the shortest travel time between the two requests' origins — a
// heuristic ordering proxy, not a feasibility certificate.
func compatiblePair(rg roadgraph.RoadGraph, r1, r2 model.Request, currentTime, maxDelay float64) (bool, float64, error) {
	// Every composite starts by picking r1 up at currentTime.
	if currentTime > r1.TPickupLatest {
		return false, 0, nil
	}
	o1o2, err := rg.ShortestTravelTime(r1.Origin, r2.Origin)
	if err != nil {
		return false, 0, err
	}
	if o1o2 >= roadgraph.Unreachable {
		return false, 0, nil
	}

	dist := func(from, to model.Node) (float64, bool, error) {
		d, err := rg.ShortestTravelTime(from, to)
		if err != nil {
			return 0, false, err
		}
		return d, d < roadgraph.Unreachable, nil
	}

	o1d1, ok, err := dist(r1.Origin, r1.Destination)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return false, 0, nil
	}
	d1o2, ok, err := dist(r1.Destination, r2.Origin)
	if err != nil {
		return false, 0, err
	}
	o2d2, okOD2, err := dist(r2.Origin, r2.Destination)
	if err != nil {
		return false, 0, err
	}
	d1d2, okDD, err := dist(r1.Destination, r2.Destination)
	if err != nil {
		return false, 0, err
	}

	// Composite 1: pick r1 -> drop r1 -> pick r2 -> drop r2.
	if ok && okOD2 {
		t1 := currentTime + o1d1
		t2 := t1 + d1o2
		t3 := t2 + o2d2
		if t1 <= r1.TDropoffEarliest+maxDelay && t2 <= r2.TPickupLatest && t3 <= r2.TDropoffEarliest+maxDelay {
			return true, o1o2, nil
		}
	}

	// Composite 2: pick r1 -> pick r2 -> drop r2 -> drop r1.
	if okOD2 && okDD {
		t1 := currentTime + o1o2
		t2 := t1 + o2d2
		t3 := t2 + d1d2
		if t1 <= r2.TPickupLatest && t2 <= r2.TDropoffEarliest+maxDelay && t3 <= r1.TDropoffEarliest+maxDelay {
			return true, o1o2, nil
		}
	}

	// Composite 3: pick r1 -> pick r2 -> drop r1 -> drop r2.
	if ok && okDD {
		t1 := currentTime + o1o2
		t2 := t1 + d1o2
		t3 := t2 + d1d2
		if t1 <= r2.TPickupLatest && t2 <= r1.TDropoffEarliest+maxDelay && t3 <= r2.TDropoffEarliest+maxDelay {
			return true, o1o2, nil
		}
	}

	return false, 0, nil
}

// prune keeps only the topK cheapest edges (by Cost) for a node's own
// incident list. A zero topK (including the zero Tunables value)
// yields no edges, matching spec.md's documented boundary behavior.
func prune(edges []model.RVEdge, topK int) []model.RVEdge {
	sorted := append([]model.RVEdge(nil), edges...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Cost < sorted[j].Cost })
	if topK < 0 {
		topK = 0
	}
	if topK < len(sorted) {
		sorted = sorted[:topK]
	}
	return sorted
}
