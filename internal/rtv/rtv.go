// Package rtv builds the RTV (Request-Trip-Vehicle) tripartite graph
// (spec C4): for each vehicle, every feasible Trip of size 1..capacity
// minus onboard count, found by growing trips one request at a time
// under the downward-closure precondition and verifying each candidate
// with the feasibility oracle.
//
// Per-vehicle enumeration is independent of every other vehicle's, so
// BuildAll fans it out over a bounded worker pool the way the RTV
// enumeration note in spec.md §5 anticipates ("may be parallelized by
// partitioning on independent dimensions... per-vehicle for RTV
// enumeration"), writing each vehicle's result into its own slot of a
// pre-sized slice rather than a shared map, so the merge needs no
// locking and produces identical output regardless of goroutine
// interleaving (invariant I9).
package rtv

import (
	"context"
	"sort"
	"sync"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/oracle"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
)

const maxWorkers = 16

// BuildAll enumerates feasible trips for every vehicle. onboardIndex
// must carry full records for every request any vehicle has onboard;
// requestIndex must carry full records for every request in rv.
func BuildAll(
	ctx context.Context,
	rg roadgraph.RoadGraph,
	vehicles []model.Vehicle,
	onboardIndex map[model.RequestID]model.Request,
	requestIndex map[model.RequestID]model.Request,
	rv *model.RVGraph,
	t model.Tunables,
) (*model.RTVGraph, error) {
	results := make([]*model.VehicleTrips, len(vehicles))
	var firstErr error
	var mu sync.Mutex
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for i, v := range vehicles {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v model.Vehicle) {
			defer wg.Done()
			defer func() { <-sem }()

			vt, err := enumerateVehicle(rg, v, onboardIndex, requestIndex, rv, t)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = vt
		}(i, v)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	g := &model.RTVGraph{ByVehicle: make(map[model.VehicleID]*model.VehicleTrips, len(vehicles))}
	for _, vt := range results {
		if vt == nil || len(vt.Trips) == 0 {
			continue
		}
		g.ByVehicle[vt.Vehicle] = vt
	}
	return g, nil
}

// tripRecord is one feasible trip found for a vehicle during
// enumeration, keyed by its sorted request-id set.
type tripRecord struct {
	requests []model.RequestID // sorted
	key      string
	seq      *model.StopSequence
}

func tripKey(requests []model.RequestID) string {
	sorted := append([]model.RequestID(nil), requests...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := ""
	for i, r := range sorted {
		if i > 0 {
			out += "+"
		}
		out += string(r)
	}
	return out
}

// enumerateVehicle runs the size-by-size growth procedure of spec.md
// §4.3 for a single vehicle.
func enumerateVehicle(
	rg roadgraph.RoadGraph,
	v model.Vehicle,
	onboardIndex, requestIndex map[model.RequestID]model.Request,
	rv *model.RVGraph,
	t model.Tunables,
) (*model.VehicleTrips, error) {
	maxK := v.Capacity - len(v.Onboard)
	vt := &model.VehicleTrips{
		Vehicle: v.ID,
		Trips:   make(map[string]*model.Trip),
		Best:    make(map[string]*model.StopSequence),
	}
	if maxK <= 0 {
		return vt, nil
	}

	onboardReqs := make([]model.Request, 0, len(v.Onboard))
	for _, rid := range v.Onboard {
		onboardReqs = append(onboardReqs, onboardIndex[rid])
	}

	bySize := map[int]map[string]*tripRecord{}

	// k = 1: every request adjacent to v in the RV graph.
	level1 := map[string]*tripRecord{}
	for _, e := range rv.VREdges[v.ID] {
		key := tripKey([]model.RequestID{e.RequestA})
		level1[key] = &tripRecord{
			requests: []model.RequestID{e.RequestA},
			key:      key,
			seq:      &model.StopSequence{Stops: e.Stops, TotalCost: e.Cost},
		}
	}
	bySize[1] = level1
	registerLevel(vt, level1)

	for k := 2; k <= maxK; k++ {
		prev := bySize[k-1]
		if len(prev) == 0 {
			break
		}

		var candidates map[string][]model.RequestID
		if k == 2 {
			candidates = pairCandidates(prev, rv)
		} else {
			candidates = unionCandidates(prev)
		}

		level := map[string]*tripRecord{}
		for key, reqIDs := range candidates {
			if !downwardClosed(reqIDs, prev) {
				continue
			}
			reqs := make([]model.Request, len(reqIDs))
			for i, id := range reqIDs {
				reqs[i] = requestIndex[id]
			}
			seq, err := oracle.Travel(rg, v, onboardReqs, reqs, t)
			if err != nil {
				return nil, err
			}
			if seq == nil {
				continue
			}
			level[key] = &tripRecord{requests: reqIDs, key: key, seq: seq}
		}
		if len(level) == 0 {
			break
		}
		bySize[k] = level
		registerLevel(vt, level)
	}

	return vt, nil
}

func registerLevel(vt *model.VehicleTrips, level map[string]*tripRecord) {
	for key, rec := range level {
		vt.Trips[key] = &model.Trip{ID: key, Requests: rec.requests}
		vt.Best[key] = rec.seq
	}
}

// pairCandidates forms k=2 candidates from k=1 trips connected by an
// RR edge, per spec.md §4.3 step 2.
func pairCandidates(level1 map[string]*tripRecord, rv *model.RVGraph) map[string][]model.RequestID {
	var singles []model.RequestID
	for _, rec := range level1 {
		singles = append(singles, rec.requests[0])
	}
	sort.Slice(singles, func(i, j int) bool { return singles[i] < singles[j] })

	rrSet := make(map[[2]model.RequestID]bool)
	for _, edges := range rv.RREdges {
		for _, e := range edges {
			a, b := e.RequestA, e.RequestB
			if a > b {
				a, b = b, a
			}
			rrSet[[2]model.RequestID{a, b}] = true
		}
	}

	out := map[string][]model.RequestID{}
	for i := 0; i < len(singles); i++ {
		for j := i + 1; j < len(singles); j++ {
			a, b := singles[i], singles[j]
			if !rrSet[[2]model.RequestID{a, b}] {
				continue
			}
			reqs := []model.RequestID{a, b}
			out[tripKey(reqs)] = reqs
		}
	}
	return out
}

// unionCandidates forms size-k candidates by unioning pairs of size
// (k-1) trips sharing exactly k-2 requests, per spec.md §4.3 step 3.
func unionCandidates(prev map[string]*tripRecord) map[string][]model.RequestID {
	var recs []*tripRecord
	for _, r := range prev {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].key < recs[j].key })

	out := map[string][]model.RequestID{}
	for i := 0; i < len(recs); i++ {
		ai := toSet(recs[i].requests)
		for j := i + 1; j < len(recs); j++ {
			bj := toSet(recs[j].requests)
			shared := 0
			for r := range ai {
				if bj[r] {
					shared++
				}
			}
			if shared != len(recs[i].requests)-1 {
				continue
			}
			union := map[model.RequestID]bool{}
			for r := range ai {
				union[r] = true
			}
			for r := range bj {
				union[r] = true
			}
			if len(union) != len(recs[i].requests)+1 {
				continue
			}
			var reqs []model.RequestID
			for r := range union {
				reqs = append(reqs, r)
			}
			sort.Slice(reqs, func(a, b int) bool { return reqs[a] < reqs[b] })
			out[tripKey(reqs)] = reqs
		}
	}
	return out
}

func toSet(ids []model.RequestID) map[model.RequestID]bool {
	out := make(map[model.RequestID]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// downwardClosed reports whether every size-(k-1) subset of reqIDs is
// present in the previous level — invariant I4's precondition, checked
// before the candidate is ever submitted to the oracle.
func downwardClosed(reqIDs []model.RequestID, prev map[string]*tripRecord) bool {
	for skip := range reqIDs {
		subset := make([]model.RequestID, 0, len(reqIDs)-1)
		for i, r := range reqIDs {
			if i != skip {
				subset = append(subset, r)
			}
		}
		if _, ok := prev[tripKey(subset)]; !ok {
			return false
		}
	}
	return true
}
