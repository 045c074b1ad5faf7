package fixtures

import (
	"fmt"
	"math/rand"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
)

// Generator produces synthetic vehicles and requests over a fixed road
// network, grounded on generate_requests_for_vehicle/initialize_vehicles/
// generate_requests in original_source/optimizer/agents/generator.py.
type Generator struct {
	rg    roadgraph.RoadGraph
	nodes []model.Node
	rng   *rand.Rand

	omega    float64
	maxDelay float64
}

// NewGenerator builds a Generator over rg's reachable vertex set. seed
// makes every batch reproducible — the original script left this to
// whatever state the Python process's global RNG happened to be in,
// which this port intentionally does not repeat.
func NewGenerator(rg roadgraph.RoadGraph, nodes []model.Node, seed int64, omega, maxDelay float64) *Generator {
	return &Generator{rg: rg, nodes: nodes, rng: rand.New(rand.NewSource(seed)), omega: omega, maxDelay: maxDelay}
}

// GenerateVehicles returns numVehicles vehicles at random grid
// positions, each carrying a random onboard load between 0 and
// maxCapacity. The onboard passengers' full Request records are
// returned separately in onboardIndex, since model.Vehicle only
// stores request ids.
//
// Grounded on initialize_vehicles: "random passenger count" per
// vehicle, one onboard trip generated per passenger via
// generateOnboardRequest.
func (g *Generator) GenerateVehicles(numVehicles, maxCapacity int) (vehicles []model.Vehicle, onboardIndex map[model.RequestID]model.Request, err error) {
	onboardIndex = make(map[model.RequestID]model.Request)
	for i := 0; i < numVehicles; i++ {
		position := g.nodes[g.rng.Intn(len(g.nodes))]
		numOnboard := g.rng.Intn(maxCapacity + 1)

		var onboard []model.RequestID
		for p := 0; p < numOnboard; p++ {
			rid := model.RequestID(fmt.Sprintf("v%d_onboard%d", i+1, p+1))
			req, genErr := g.generateOnboardRequest(rid, position, p)
			if genErr != nil {
				return nil, nil, genErr
			}
			onboard = append(onboard, rid)
			onboardIndex[rid] = req
		}

		vehicles = append(vehicles, model.Vehicle{
			ID:       model.VehicleID(fmt.Sprintf("v%d", i+1)),
			Position: position,
			Clock:    0,
			Onboard:  onboard,
			Capacity: maxCapacity,
		})
	}
	return vehicles, onboardIndex, nil
}

// generateOnboardRequest mirrors generate_requests_for_vehicle's inner
// loop: retry with a fresh random destination until one is reachable
// within maxDelay of the synthetic pickup time. index staggers pickup
// times 80 seconds apart per onboard slot, same as the original's
// time_offset.
func (g *Generator) generateOnboardRequest(id model.RequestID, vehicleNode model.Node, index int) (model.Request, error) {
	const timeOffset = -80
	const maxAttempts = 200

	origin := vehicleNode
	if index > 0 {
		origin = g.nodes[g.rng.Intn(len(g.nodes))]
	}
	pickupTime := float64((index + 1) * timeOffset)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		destination := g.randomOtherNode(origin)
		travel, err := g.rg.ShortestTravelTime(origin, destination)
		if err != nil {
			return model.Request{}, err
		}
		if travel >= roadgraph.Unreachable {
			continue
		}
		arrival := pickupTime + travel
		if arrival > pickupTime+g.maxDelay {
			continue
		}
		return model.Request{
			ID:               id,
			Origin:           origin,
			Destination:      destination,
			TRequest:         pickupTime - 30,
			TPickupLatest:    pickupTime - 30 + g.omega,
			TDropoffEarliest: arrival - 30,
		}, nil
	}
	return model.Request{}, fmt.Errorf("fixtures: no reachable destination found for onboard request %q after %d attempts", id, maxAttempts)
}

// GenerateRequests returns numRequests fresh requests sampled
// uniformly over the grid, each reachable (origin to destination) in
// the underlying road graph. Grounded on generate_requests.
func (g *Generator) GenerateRequests(numRequests int) ([]model.Request, error) {
	const maxAttempts = 200
	out := make([]model.Request, 0, numRequests)
	for i := 0; i < numRequests; i++ {
		var travel float64
		var origin, destination model.Node
		found := false
		for attempt := 0; attempt < maxAttempts; attempt++ {
			origin = g.nodes[g.rng.Intn(len(g.nodes))]
			destination = g.randomOtherNode(origin)
			t, err := g.rg.ShortestTravelTime(origin, destination)
			if err != nil {
				return nil, err
			}
			if t < roadgraph.Unreachable {
				travel = t
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("fixtures: no reachable origin/destination pair found for request %d after %d attempts", i+1, maxAttempts)
		}
		out = append(out, model.Request{
			ID:               model.RequestID(fmt.Sprintf("r%d", i+1)),
			Origin:           origin,
			Destination:      destination,
			TRequest:         0,
			TPickupLatest:    g.omega,
			TDropoffEarliest: travel,
		})
	}
	return out, nil
}

func (g *Generator) randomOtherNode(origin model.Node) model.Node {
	for {
		n := g.nodes[g.rng.Intn(len(g.nodes))]
		if n != origin {
			return n
		}
	}
}

// ValidateReachability splits requests into those whose origin is
// reachable from at least one vehicle's current position and those
// that are not, per validate_request_reachability.
func ValidateReachability(rg roadgraph.RoadGraph, vehicles []model.Vehicle, requests []model.Request) (reachable, unreachable []model.Request, err error) {
	for _, req := range requests {
		ok := false
		for _, v := range vehicles {
			has, hasErr := rg.HasPath(v.Position, req.Origin)
			if hasErr != nil {
				return nil, nil, hasErr
			}
			if has {
				ok = true
				break
			}
		}
		if ok {
			reachable = append(reachable, req)
		} else {
			unreachable = append(unreachable, req)
		}
	}
	return reachable, unreachable, nil
}
