// Package model holds the domain types shared by every stage of the
// assignment pipeline: the road graph's vertices, the requests and
// vehicles a batch is solved over, the stop sequences and trips the
// oracle produces, and the final vehicle-to-trip assignment.
package model

import "fmt"

// Node is an opaque vertex id in the external road network. The engine
// never interprets it beyond equality and use as a RoadGraph key.
type Node int64

// Location is a WGS-84 coordinate. It exists only at the edges of the
// system — fixture generation lays out a synthetic city this way
// before collapsing each Location to an opaque Node id — the solver
// pipeline itself never looks past a Node.
type Location struct {
	Lat float64
	Lon float64
}

// StopKind distinguishes a passenger pickup from a drop-off within a
// StopSequence.
type StopKind int

const (
	Pickup StopKind = iota
	Dropoff
)

func (k StopKind) String() string {
	if k == Pickup {
		return "pickup"
	}
	return "dropoff"
}

// Tunables holds every parameter the spec allows an operator to tune.
// Zero values are never valid configuration; use DefaultTunables as a
// starting point.
type Tunables struct {
	Capacity         int     `mapstructure:"capacity"`
	OmegaSeconds     float64 `mapstructure:"omega_seconds"`
	MaxDelaySeconds  float64 `mapstructure:"max_delay_seconds"`
	PruneTopK        int     `mapstructure:"prune_top_k"`
	CostPenalty      float64 `mapstructure:"cost_penalty"`
	TimeLimitSeconds float64 `mapstructure:"time_limit_seconds"`
	Gap              float64 `mapstructure:"gap"`
}

// DefaultTunables returns the parameter values spec.md lists as defaults.
func DefaultTunables() Tunables {
	return Tunables{
		Capacity:         2,
		OmegaSeconds:     600,
		MaxDelaySeconds:  600,
		PruneTopK:        30,
		CostPenalty:      1000,
		TimeLimitSeconds: 30,
		Gap:              0.001,
	}
}

// RequestID identifies a ride request within a batch.
type RequestID string

// VehicleID identifies a vehicle within a batch.
type VehicleID string

// Request is a single rider's origin/destination/time-window ask.
type Request struct {
	ID                RequestID
	Origin            Node
	Destination       Node
	TRequest          float64 // time the request entered the system
	TPickupLatest     float64 // TRequest + omega
	TDropoffEarliest  float64 // earliest a direct drop-off could occur
}

// Vehicle is a pooling-capable vehicle's state at solve time.
type Vehicle struct {
	ID       VehicleID
	Position Node
	Clock    float64 // the vehicle's current simulation time
	Onboard  []RequestID
	Capacity int
}

// Stop is one pickup or drop-off event in a StopSequence.
type Stop struct {
	Request RequestID
	Kind    StopKind
	Node    Node
}

// StopSequence is an ordered, feasible plan for a vehicle to visit a
// set of stops: every precedence, capacity, and deadline constraint in
// spec.md §4.1 holds for a StopSequence the oracle returns.
type StopSequence struct {
	Stops     []Stop
	TotalCost float64 // cumulative travel time from the vehicle's current position
}

// Trip is a set of requests the oracle has proven jointly servable by
// some vehicle. The best StopSequence found for it is kept separately,
// per vehicle, in VehicleTrips.Best. The
// ID is the requests' ids sorted and joined with "+", so that equal
// request sets always produce the same Trip ID (invariant I9).
type Trip struct {
	ID       string
	Requests []RequestID
}

// NewTripID derives a deterministic Trip ID from a request set.
func NewTripID(requests []RequestID) string {
	sorted := make([]string, len(requests))
	for i, r := range requests {
		sorted[i] = string(r)
	}
	// insertion sort: request sets are small (<= capacity), no need for sort.Strings overhead
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	id := ""
	for i, s := range sorted {
		if i > 0 {
			id += "+"
		}
		id += s
	}
	return id
}

// RVEdge is one edge of the RV graph: either a Vehicle-Request (VR) or
// Request-Request (RR) compatibility edge.
type RVEdge struct {
	Kind     string // "vr" or "rr"
	Vehicle  VehicleID
	RequestA RequestID
	RequestB RequestID // empty for "vr" edges
	Cost     float64
	Stops    []Stop // populated for "vr" edges: the oracle's winning sequence
}

// RVGraph is the compatibility graph built by the RV stage: VR edges
// from a vehicle to each request it could serve alone, RR edges
// between requests that could share a trip.
type RVGraph struct {
	VREdges map[VehicleID][]RVEdge
	RREdges map[RequestID][]RVEdge
}

// NewRVGraph returns an empty RVGraph ready for edges to be added.
func NewRVGraph() *RVGraph {
	return &RVGraph{
		VREdges: make(map[VehicleID][]RVEdge),
		RREdges: make(map[RequestID][]RVEdge),
	}
}

// VehicleTrips is every feasible Trip found for one vehicle in the RTV
// stage, keyed by Trip ID for O(1) lookup during assignment.
type VehicleTrips struct {
	Vehicle VehicleID
	Trips   map[string]*Trip
	Best    map[string]*StopSequence // best StopSequence found per Trip ID
}

// RTVGraph is the tripartite Request-Trip-Vehicle structure: for every
// vehicle, the set of trips it could serve and, for each, the best
// stop sequence and its cost.
type RTVGraph struct {
	ByVehicle map[VehicleID]*VehicleTrips
}

// Assignment maps vehicles to the trip assigned to them for this batch.
// A vehicle absent from Assignments was not assigned any new trip.
// UnservedRequests lists every request that could not be covered.
type Assignment struct {
	Assignments      map[VehicleID]*Trip
	StopSequences    map[VehicleID]*StopSequence
	UnservedRequests []RequestID
	ObjectiveValue   float64
	Optimal          bool  // false if the exact solver hit its time limit
	RunID            int64 // 0 until persisted by a repository
}

// InvalidInputError reports one or more structural problems found
// while validating a batch before it enters the pipeline.
type InvalidInputError struct {
	Problems []string
}

func (e *InvalidInputError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("invalid input: %s", e.Problems[0])
	}
	return fmt.Sprintf("invalid input: %d problems, first: %s", len(e.Problems), e.Problems[0])
}

// ValidateBatch checks the structural preconditions spec.md §3 assumes
// hold before a batch reaches the oracle: unique ids, onboard sets
// within capacity, and non-degenerate requests.
func ValidateBatch(vehicles []Vehicle, requests []Request) error {
	var problems []string

	seenVehicle := make(map[VehicleID]bool, len(vehicles))
	for _, v := range vehicles {
		if seenVehicle[v.ID] {
			problems = append(problems, fmt.Sprintf("duplicate vehicle id %q", v.ID))
		}
		seenVehicle[v.ID] = true
		if len(v.Onboard) > v.Capacity {
			problems = append(problems, fmt.Sprintf("vehicle %q has %d onboard but capacity %d", v.ID, len(v.Onboard), v.Capacity))
		}
		if v.Capacity <= 0 {
			problems = append(problems, fmt.Sprintf("vehicle %q has non-positive capacity %d", v.ID, v.Capacity))
		}
	}

	seenRequest := make(map[RequestID]bool, len(requests))
	for _, r := range requests {
		if seenRequest[r.ID] {
			problems = append(problems, fmt.Sprintf("duplicate request id %q", r.ID))
		}
		seenRequest[r.ID] = true
		if r.Origin == r.Destination {
			problems = append(problems, fmt.Sprintf("request %q has identical origin and destination", r.ID))
		}
	}

	if len(problems) > 0 {
		return &InvalidInputError{Problems: problems}
	}
	return nil
}
