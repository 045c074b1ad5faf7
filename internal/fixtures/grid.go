// Package fixtures generates synthetic batches — a road network plus
// vehicles and requests — for local testing, benchmarking, and the
// headless solve CLI, without a live map provider or a seeded
// database.
//
// Grounded on original_source/optimizer/agents/generator.py: the same
// two generation passes (vehicles with an initial onboard trip set,
// then a batch of new requests) and the same reachability filter, re-
// expressed over internal/roadgraph instead of a networkx.Graph. The
// 4-directional neighbor offsets for laying out the grid are the ones
// katalvlaran/lvlath's gridgraph package uses for its Conn4 adjacency.
package fixtures

import (
	"math"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/pkg/geo"
)

// conn4Offsets are the four orthogonal neighbor directions, the same
// set gridgraph.Conn4 walks.
var conn4Offsets = [4][2]int{{0, 1}, {1, 0}, {0, -1}, {-1, 0}}

// GridConfig describes a synthetic rectangular city: Rows x Cols
// intersections spaced SpacingKm apart, connected to their orthogonal
// neighbors.
type GridConfig struct {
	Rows      int
	Cols      int
	SpacingKm float64
	OriginLat float64
	OriginLon float64
}

// DefaultGridConfig returns a modest 10x10 grid spaced 500m apart,
// anchored at 28.6N 77.2E (New Delhi) — coordinates only matter relative
// to each other since EstimateTimeSeconds is translation-invariant on
// a small grid.
func DefaultGridConfig() GridConfig {
	return GridConfig{Rows: 10, Cols: 10, SpacingKm: 0.5, OriginLat: 28.6, OriginLon: 77.2}
}

// Grid is a synthetic road network: a graph of Node ids laid out on a
// regular lattice, with each Node's coordinate recorded for generators
// that need to compute new travel times (e.g. from a vehicle's
// current position to a freshly sampled request origin).
type Grid struct {
	Graph     *roadgraph.Graph
	Nodes     []model.Node
	Locations map[model.Node]model.Location
}

// BuildGrid lays out cfg.Rows x cfg.Cols vertices and connects every
// vertex to its orthogonal neighbors with a bidirectional edge whose
// weight is the Haversine-estimated travel time between them.
func BuildGrid(cfg GridConfig) *Grid {
	g := roadgraph.New()
	locations := make(map[model.Node]model.Location, cfg.Rows*cfg.Cols)
	nodes := make([]model.Node, 0, cfg.Rows*cfg.Cols)

	// Roughly: 1 degree of latitude is ~111km; a degree of longitude is
	// shorter by cos(latitude), so the longitude step is widened by that
	// factor to keep the grid square in distance.
	latStep := cfg.SpacingKm / 111.0
	lonStep := cfg.SpacingKm / (111.0 * math.Cos(cfg.OriginLat*math.Pi/180.0))

	nodeAt := func(row, col int) model.Node { return model.Node(row*cfg.Cols + col + 1) }

	for row := 0; row < cfg.Rows; row++ {
		for col := 0; col < cfg.Cols; col++ {
			n := nodeAt(row, col)
			loc := model.Location{
				Lat: cfg.OriginLat + float64(row)*latStep,
				Lon: cfg.OriginLon + float64(col)*lonStep,
			}
			g.AddVertex(n)
			locations[n] = loc
			nodes = append(nodes, n)
		}
	}

	for row := 0; row < cfg.Rows; row++ {
		for col := 0; col < cfg.Cols; col++ {
			from := nodeAt(row, col)
			for _, off := range conn4Offsets {
				nr, nc := row+off[0], col+off[1]
				if nr < 0 || nr >= cfg.Rows || nc < 0 || nc >= cfg.Cols {
					continue
				}
				to := nodeAt(nr, nc)
				if from >= to {
					continue // each undirected edge added once
				}
				w := geo.EstimateTimeSeconds(locations[from], locations[to])
				_ = g.AddEdge(from, to, w)
				_ = g.AddEdge(to, from, w)
			}
		}
	}

	return &Grid{Graph: g, Nodes: nodes, Locations: locations}
}

// RoadGraph exposes the grid's underlying graph through the
// roadgraph.RoadGraph interface, for callers that don't need direct
// vertex/location access.
func (gr *Grid) RoadGraph() roadgraph.RoadGraph { return gr.Graph }
