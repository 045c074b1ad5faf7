// Package service contains the core business logic for ride pooling:
// SolverService orchestrates the pipeline's six components into a
// single Solve call, the way MatchingService once orchestrated
// fetch/filter/score/select for one-off ride matching.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shivamshaw23/ridepool/internal/assign"
	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/oracle"
	"github.com/shivamshaw23/ridepool/internal/repository"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/internal/rtv"
	"github.com/shivamshaw23/ridepool/internal/rv"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	// ErrEmptyBatch is returned when a batch has no vehicles or no
	// requests — there is nothing for the pipeline to solve.
	ErrEmptyBatch = errors.New("solve: batch has no vehicles or no requests")

	// ErrSolveNotFound names the "persisted solve run cannot be located
	// by id" condition. SolverService itself never returns it: lookups
	// by id go through repository.SolveRepository.GetRun, which reports
	// a missing run as repository.ErrSolveRunNotFound.
	ErrSolveNotFound = errors.New("solve: run not found")
)

// Batch is everything Solve needs: the vehicles and new requests for
// one solve cycle, the full records for any request a vehicle already
// has onboard, and the current simulation time.
type Batch struct {
	Vehicles     []model.Vehicle
	Requests     []model.Request
	OnboardIndex map[model.RequestID]model.Request
	CurrentTime  float64
}

// SolverService runs a batch through the trip feasibility oracle, RV
// and RTV graph construction, and the greedy-seeded exact assigner —
// spec.md's components C1 through C6 — and optionally persists the
// result.
//
// Like MatchingService before it, SolverService holds its
// collaborators as fields set at construction and is safe for
// concurrent use: all of its state either lives in the caller-owned
// RoadGraph (itself synchronized, see roadgraph.Graph) or is built
// fresh per call.
type SolverService struct {
	RoadGraph roadgraph.RoadGraph
	Repo      *repository.SolveRepository // nil disables persistence
	Tunables  model.Tunables
}

// NewSolverService creates a solver service backed by the given road
// graph and tunables. repo may be nil if solve runs should not be
// persisted.
func NewSolverService(rg roadgraph.RoadGraph, repo *repository.SolveRepository, tunables model.Tunables) *SolverService {
	return &SolverService{RoadGraph: rg, Repo: repo, Tunables: tunables}
}

// Solve runs one full batch through the pipeline and returns the
// resulting Assignment. If s.Repo is non-nil, the run and its
// assignment are persisted and the new run id is stored in the
// returned Assignment's RunID (persistence failures are logged, not
// fatal, and leave RunID at 0 — a successful
// solve should not be thrown away because the write path is down).
func (s *SolverService) Solve(ctx context.Context, batch Batch) (*model.Assignment, error) {
	if len(batch.Vehicles) == 0 || len(batch.Requests) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := model.ValidateBatch(batch.Vehicles, batch.Requests); err != nil {
		return nil, err
	}

	start := time.Now()
	log.Printf("[solve] batch: %d vehicles, %d requests", len(batch.Vehicles), len(batch.Requests))

	requestIndex := make(map[model.RequestID]model.Request, len(batch.Requests))
	allRequestIDs := make([]model.RequestID, 0, len(batch.Requests))
	for _, r := range batch.Requests {
		requestIndex[r.ID] = r
		allRequestIDs = append(allRequestIDs, r.ID)
	}

	rvGraph, err := rv.Build(ctx, s.RoadGraph, batch.Vehicles, batch.OnboardIndex, batch.Requests, batch.CurrentTime, s.Tunables)
	if err != nil {
		return nil, fmt.Errorf("solve: building RV graph: %w", err)
	}
	log.Printf("[solve] RV graph: %d vehicles with edges, %d requests with RR edges", len(rvGraph.VREdges), len(rvGraph.RREdges))

	rtvGraph, err := rtv.BuildAll(ctx, s.RoadGraph, batch.Vehicles, batch.OnboardIndex, requestIndex, rvGraph, s.Tunables)
	if err != nil {
		return nil, fmt.Errorf("solve: building RTV graph: %w", err)
	}
	tripCount := 0
	for _, vt := range rtvGraph.ByVehicle {
		tripCount += len(vt.Trips)
	}
	log.Printf("[solve] RTV graph: %d vehicles with feasible trips, %d trips total", len(rtvGraph.ByVehicle), tripCount)

	result := assign.Exact(ctx, rtvGraph, allRequestIDs, s.Tunables)
	log.Printf("[solve] assigned %d vehicles, %d requests unserved, objective=%.2f, optimal=%v, elapsed=%s",
		len(result.Assignments), len(result.UnservedRequests), result.ObjectiveValue, result.Optimal, time.Since(start))

	if s.Repo != nil {
		id, persistErr := s.Repo.SaveRun(ctx, len(batch.Vehicles), len(batch.Requests), result)
		if persistErr != nil {
			log.Printf("[solve] WARNING: failed to persist solve run: %v", persistErr)
		} else {
			result.RunID = id
		}
	}

	return result, nil
}

// CheckFeasibility exposes the oracle directly (spec.md's "oracle
// check" operation): given a vehicle's state and a candidate set of
// new requests, report whether a feasible stop sequence exists and,
// if so, return it.
func (s *SolverService) CheckFeasibility(vehicle model.Vehicle, onboard, newRequests []model.Request) (*model.StopSequence, error) {
	seq, err := oracle.Travel(s.RoadGraph, vehicle, onboard, newRequests, s.Tunables)
	if err != nil {
		return nil, fmt.Errorf("solve: oracle check: %w", err)
	}
	return seq, nil
}
