// Package handler contains HTTP request handlers for the ride pooling
// solve API.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/repository"
	"github.com/shivamshaw23/ridepool/internal/service"
)

// SolveHandler handles batch-solve HTTP requests.
type SolveHandler struct {
	solver *service.SolverService
	repo   *repository.SolveRepository // nil disables GetSolve
}

// NewSolveHandler creates a handler wired to the solver service and,
// optionally, a repository for looking up past runs.
func NewSolveHandler(solver *service.SolverService, repo *repository.SolveRepository) *SolveHandler {
	return &SolveHandler{solver: solver, repo: repo}
}

// ─── Request/Response DTOs ──────────────────────────────────

type requestDTO struct {
	ID               model.RequestID `json:"id"`
	Origin           model.Node      `json:"origin"`
	Destination      model.Node      `json:"destination"`
	TRequest         float64         `json:"t_request"`
	TPickupLatest    float64         `json:"t_pickup_latest"`
	TDropoffEarliest float64         `json:"t_dropoff_earliest"`
}

func (r requestDTO) toModel() model.Request {
	return model.Request{
		ID: r.ID, Origin: r.Origin, Destination: r.Destination,
		TRequest: r.TRequest, TPickupLatest: r.TPickupLatest, TDropoffEarliest: r.TDropoffEarliest,
	}
}

type vehicleDTO struct {
	ID       model.VehicleID `json:"id"`
	Position model.Node      `json:"position"`
	Clock    float64         `json:"clock"`
	Onboard  []requestDTO    `json:"onboard"`
	Capacity int             `json:"capacity"`
}

// SolveRequestBody is the JSON body for POST /api/v1/solve.
type SolveRequestBody struct {
	Vehicles    []vehicleDTO `json:"vehicles"`
	Requests    []requestDTO `json:"requests"`
	CurrentTime float64      `json:"current_time"`
}

func (b SolveRequestBody) toBatch() service.Batch {
	onboardIndex := make(map[model.RequestID]model.Request)
	vehicles := make([]model.Vehicle, len(b.Vehicles))
	for i, v := range b.Vehicles {
		onboard := make([]model.RequestID, len(v.Onboard))
		for j, r := range v.Onboard {
			onboard[j] = r.ID
			onboardIndex[r.ID] = r.toModel()
		}
		vehicles[i] = model.Vehicle{ID: v.ID, Position: v.Position, Clock: v.Clock, Onboard: onboard, Capacity: v.Capacity}
	}
	requests := make([]model.Request, len(b.Requests))
	for i, r := range b.Requests {
		requests[i] = r.toModel()
	}
	return service.Batch{Vehicles: vehicles, Requests: requests, OnboardIndex: onboardIndex, CurrentTime: b.CurrentTime}
}

type stopDTO struct {
	Request model.RequestID `json:"request"`
	Kind    string          `json:"kind"`
	Node    model.Node      `json:"node"`
}

func stopsToDTO(stops []model.Stop) []stopDTO {
	out := make([]stopDTO, len(stops))
	for i, s := range stops {
		out[i] = stopDTO{Request: s.Request, Kind: s.Kind.String(), Node: s.Node}
	}
	return out
}

type assignmentDTO struct {
	Assignments   map[model.VehicleID][]model.RequestID `json:"assignments"`
	StopSequences map[model.VehicleID][]stopDTO         `json:"stop_sequences"`
}

type solveStats struct {
	ObjectiveValue float64 `json:"objective_value"`
	Optimal        bool    `json:"optimal"`
	ServedCount    int     `json:"served_count"`
	UnservedCount  int     `json:"unserved_count"`
}

// solveResponse mirrors spec.md's `{solve_id, assignment, unserved, stats}`
// shape for a completed solve.
type solveResponse struct {
	SolveID    int64           `json:"solve_id"`
	Assignment assignmentDTO   `json:"assignment"`
	Unserved   []model.RequestID `json:"unserved"`
	Stats      solveStats      `json:"stats"`
}

func toSolveResponse(a *model.Assignment) solveResponse {
	dto := assignmentDTO{
		Assignments:   make(map[model.VehicleID][]model.RequestID, len(a.Assignments)),
		StopSequences: make(map[model.VehicleID][]stopDTO, len(a.StopSequences)),
	}
	served := 0
	for vid, trip := range a.Assignments {
		dto.Assignments[vid] = trip.Requests
		served += len(trip.Requests)
	}
	for vid, seq := range a.StopSequences {
		dto.StopSequences[vid] = stopsToDTO(seq.Stops)
	}
	return solveResponse{
		SolveID:    a.RunID,
		Assignment: dto,
		Unserved:   a.UnservedRequests,
		Stats: solveStats{
			ObjectiveValue: a.ObjectiveValue,
			Optimal:        a.Optimal,
			ServedCount:    served,
			UnservedCount:  len(a.UnservedRequests),
		},
	}
}

// Solve handles POST /api/v1/solve: runs one batch through the
// pipeline and returns the resulting assignment.
func (h *SolveHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var body SolveRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	result, err := h.solver.Solve(r.Context(), body.toBatch())
	if err != nil {
		var invalid *model.InvalidInputError
		switch {
		case errors.Is(err, service.ErrEmptyBatch):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty_batch", "message": err.Error()})
		case errors.As(err, &invalid):
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": "invalid_input", "problems": invalid.Problems})
		default:
			log.Printf("[handler] solve error: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toSolveResponse(result))
}

// GetSolve handles GET /api/v1/solve/{id}: looks up a previously
// persisted solve run.
func (h *SolveHandler) GetSolve(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "persistence_disabled"})
		return
	}
	vars := mux.Vars(r)
	id, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id: must be an integer"})
		return
	}
	run, err := h.repo.GetRun(r.Context(), id)
	if errors.Is(err, repository.ErrSolveRunNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	if err != nil {
		log.Printf("[handler] get solve error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(run.AssignmentJSON)
}

// OracleCheckRequestBody is the JSON body for POST /api/v1/oracle/check.
type OracleCheckRequestBody struct {
	Vehicle     vehicleDTO   `json:"vehicle"`
	NewRequests []requestDTO `json:"new_requests"`
}

type oracleCheckResponse struct {
	Feasible  bool      `json:"feasible"`
	TotalCost float64   `json:"total_cost,omitempty"`
	Stops     []stopDTO `json:"stops,omitempty"`
}

// CheckFeasibility handles POST /api/v1/oracle/check: runs the
// feasibility oracle directly on one vehicle and a candidate request
// set, without touching the RV/RTV/assign stages.
func (h *SolveHandler) CheckFeasibility(w http.ResponseWriter, r *http.Request) {
	var body OracleCheckRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	onboard := make([]model.Request, len(body.Vehicle.Onboard))
	for i, r := range body.Vehicle.Onboard {
		onboard[i] = r.toModel()
	}
	onboardIDs := make([]model.RequestID, len(onboard))
	for i, r := range onboard {
		onboardIDs[i] = r.ID
	}
	vehicle := model.Vehicle{
		ID: body.Vehicle.ID, Position: body.Vehicle.Position, Clock: body.Vehicle.Clock,
		Onboard: onboardIDs, Capacity: body.Vehicle.Capacity,
	}
	newRequests := make([]model.Request, len(body.NewRequests))
	for i, r := range body.NewRequests {
		newRequests[i] = r.toModel()
	}

	seq, err := h.solver.CheckFeasibility(vehicle, onboard, newRequests)
	if err != nil {
		log.Printf("[handler] oracle check error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		return
	}
	if seq == nil {
		writeJSON(w, http.StatusOK, oracleCheckResponse{Feasible: false})
		return
	}
	writeJSON(w, http.StatusOK, oracleCheckResponse{Feasible: true, TotalCost: seq.TotalCost, Stops: stopsToDTO(seq.Stops)})
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
