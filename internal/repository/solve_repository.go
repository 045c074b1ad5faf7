package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shivamshaw23/ridepool/internal/model"
)

// ErrSolveRunNotFound is returned when a solve run id has no matching row.
var ErrSolveRunNotFound = errors.New("solve run not found")

// SolveRepository persists solve runs and their resulting assignments.
// The batch and assignment are stored as JSONB: neither has a natural
// fixed relational shape (a request set varies in size, a Trip's
// request membership varies in size), so, unlike RideRepository's
// column-per-field ride_requests table, a document column is the
// better fit here — the same tradeoff PostGIS geometry columns make
// for spatial data the relational model doesn't represent well.
type SolveRepository struct {
	pool *pgxpool.Pool
}

// NewSolveRepository creates a repository backed by the given PG pool.
func NewSolveRepository(pool *pgxpool.Pool) *SolveRepository {
	return &SolveRepository{pool: pool}
}

// SolveRun is one persisted solve: the input batch, the resulting
// assignment, and bookkeeping timestamps.
type SolveRun struct {
	ID             int64
	VehicleCount   int
	RequestCount   int
	ObjectiveValue float64
	Optimal        bool
	UnservedCount  int
	AssignmentJSON []byte
	CreatedAt      time.Time
}

// assignmentPayload is the JSON shape an Assignment is stored as —
// map keys are strings (Postgres JSONB has no notion of a typed map
// key), so VehicleID is marshaled to its string form directly.
type assignmentPayload struct {
	Assignments      map[string]string        `json:"assignments"` // vehicle -> trip id
	StopSequences    map[string]stopSequence   `json:"stop_sequences"`
	UnservedRequests []model.RequestID         `json:"unserved_requests"`
	ObjectiveValue   float64                   `json:"objective_value"`
	Optimal          bool                      `json:"optimal"`
	Trips            map[string][]model.RequestID `json:"trips"` // trip id -> requests
}

type stopSequence struct {
	Stops     []model.Stop `json:"stops"`
	TotalCost float64      `json:"total_cost"`
}

func toPayload(a *model.Assignment) assignmentPayload {
	p := assignmentPayload{
		Assignments:      make(map[string]string, len(a.Assignments)),
		StopSequences:    make(map[string]stopSequence, len(a.StopSequences)),
		UnservedRequests: a.UnservedRequests,
		ObjectiveValue:   a.ObjectiveValue,
		Optimal:          a.Optimal,
		Trips:            make(map[string][]model.RequestID, len(a.Assignments)),
	}
	for vid, trip := range a.Assignments {
		p.Assignments[string(vid)] = trip.ID
		p.Trips[trip.ID] = trip.Requests
	}
	for vid, seq := range a.StopSequences {
		p.StopSequences[string(vid)] = stopSequence{Stops: seq.Stops, TotalCost: seq.TotalCost}
	}
	return p
}

// SaveRun inserts a new solve run row and returns its generated id.
// vehicleCount and requestCount are the batch's sizes, recorded
// alongside the assignment for operational querying (e.g. "how big
// were the batches that timed out").
func (r *SolveRepository) SaveRun(ctx context.Context, vehicleCount, requestCount int, result *model.Assignment) (int64, error) {
	payload, err := json.Marshal(toPayload(result))
	if err != nil {
		return 0, fmt.Errorf("marshal assignment: %w", err)
	}

	query := `
		INSERT INTO solve_runs (vehicle_count, request_count, objective_value, optimal, unserved_count, assignment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id int64
	err = r.pool.QueryRow(ctx, query, vehicleCount, requestCount, result.ObjectiveValue, result.Optimal, len(result.UnservedRequests), payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert solve run: %w", err)
	}
	return id, nil
}

// GetRun fetches a previously persisted solve run by id.
func (r *SolveRepository) GetRun(ctx context.Context, id int64) (*SolveRun, error) {
	query := `
		SELECT id, vehicle_count, request_count, objective_value, optimal, unserved_count, assignment, created_at
		FROM solve_runs
		WHERE id = $1
	`
	run := &SolveRun{ID: id}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.VehicleCount, &run.RequestCount, &run.ObjectiveValue, &run.Optimal, &run.UnservedCount, &run.AssignmentJSON, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSolveRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get solve run %d: %w", id, err)
	}
	return run, nil
}
