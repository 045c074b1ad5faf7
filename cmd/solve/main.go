// Command solve runs the ride pooling assignment pipeline headlessly,
// against either a synthetic fixture or a JSON batch file, and prints
// a console report in the style of brt08/backend/driver's "Simulation
// Report" — no HTTP server, no database, no Redis.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shivamshaw23/ridepool/internal/fixtures"
	"github.com/shivamshaw23/ridepool/internal/model"
	"github.com/shivamshaw23/ridepool/internal/roadgraph"
	"github.com/shivamshaw23/ridepool/internal/service"
)

// fixtureFile is the on-disk shape accepted by -fixture: a pre-built
// batch of vehicles and requests over the CLI's default synthetic
// grid. There is no live RoadGraph provider in this mode, so a
// fixture file cannot name arbitrary nodes — only ones the default
// grid (internal/fixtures.DefaultGridConfig) actually lays out.
type fixtureFile struct {
	Vehicles []model.Vehicle `json:"vehicles"`
	Requests []model.Request `json:"requests"`
}

func main() {
	capacity := flag.Int("capacity", 2, "seats available per vehicle for newly generated fixtures")
	omega := flag.Float64("omega", 600, "pooling window in seconds (t_pickup_latest = t_request + omega)")
	maxDelay := flag.Float64("max-delay", 600, "maximum tolerated drop-off delay in seconds")
	pruneTopK := flag.Int("prune-top-k", 30, "RV graph degree cap: cheapest edges kept per vehicle and per request")
	costPenalty := flag.Float64("cost-penalty", 1000, "objective penalty charged per unserved request")
	timeLimit := flag.Float64("time-limit", 30, "branch-and-bound wall-clock budget in seconds")
	gap := flag.Float64("gap", 0.001, "acceptable optimality gap before the exact solver stops early")
	fixturePath := flag.String("fixture", "", "path to a JSON fixture of vehicles+requests (default: generate one)")
	numVehicles := flag.Int("num-vehicles", 8, "vehicles to generate when -fixture is not set")
	numRequests := flag.Int("num-requests", 20, "requests to generate when -fixture is not set")
	seed := flag.Int64("seed", 0, "RNG seed for fixture generation (0 = derive from current time)")
	reportPath := flag.String("report", "", "if set, write a CSV report to this file or directory (timestamp appended)")
	flag.Parse()

	tunables := model.Tunables{
		Capacity:         *capacity,
		OmegaSeconds:     *omega,
		MaxDelaySeconds:  *maxDelay,
		PruneTopK:        *pruneTopK,
		CostPenalty:      *costPenalty,
		TimeLimitSeconds: *timeLimit,
		Gap:              *gap,
	}

	grid := fixtures.BuildGrid(fixtures.DefaultGridConfig())
	roadGraph := roadgraph.RoadGraph(grid.Graph)

	var vehicles []model.Vehicle
	var requests []model.Request
	onboardIndex := make(map[model.RequestID]model.Request)

	if *fixturePath != "" {
		f, err := os.Open(*fixturePath)
		if err != nil {
			log.Fatalf("open fixture: %v", err)
		}
		defer f.Close()
		var ff fixtureFile
		if err := json.NewDecoder(f).Decode(&ff); err != nil {
			log.Fatalf("parse fixture %s: %v", *fixturePath, err)
		}
		vehicles, requests = ff.Vehicles, ff.Requests
	} else {
		genSeed := *seed
		if genSeed == 0 {
			genSeed = time.Now().UnixNano()
		}
		gen := fixtures.NewGenerator(roadGraph, grid.Nodes, genSeed, *omega, *maxDelay)
		var err error
		vehicles, onboardIndex, err = gen.GenerateVehicles(*numVehicles, *capacity)
		if err != nil {
			log.Fatalf("generate vehicles: %v", err)
		}
		requests, err = gen.GenerateRequests(*numRequests)
		if err != nil {
			log.Fatalf("generate requests: %v", err)
		}
		log.Printf("generated fixture: seed=%d vehicles=%d requests=%d", genSeed, len(vehicles), len(requests))
	}

	svc := service.NewSolverService(roadGraph, nil, tunables)
	start := time.Now()
	result, err := svc.Solve(context.Background(), service.Batch{
		Vehicles:     vehicles,
		Requests:     requests,
		OnboardIndex: onboardIndex,
	})
	if err != nil {
		log.Fatalf("solve: %v", err)
	}
	elapsed := time.Since(start)

	if *reportPath != "" {
		writeCSVReport(*reportPath, vehicles, requests, result)
	}
	printConsoleReport(vehicles, requests, result, elapsed)
}

func printConsoleReport(vehicles []model.Vehicle, requests []model.Request, result *model.Assignment, elapsed time.Duration) {
	fmt.Println("=== Solve Report ===")
	fmt.Printf("Vehicles: %d\n", len(vehicles))
	fmt.Printf("Requests: %d\n", len(requests))
	fmt.Printf("Served: %d\n", len(requests)-len(result.UnservedRequests))
	fmt.Printf("Unserved: %d\n", len(result.UnservedRequests))
	fmt.Printf("Objective value: %.2f\n", result.ObjectiveValue)
	fmt.Printf("Optimal: %v\n", result.Optimal)
	fmt.Printf("Elapsed: %s\n", elapsed.Round(time.Millisecond))
	for vid, trip := range result.Assignments {
		seq := result.StopSequences[vid]
		fmt.Printf("Vehicle %s: trip %s (%d requests) cost=%.2f\n", vid, trip.ID, len(trip.Requests), seq.TotalCost)
	}
	if len(result.UnservedRequests) > 0 {
		fmt.Printf("Unserved requests: %v\n", result.UnservedRequests)
	}
}

func writeCSVReport(path string, vehicles []model.Vehicle, requests []model.Request, result *model.Assignment) {
	ts := time.Now().Format("20060102-150405")
	outPath := path
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, fmt.Sprintf("report-%s.csv", ts))
	} else {
		ext := filepath.Ext(outPath)
		base := outPath[:len(outPath)-len(ext)]
		outPath = fmt.Sprintf("%s-%s%s", base, ts, ext)
	}

	f, err := os.Create(outPath)
	if err != nil {
		log.Printf("report: create failed: %v", err)
		return
	}
	defer f.Close()

	fmt.Fprintln(f, "section,vehicle_id,trip_id,requests_served,cost,objective_value,optimal,served,unserved,timestamp")
	for vid, trip := range result.Assignments {
		seq := result.StopSequences[vid]
		fmt.Fprintf(f, "vehicle,%s,%s,%d,%.2f,,,,,%s\n", vid, trip.ID, len(trip.Requests), seq.TotalCost, ts)
	}
	served := len(requests) - len(result.UnservedRequests)
	fmt.Fprintf(f, "summary,,,,,%.2f,%v,%d,%d,%s\n", result.ObjectiveValue, result.Optimal, served, len(result.UnservedRequests), ts)
	log.Printf("CSV report written to %s", outPath)
}
