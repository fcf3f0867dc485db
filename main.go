package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flowbench-sim/flowbench/internal/api"
	"github.com/flowbench-sim/flowbench/internal/config"
	"github.com/flowbench-sim/flowbench/internal/db"
	"github.com/flowbench-sim/flowbench/internal/flow"
	"github.com/flowbench-sim/flowbench/internal/mask"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "flowbench.db", "SQLite database file")
	migrationsDir = flag.String("migrations", "migrations", "Migrations directory")
	maskFile      = flag.String("mask", "", "Obstacle mask image (optional; empty grid if unset)")
	configFile    = flag.String("config", "", "Tuning config JSON file (optional)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var tuning *config.Tuning
	if *configFile != "" {
		var err error
		tuning, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
		log.Printf("loaded tuning config from %s", *configFile)
	}

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()
	if err := store.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	grid, err := initialGrid(tuning)
	if err != nil {
		log.Fatalf("failed to build initial grid: %v", err)
	}
	log.Printf("initial grid: %dx%d", grid.Width, grid.Height)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(api.ServerConfig{
		Address: *listen,
		Store:   store,
		Tuning:  tuning,
		Grid:    grid,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(ctx); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()
	log.Print("shutdown complete")
}

// initialGrid builds the startup grid, either from a mask image or as
// an empty rectangle at the configured dimensions.
func initialGrid(tuning *config.Tuning) (*flow.Grid, error) {
	width := tuning.GetGridWidth()
	height := tuning.GetGridHeight()

	if *maskFile == "" {
		return flow.NewGrid(width, height)
	}

	f, err := os.Open(*maskFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := mask.Decode(f, width, height, tuning.GetMaskThreshold())
	if err != nil {
		return nil, err
	}
	return flow.NewGridFromMask(m)
}
