// Package main runs the workouts MCP server over stdio (for local MCP clients).
// The same server is mounted on the service at /mcp when mcp_enabled is set.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/2beens/gymtracker/internal/cache"
	"github.com/2beens/gymtracker/internal/config"
	workoutsmcp "github.com/2beens/gymtracker/internal/mcp"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/internal/workouts/filestore"
	"github.com/2beens/gymtracker/internal/workouts/sqlitestore"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "", "path to TOML config file, empty for the local data files")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*env, *configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var store workouts.Store
	switch cfg.StorageDriver {
	case config.StorageDriverSQLite:
		sqliteStore, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite store: %v", err)
		}
		store = sqliteStore
	case config.StorageDriverFile:
		store = filestore.NewStore(cfg.DataDir, cfg.CatalogPath)
	default:
		log.Fatalf("storage driver [%s] not supported over stdio, use the service /mcp endpoint", cfg.StorageDriver)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	service := workouts.NewService(workouts.NewServiceParams{
		Store: store,
		CatalogCache: cache.NewCatalogCache(
			cfg.CatalogCacheSizeMB*1024*1024,
			time.Duration(cfg.CatalogCacheTTLSeconds)*time.Second,
		),
	})
	server := workoutsmcp.NewServer(service)

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatal(err)
	}
}
