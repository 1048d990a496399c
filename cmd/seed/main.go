// Command seed fills the database with demo blog content.
package main

import (
	"context"
	"flag"
	"os"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 10, "Number of reader accounts to create")
	numPosts := flag.Int("posts", 30, "Number of posts to create")
	numMoments := flag.Int("moments", 15, "Number of moments to create")
	shouldClean := flag.Bool("clean", false, "Remove existing content before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible content (0 picks one)")
	flag.Parse()

	log := middleware.Logger

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() && *shouldClean {
		log.Error("refusing to clean a production database")
		os.Exit(1)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if _, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		NumMoments:  *numMoments,
		ShouldClean: *shouldClean,
		Seed:        *randSeed,
	}); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	log.Info("all generated accounts use the same password", "password", seed.DemoPassword)
}
