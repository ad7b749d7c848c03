// debug-user prints how a user's profile is derived and, with -k, the recommendations it produces.
//
// Usage: debug-user [-k 10] <user-id>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/embeddings"
	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/observability"
	"github.com/formbricks/recommender/internal/repository"
	"github.com/formbricks/recommender/internal/service"
	"github.com/formbricks/recommender/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

type report struct {
	Profile         *models.ProfileExplanation  `json:"profile"`
	Recommendations *models.UserRecommendations `json:"recommendations,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	k := flag.Int("k", 0, "also compute this many recommendations (needs the pgvector index)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: debug-user [-k n] <user-id>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()

		return exitUsage
	}

	userID, err := strconv.ParseInt(flag.Arg(0), 10, 64)
	if err != nil || userID <= 0 {
		fmt.Fprintf(os.Stderr, "invalid user id %q\n", flag.Arg(0))

		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)

		return exitFailure
	}

	slog.SetDefault(observability.NewLogger(os.Stderr, cfg.LogLevel))

	if *k > 0 && cfg.VectorIndexBackend != config.VectorIndexPgvector {
		slog.Error("-k needs VECTOR_INDEX_BACKEND=pgvector")

		return exitUsage
	}

	ctx := context.Background()

	opts := []database.PoolOption{}
	if cfg.VectorIndexBackend == config.VectorIndexPgvector {
		opts = append(opts, database.WithVectorTypes())
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, opts...)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	stack, err := embeddings.NewStackFromConfig(ctx, cfg, nil, slog.Default())
	if err != nil {
		slog.Error("Failed to create embedding client", "error", err)

		return exitFailure
	}
	defer stack.Close() //nolint:errcheck // process exits right after

	products := repository.NewProductsRepository(db)
	activity := service.NewActivityService(service.ActivityServiceParams{
		Activity: repository.NewActivityRepository(db),
		Products: products,
		Params:   cfg.Ranking,
	})
	profiles := service.NewProfileService(service.ProfileServiceParams{
		Activity:   activity,
		Products:   products,
		Embeddings: stack.Client,
		Params:     cfg.Ranking,
	})

	out := report{}

	out.Profile, err = profiles.ExplainProfile(ctx, userID)
	if err != nil {
		slog.Error("Failed to explain profile", "user_id", userID, "error", err)

		return exitFailure
	}

	if *k > 0 {
		index, err := repository.NewProductVectorsRepository(db, cfg.VectorCollection)
		if err != nil {
			slog.Error("Failed to open vector index", "error", err)

			return exitFailure
		}

		recs := service.NewRecommendationService(service.RecommendationServiceParams{
			Products:   products,
			Index:      index,
			Embeddings: stack.Client,
			Profiles:   profiles,
			Params:     cfg.Ranking,
		})

		out.Recommendations, err = recs.RecommendForUser(ctx, userID, *k)
		if err != nil {
			slog.Error("Failed to recommend", "user_id", userID, "error", err)

			return exitFailure
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		slog.Error("Failed to write report", "error", err)

		return exitFailure
	}

	return exitSuccess
}
