package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydronote/groundwatch/internal/alerting"
	"github.com/hydronote/groundwatch/internal/api"
	"github.com/hydronote/groundwatch/internal/engine"
	"github.com/hydronote/groundwatch/internal/forecast"
	"github.com/hydronote/groundwatch/internal/middleware"
	"github.com/hydronote/groundwatch/internal/notify"
	"github.com/hydronote/groundwatch/internal/repository"
	"github.com/hydronote/groundwatch/internal/store"
	"github.com/hydronote/groundwatch/internal/synthetic"
)

func main() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	st, err := store.New(redisAddr)
	if err != nil {
		log.Fatal(err)
	}

	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("failed to close store: %v", err)
		}
	}()

	var repo repository.RunRepository
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		pgRepo, err := repository.NewPostgresRunRepository(dsn)
		if err != nil {
			log.Fatal(err)
		}
		repo = pgRepo

		defer func() {
			if err := pgRepo.Close(); err != nil {
				log.Printf("failed to close Postgres repository: %v", err)
			}
		}()
	}

	eng := engine.New(st, repo, 0)
	sink := notify.NewDispatcher(st, notify.NewEmailSenderFromEnv())
	forecasts := forecast.NewService(st, eng, sink)
	alerts := alerting.NewService(st, sink)

	if seed := os.Getenv("SEED"); seed != "" {
		seedDemoData(st, seed)
	}

	apiHandler := api.NewAPI(st, forecasts, alerts, repo)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", middleware.MetricsMiddleware(apiHandler))

	go startMetricsCollector(st)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		log.Printf("Connected to Redis at %s", redisAddr)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// seedDemoData fills an empty installation with deterministic fixtures. SEED
// holds the RNG seed; SEED_ORG_ID and SEED_WELLS adjust the fixture shape.
func seedDemoData(st *store.Store, seed string) {
	seedVal, err := strconv.ParseInt(seed, 10, 64)
	if err != nil {
		log.Fatalf("invalid SEED value %q: %v", seed, err)
	}

	orgID := os.Getenv("SEED_ORG_ID")
	if orgID == "" {
		orgID = "demo"
	}

	wellCount := 50
	if v := os.Getenv("SEED_WELLS"); v != "" {
		wellCount, err = strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid SEED_WELLS value %q: %v", v, err)
		}
	}

	gen := synthetic.NewGenerator(seedVal, orgID)
	wells, err := gen.Seed(context.Background(), st, wellCount)
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("Seeded %d wells for organization %s", len(wells), orgID)
}
