// Package main implements the SiteSage API server: it answers questions
// over indexed pages and enqueues ingest requests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/SiteSageAI/sitesage-mvp/engine/domain"
	"github.com/SiteSageAI/sitesage-mvp/engine/graph"
	"github.com/SiteSageAI/sitesage-mvp/engine/ingest"
	"github.com/SiteSageAI/sitesage-mvp/engine/rag"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/metrics"
	"github.com/SiteSageAI/sitesage-mvp/pkg/mid"
	"github.com/SiteSageAI/sitesage-mvp/pkg/natsutil"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port        string
	NATSURL     string
	QdrantURL   string
	Collection  string
	OllamaURL   string
	EmbedModel  string
	ChatModel   string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	CORSOrigin  string
	RateRPS     float64
	MetricsPort int
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", "sitesage"),
		OllamaURL:   envOr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:  envOr("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		ChatModel:   envOr("OLLAMA_CHAT_MODEL", "llama3.1"),
		Neo4jURL:    envOr("NEO4J_URL", ""),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		RateRPS:     20,
		MetricsPort: 9090,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var met = metrics.New()

var (
	mAskTotal    = met.Counter("sitesage_api_ask_total", "Questions answered")
	mAskErrors   = met.Counter("sitesage_api_ask_errors_total", "Questions that failed")
	mIngestTotal = met.Counter("sitesage_api_ingest_enqueued_total", "Ingest requests enqueued")
	mAskDur      = met.Histogram("sitesage_api_ask_duration_seconds", "Answer latency", nil)
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("sitesage-api"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Link graph (optional) ---
	var related rag.RelatedFinder
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		related = graph.New(driver)
	}

	// --- Retrieval service ---
	ragSvc := rag.New(
		ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
		vectorStore,
		ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel, 0.2),
		related,
		rag.DefaultOptions(),
		logger,
	)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(ragSvc, logger))
	mux.HandleFunc("POST /api/ingest", handleIngest(nc, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(cfg.RateRPS, int(cfg.RateRPS)*2),
		mid.OTel("sitesage-api"),
	)

	met.ServeAsync(cfg.MetricsPort)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer     string       `json:"answer"`
	PrimaryURL string       `json:"primary_url"`
	Sources    []rag.Source `json:"sources"`
	Related    []string     `json:"related_urls,omitempty"`
}

func handleAsk(ragSvc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start := time.Now()
		answer, err := ragSvc.Ask(r.Context(), req.Question)
		mAskDur.Since(start)
		if err != nil {
			mAskErrors.Inc()
			if errors.Is(err, domain.ErrInvalidQuestion) {
				writeError(w, http.StatusBadRequest, "question is required")
				return
			}
			logger.Error("ask failed", "err", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		mAskTotal.Inc()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{
			Answer:     answer.Text,
			PrimaryURL: answer.PrimaryURL,
			Sources:    answer.Sources,
			Related:    answer.RelatedURLs,
		})
	}
}

// IngestRequest is the JSON body for POST /api/ingest.
type IngestRequest struct {
	URL   string `json:"url"`
	Depth int    `json:"depth"`
}

// publisher is the NATS surface the ingest handler needs.
type publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

type natsPublisher struct{ nc *nats.Conn }

func (p natsPublisher) Publish(ctx context.Context, subject string, v any) error {
	return natsutil.Publish(ctx, p.nc, subject, v)
}

func handleIngest(nc *nats.Conn, logger *slog.Logger) http.HandlerFunc {
	return handleIngestWith(natsPublisher{nc: nc}, logger)
}

func handleIngestWith(pub publisher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := domain.ValidateURL(req.URL); err != nil {
			writeError(w, http.StatusBadRequest, "url must be absolute http(s)")
			return
		}
		if req.Depth < 0 {
			req.Depth = 0
		}

		msg := domain.IngestRequest{URL: req.URL, Depth: req.Depth}
		if err := pub.Publish(r.Context(), ingest.Subject, msg); err != nil {
			logger.Error("ingest enqueue failed", "url", req.URL, "err", err)
			writeError(w, http.StatusServiceUnavailable, "ingest queue unavailable")
			return
		}
		mIngestTotal.Inc()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "queued", "url": req.URL})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
