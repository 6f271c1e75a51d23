// Command ingestd consumes ingest requests from NATS and runs them through
// the ingestion pipeline into Qdrant and, optionally, Neo4j.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/SiteSageAI/sitesage-mvp/engine/fetch"
	"github.com/SiteSageAI/sitesage-mvp/engine/graph"
	"github.com/SiteSageAI/sitesage-mvp/engine/ingest"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/metrics"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

const vectorDims = 768 // nomic-embed-text

var met = metrics.New()

var (
	mRequestsTotal = met.Counter("sitesage_ingestd_requests_total", "Ingest requests consumed")
	mErrorsTotal   = met.Counter("sitesage_ingestd_store_errors_total", "Vector store writes that failed")
	mChunksTotal   = met.Counter("sitesage_ingestd_chunks_inserted_total", "Chunks inserted")
	mStoreDur      = met.Histogram("sitesage_ingestd_store_duration_seconds", "Vector store write latency", nil)
)

func main() {
	var (
		natsURL     = flag.String("nats", nats.DefaultURL, "NATS server URL")
		ollamaURL   = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel  = flag.String("model", "nomic-embed-text", "Ollama embedding model")
		qdrantAddr  = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection  = flag.String("collection", "sitesage", "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", "", "Neo4j bolt URL (empty disables the link graph)")
		neo4jUser   = flag.String("neo4j-user", "neo4j", "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", "password", "Neo4j password")
		chunkCount  = flag.Int("chunks", ingest.DefaultChunkCount, "fixed chunk count per page")
		workers     = flag.Int("embed-workers", 4, "concurrent embedding calls per page")
		metricsPort = flag.Int("metrics-port", 9091, "metrics listen port")
	)
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met.ServeAsync(*metricsPort)

	// Connect NATS
	nc, err := nats.Connect(*natsURL, nats.Name("sitesage-ingestd"))
	if err != nil {
		log.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer nc.Drain()
	log.Info("connected to NATS", "url", *natsURL)

	// Connect Qdrant
	vs, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		log.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, vectorDims); err != nil {
		log.Error("qdrant ensure collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Qdrant", "collection", *collection, "dims", vectorDims)

	// Link graph (optional)
	var linkGraph ingest.LinkRecorder
	if *neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(*neo4jURL, neo4j.BasicAuth(*neo4jUser, *neo4jPass, ""))
		if err != nil {
			log.Error("neo4j connect failed", "error", err)
			os.Exit(1)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			log.Error("neo4j verify failed", "error", err)
			os.Exit(1)
		}
		linkGraph = graph.New(driver)
		log.Info("connected to Neo4j")
	}

	deps := ingest.Deps{
		Fetcher:  fetch.New(fetch.DefaultConfig()),
		Embedder: ollama.NewEmbedClient(*ollamaURL, *embedModel),
		Store:    &meteredStore{inner: vs},
		Graph:    linkGraph,
		Logger:   log,
	}
	svc := ingest.New(deps, ingest.Options{ChunkCount: *chunkCount, EmbedWorkers: *workers})

	sub, err := svc.StartConsumer(nc)
	if err != nil {
		log.Error("subscribe failed", "error", err)
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	log.Info("consuming ingest requests", "subject", ingest.Subject, "chunks", *chunkCount)

	<-ctx.Done()
	log.Info("shutting down")
}

// meteredStore counts store traffic on its way to Qdrant.
type meteredStore struct {
	inner *semantic.VectorStore
}

func (m *meteredStore) Exists(ctx context.Context, id string) (bool, error) {
	return m.inner.Exists(ctx, id)
}

func (m *meteredStore) Upsert(ctx context.Context, records []semantic.VectorRecord) error {
	start := time.Now()
	err := m.inner.Upsert(ctx, records)
	mStoreDur.Since(start)
	if err != nil {
		mErrorsTotal.Inc()
		return err
	}
	mChunksTotal.Add(int64(len(records)))
	return nil
}

func (m *meteredStore) DeleteBySourceURL(ctx context.Context, sourceURL string) error {
	mRequestsTotal.Inc()
	return m.inner.DeleteBySourceURL(ctx, sourceURL)
}
