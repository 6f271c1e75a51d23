// Command ask answers a single question from the command line against the
// indexed pages. Useful for smoke-testing a deployment without the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SiteSageAI/sitesage-mvp/engine/rag"
	"github.com/SiteSageAI/sitesage-mvp/engine/semantic"
	"github.com/SiteSageAI/sitesage-mvp/pkg/ollama"
)

func main() {
	var (
		ollamaURL  = flag.String("ollama", "http://localhost:11434", "Ollama base URL")
		embedModel = flag.String("embed-model", "nomic-embed-text", "Ollama embedding model")
		chatModel  = flag.String("chat-model", "llama3.1", "Ollama chat model")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "sitesage", "Qdrant collection name")
		topK       = flag.Int("k", 3, "number of chunks to ground the answer on")
		timeout    = flag.Duration("timeout", 2*time.Minute, "overall deadline")
	)
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [flags] <question>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		fmt.Fprintln(os.Stderr, "qdrant connect failed:", err)
		os.Exit(1)
	}
	defer store.Close()

	opts := rag.DefaultOptions()
	opts.TopK = *topK
	svc := rag.New(
		ollama.NewEmbedClient(*ollamaURL, *embedModel),
		store,
		ollama.NewChatClient(*ollamaURL, *chatModel, 0.2),
		nil,
		opts,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	answer, err := svc.Ask(ctx, question)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ask failed:", err)
		os.Exit(1)
	}

	fmt.Println(answer.Text)
	if answer.PrimaryURL != "" {
		fmt.Println()
		fmt.Println("Primary source:", answer.PrimaryURL)
		for _, s := range answer.Sources {
			fmt.Printf("  - %s (chunk %d, score %.3f)\n", s.URL, s.ChunkIndex, s.Score)
		}
	}
}
