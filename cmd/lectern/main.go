package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v5"
	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lectern-io/lectern/plugin/chunker"
	"github.com/lectern-io/lectern/plugin/courseloader"
	"github.com/lectern-io/lectern/plugin/llm"
	"github.com/lectern-io/lectern/plugin/vectorstore"
	"github.com/lectern-io/lectern/server/profile"
	"github.com/lectern-io/lectern/server/rag"
	apiv1 "github.com/lectern-io/lectern/server/router/api/v1"
	"github.com/lectern-io/lectern/store"
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Course transcript question answering over an agentic retrieval loop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	viper.SetDefault("addr", ":8080")
	viper.SetDefault("data", "./data")
	viper.SetDefault("docs", "./docs")
	viper.SetDefault("provider-base-url", llm.DefaultBaseURL)
	viper.SetDefault("model", "anthropic/claude-sonnet-4")
	viper.SetDefault("embedding-model", "openai/text-embedding-3-small")
	viper.SetDefault("chunk-size", 800)
	viper.SetDefault("chunk-overlap", 100)
	viper.SetDefault("max-results", 5)
	viper.SetDefault("max-history", 2)
	viper.SetDefault("temperature", 0.0)
	viper.SetDefault("max-tokens", 800)

	flags := rootCmd.PersistentFlags()
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("data", "./data", "directory for the persistent vector store")
	flags.String("docs", "./docs", "directory of course transcripts to ingest at startup")
	flags.String("provider-base-url", llm.DefaultBaseURL, "OpenAI-compatible provider endpoint")
	flags.String("model", "anthropic/claude-sonnet-4", "chat model")
	flags.String("embedding-model", "openai/text-embedding-3-small", "embedding model")
	for _, name := range []string{"addr", "data", "docs", "provider-base-url", "model", "embedding-model"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("lectern")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func serve(ctx context.Context) error {
	_ = godotenv.Load()

	p, err := profile.GetProfile()
	if err != nil {
		return fmt.Errorf("resolve profile: %w", err)
	}

	embed := chromem.NewEmbeddingFuncOpenAICompat(p.ProviderBaseURL, p.ProviderAPIKey, p.EmbeddingModel, nil)
	ck := chunker.New(chunker.WithChunkSize(p.ChunkSize), chunker.WithOverlap(p.ChunkOverlap))

	index, err := vectorstore.New(p.Data, embed, ck, p.MaxResults)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}

	if added, err := courseloader.New(index).LoadDir(ctx, p.Docs); err != nil {
		slog.Warn("transcript ingestion failed", "dir", p.Docs, "err", err)
	} else {
		slog.Info("index ready", "courses", index.CourseCount(), "chunks", index.ContentCount(), "new_courses", added)
	}

	provider := llm.New(p.ProviderBaseURL, p.ProviderAPIKey, p.Model,
		llm.WithTemperature(p.Temperature),
		llm.WithMaxTokens(p.MaxTokens),
	)

	registry := rag.NewRegistry()
	registry.Register(rag.NewSearchTool(index))

	sessions := store.New(p.MaxHistory)
	orchestrator := rag.NewOrchestrator(provider, registry, sessions)

	e := echo.New()
	apiv1.NewAPIV1Service(p, sessions, index, orchestrator).RegisterRoutes(e)

	srv := &http.Server{
		Addr:              p.Addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("listening", "addr", p.Addr, "model", p.Model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}
