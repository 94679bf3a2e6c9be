package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pdrago97/kudwa"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := kudwa.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("KUDWA_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KUDWA_EXTRACTION_PROVIDER"); v != "" {
		cfg.Extraction.Provider = v
	}
	if v := os.Getenv("KUDWA_EXTRACTION_MODEL"); v != "" {
		cfg.Extraction.Model = v
	}
	if v := os.Getenv("KUDWA_EXTRACTION_BASE_URL"); v != "" {
		cfg.Extraction.BaseURL = v
	}
	if v := os.Getenv("KUDWA_EXTRACTION_API_KEY"); v != "" {
		cfg.Extraction.APIKey = v
	}
	if v := os.Getenv("KUDWA_ANSWER_PROVIDER"); v != "" {
		cfg.Answer.Provider = v
	}
	if v := os.Getenv("KUDWA_ANSWER_MODEL"); v != "" {
		cfg.Answer.Model = v
	}
	if v := os.Getenv("KUDWA_ANSWER_BASE_URL"); v != "" {
		cfg.Answer.BaseURL = v
	}
	if v := os.Getenv("KUDWA_ANSWER_API_KEY"); v != "" {
		cfg.Answer.APIKey = v
	}
	if v := os.Getenv("KUDWA_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("KUDWA_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("KUDWA_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("KUDWA_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	// Fallback: the OpenAI key covers every endpoint using that provider.
	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		if cfg.Extraction.APIKey == "" && cfg.Extraction.Provider == "openai" {
			cfg.Extraction.APIKey = openaiKey
		}
		if cfg.Answer.APIKey == "" && cfg.Answer.Provider == "openai" {
			cfg.Answer.APIKey = openaiKey
		}
		if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
			cfg.Embedding.APIKey = openaiKey
		}
	}

	apiKey := os.Getenv("KUDWA_API_KEY")
	corsOrigins := os.Getenv("KUDWA_CORS_ORIGINS")

	engine, err := kudwa.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("GET /files", h.handleListFiles)
	mux.HandleFunc("DELETE /files/{id}", h.handleDeleteFile)
	mux.HandleFunc("GET /proposals", h.handleListProposals)
	mux.HandleFunc("GET /proposals/pending", h.handlePendingProposals)
	mux.HandleFunc("POST /proposals/{id}/approve", h.handleApproveProposal)
	mux.HandleFunc("POST /proposals/{id}/reject", h.handleRejectProposal)
	mux.HandleFunc("GET /ontology", h.handleOntology)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // uploads with extraction can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
