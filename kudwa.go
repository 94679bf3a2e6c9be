// Package kudwa implements an ontology extraction pipeline for financial
// documents: uploaded files are parsed to JSON, chunked and embedded, sampled
// down to a prompt-sized payload, and run through an extraction model whose
// output becomes reviewable ontology proposals. Approved proposals merge into
// a persistent ontology used to ground question answering.
package kudwa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdrago97/kudwa/chunker"
	"github.com/pdrago97/kudwa/llm"
	"github.com/pdrago97/kudwa/ontology"
	"github.com/pdrago97/kudwa/parser"
	"github.com/pdrago97/kudwa/store"
)

// Engine is the main entry point for the Kudwa ontology pipeline.
type Engine interface {
	// ProcessFile ingests a document: parse, chunk, embed, extract ontology
	// proposals. Skips if the content hash is already known.
	ProcessFile(ctx context.Context, path string, opts ...ProcessOption) (*ProcessResult, error)

	// Review approves or rejects a pending proposal. Approval merges the
	// payload into the ontology tables before marking the proposal.
	Review(ctx context.Context, proposalID int64, approve bool, reviewer string) (*ReviewResult, error)

	// Answer grounds a question on the approved ontology.
	Answer(ctx context.Context, question string) (*Answer, error)

	// Proposals lists proposals, optionally filtered by status.
	Proposals(ctx context.Context, status string) ([]store.Proposal, error)

	// PendingProposals lists proposals awaiting review.
	PendingProposals(ctx context.Context) ([]store.Proposal, error)

	// ListFiles returns all uploaded files.
	ListFiles(ctx context.Context) ([]store.File, error)

	// DeleteFile removes a file with its chunks, embeddings, and proposals.
	DeleteFile(ctx context.Context, fileID int64) error

	// Ontology returns a snapshot of the approved ontology.
	Ontology(ctx context.Context) (*OntologySnapshot, error)

	// Store returns the underlying store for diagnostic access.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// ProcessResult reports the outcome of a file ingestion.
type ProcessResult struct {
	FileID    int64  `json:"file_id"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Chunks    int    `json:"chunks"`
	Proposals int    `json:"proposals"`
	Skipped   int    `json:"skipped_items"`
}

// ReviewResult reports the outcome of a proposal review.
type ReviewResult struct {
	ProposalID int64  `json:"proposal_id"`
	Status     string `json:"status"`
	Merged     bool   `json:"merged"`
}

// Answer is the result of a grounded question.
type Answer struct {
	Text             string `json:"text"`
	ModelUsed        string `json:"model_used,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
}

// OntologySnapshot is the full approved ontology.
type OntologySnapshot struct {
	Entities  []store.Entity   `json:"entities"`
	Relations []store.Relation `json:"relations"`
	Instances []store.Instance `json:"instances"`
}

// ProcessOption configures ingestion behavior.
type ProcessOption func(*processOptions)

type processOptions struct {
	forceReprocess bool
	createdBy      string
}

// WithForceReprocess ingests even if the content hash is already known.
func WithForceReprocess() ProcessOption {
	return func(o *processOptions) { o.forceReprocess = true }
}

// WithCreatedBy attributes the generated proposals to a creator.
func WithCreatedBy(creator string) ProcessOption {
	return func(o *processOptions) { o.createdBy = creator }
}

// answerSystemPrompt frames the answer model as an analyst working only from
// the assembled ontology context.
const answerSystemPrompt = `You are a financial data analyst. Answer the user's question using ONLY the ontology context provided below. The context lists the known entities, their relationships, and sampled data instances.

If the context does not contain enough information to answer, say so plainly. Do not invent numbers or entities that are not in the context.

Context:
%s`

// fallbackAnswer is returned when no answer model is configured.
const fallbackAnswer = "I'm unable to generate an answer right now because no language model is configured. The ontology data is still being collected and reviewed; please try again once a model is available."

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	store     *store.Store
	answerLLM llm.Provider
	embedLLM  llm.Provider
	extractor *ontology.Extractor
	parsers   *parser.Registry
	chunkr    *chunker.Chunker
}

// New creates a Kudwa engine with the given configuration. Unconfigured LLM
// endpoints are allowed; the stages that need them degrade instead of
// failing (empty extraction results, fallback answers, no embeddings).
func New(cfg Config) (Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dbPath := cfg.resolveDBPath()

	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 1536
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.AnswerMaxTokens == 0 {
		cfg.AnswerMaxTokens = 1000
	}

	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	e := &engine{
		cfg:     cfg,
		store:   s,
		parsers: parser.NewRegistry(),
		chunkr: chunker.New(chunker.Config{
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
		}),
	}

	if cfg.Extraction.Configured() {
		extractLLM, err := llm.NewProvider(llm.Config{
			Provider: cfg.Extraction.Provider,
			Model:    cfg.Extraction.Model,
			BaseURL:  cfg.Extraction.BaseURL,
			APIKey:   cfg.Extraction.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating extraction provider: %w", err)
		}
		e.extractor = ontology.NewExtractor(extractLLM, cfg.Extraction.Model, cfg.Temperature)
	}

	if cfg.Answer.Configured() {
		e.answerLLM, err = llm.NewProvider(llm.Config{
			Provider: cfg.Answer.Provider,
			Model:    cfg.Answer.Model,
			BaseURL:  cfg.Answer.BaseURL,
			APIKey:   cfg.Answer.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating answer provider: %w", err)
		}
	}

	if cfg.Embedding.Configured() {
		e.embedLLM, err = llm.NewProvider(llm.Config{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	return e, nil
}

// ProcessFile runs a document through the full ingestion pipeline.
func (e *engine) ProcessFile(ctx context.Context, path string, opts ...ProcessOption) (*ProcessResult, error) {
	options := &processOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return nil, fmt.Errorf("hashing file: %w", err)
	}

	filename := filepath.Base(absPath)

	// Content-hash dedup: a re-upload of identical bytes is a no-op unless
	// forced, in which case the old row and its derived data are replaced.
	existing, err := e.store.GetFileBySHA256(ctx, hash)
	switch {
	case err == nil:
		if !options.forceReprocess {
			slog.Info("process: duplicate upload skipped",
				"file", filename, "file_id", existing.ID, "sha256", hash[:12])
			return &ProcessResult{
				FileID:    existing.ID,
				Filename:  existing.Filename,
				Status:    existing.Status,
				Duplicate: true,
			}, nil
		}
		if err := e.store.DeleteFile(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("replacing file: %w", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("checking for duplicate: %w", err)
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(absPath), "."))
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	fileID, err := e.store.InsertFile(ctx, store.File{
		Filename:  filename,
		Mime:      mimeForExt(format),
		SizeBytes: info.Size(),
		SHA256:    hash,
		Status:    "processing",
	})
	if err != nil {
		return nil, fmt.Errorf("inserting file: %w", err)
	}

	slog.Info("process: parsing", "file", filename, "format", format, "file_id", fileID)
	start := time.Now()

	doc, err := p.Parse(ctx, absPath)
	if err != nil {
		e.store.UpdateFileStatus(ctx, fileID, "error")
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	// Chunk and embed the plain-text rendering.
	chunks := e.chunkr.Chunk(doc.Text)
	chunkIDs, err := e.store.InsertChunks(ctx, fileID, chunks)
	if err != nil {
		e.store.UpdateFileStatus(ctx, fileID, "error")
		return nil, fmt.Errorf("inserting chunks: %w", err)
	}

	if e.embedLLM != nil && len(chunks) > 0 {
		embedStart := time.Now()
		if err := e.embedChunks(ctx, chunks, chunkIDs); err != nil {
			e.store.UpdateFileStatus(ctx, fileID, "error")
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		slog.Info("process: embeddings complete",
			"file", filename, "chunks", len(chunks),
			"elapsed", time.Since(embedStart).Round(time.Millisecond))
	}

	// Reduce the JSON payload and run extraction. A missing extraction
	// provider or malformed model output degrades to zero proposals; only a
	// failed provider call is fatal.
	reduced := ontology.ReducePayload(doc.Payload, e.cfg.MaxPayloadBytes, e.cfg.PayloadHardCap)

	result := ontology.EmptyResult()
	if e.extractor == nil {
		slog.Warn("process: no extraction provider configured, skipping extraction",
			"file", filename)
	} else {
		raw, err := e.extractor.Invoke(ctx, reduced, filename)
		if err != nil {
			e.store.UpdateFileStatus(ctx, fileID, "error")
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		result, err = ontology.ParseExtraction(raw)
		if err != nil {
			slog.Warn("process: unparseable extraction response, using empty result",
				"file", filename, "error", err)
		}
	}

	proposals, report := ontology.BuildProposals(result, strconv.FormatInt(fileID, 10))
	if report.Skipped > 0 {
		slog.Warn("process: malformed extraction items skipped",
			"file", filename, "skipped", report.Skipped)
	}

	for _, prop := range proposals {
		payload, err := prop.MarshalPayload()
		if err != nil {
			e.store.UpdateFileStatus(ctx, fileID, "error")
			return nil, fmt.Errorf("encoding proposal payload: %w", err)
		}
		if _, err := e.store.InsertProposal(ctx, fileID, prop.Type, payload, options.createdBy); err != nil {
			e.store.UpdateFileStatus(ctx, fileID, "error")
			return nil, fmt.Errorf("inserting proposal: %w", err)
		}
	}

	if err := e.store.UpdateFileStatus(ctx, fileID, "completed"); err != nil {
		return nil, fmt.Errorf("updating file status: %w", err)
	}

	slog.Info("process: file ready",
		"file", filename, "file_id", fileID,
		"chunks", len(chunks), "proposals", len(proposals),
		"entities", report.Entities, "relations", report.Relations, "instances", report.Instances,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &ProcessResult{
		FileID:    fileID,
		Filename:  filename,
		Status:    "completed",
		Chunks:    len(chunks),
		Proposals: len(proposals),
		Skipped:   report.Skipped,
	}, nil
}

// Review approves or rejects a pending proposal.
func (e *engine) Review(ctx context.Context, proposalID int64, approve bool, reviewer string) (*ReviewResult, error) {
	p, err := e.store.GetProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, proposalID)
		}
		return nil, err
	}
	if p.Status != store.StatusPending {
		return nil, fmt.Errorf("%w: %d is %s", ErrProposalReviewed, proposalID, p.Status)
	}

	if !approve {
		if err := e.store.UpdateProposalStatus(ctx, proposalID, store.StatusRejected, reviewer); err != nil {
			return nil, err
		}
		slog.Info("review: proposal rejected", "proposal_id", proposalID, "reviewer", reviewer)
		return &ReviewResult{ProposalID: proposalID, Status: store.StatusRejected}, nil
	}

	merged, err := e.store.MergeProposal(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("merging proposal: %w", err)
	}
	if !merged {
		// Relation or instance referencing an entity that was never
		// approved. The proposal is still marked so the queue drains.
		slog.Warn("review: proposal approved but not merged, unresolved entity reference",
			"proposal_id", proposalID, "type", p.Type)
	}

	if err := e.store.UpdateProposalStatus(ctx, proposalID, store.StatusApproved, reviewer); err != nil {
		return nil, err
	}
	slog.Info("review: proposal approved",
		"proposal_id", proposalID, "type", p.Type, "merged", merged, "reviewer", reviewer)
	return &ReviewResult{ProposalID: proposalID, Status: store.StatusApproved, Merged: merged}, nil
}

// Answer grounds a question on the approved ontology.
func (e *engine) Answer(ctx context.Context, question string) (*Answer, error) {
	snapshot, err := e.Ontology(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ontology: %w", err)
	}

	contextText := ontology.AssembleContext(snapshot.Entities, snapshot.Relations, snapshot.Instances)

	if e.answerLLM == nil {
		slog.Warn("answer: no answer provider configured, returning fallback")
		return &Answer{Text: fallbackAnswer}, nil
	}

	resp, err := e.answerLLM.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Answer.Model,
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(answerSystemPrompt, contextText)},
			{Role: "user", Content: question},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.AnswerMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMRequestFailed, err)
	}

	return &Answer{
		Text:             resp.Content,
		ModelUsed:        resp.Model,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}, nil
}

// Proposals lists proposals, optionally filtered by status.
func (e *engine) Proposals(ctx context.Context, status string) ([]store.Proposal, error) {
	return e.store.ListProposals(ctx, status)
}

// PendingProposals lists proposals awaiting review.
func (e *engine) PendingProposals(ctx context.Context) ([]store.Proposal, error) {
	return e.store.ListProposals(ctx, store.StatusPending)
}

// ListFiles returns all uploaded files.
func (e *engine) ListFiles(ctx context.Context) ([]store.File, error) {
	return e.store.ListFiles(ctx)
}

// DeleteFile removes a file and its derived data.
func (e *engine) DeleteFile(ctx context.Context, fileID int64) error {
	err := e.store.DeleteFile(ctx, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrFileNotFound, fileID)
	}
	return err
}

// Ontology returns the approved ontology snapshot.
func (e *engine) Ontology(ctx context.Context) (*OntologySnapshot, error) {
	entities, err := e.store.GetEntities(ctx)
	if err != nil {
		return nil, err
	}
	relations, err := e.store.GetRelations(ctx)
	if err != nil {
		return nil, err
	}
	instances, err := e.store.GetInstances(ctx)
	if err != nil {
		return nil, err
	}
	return &OntologySnapshot{
		Entities:  orEmptySlice(entities),
		Relations: orEmptySlice(relations),
		Instances: orEmptySlice(instances),
	}, nil
}

// Store returns the underlying store for diagnostic access.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	return e.store.Close()
}

// maxEmbedChars bounds a single text sent to the embedding model. Embedding
// models typically allow 8192 tokens; ~24000 chars leaves headroom for
// tokenisers where the token/char ratio is worse than English.
const maxEmbedChars = 24000

func truncateForEmbed(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := strings.LastIndex(text[:maxEmbedChars], " ")
	if cut <= 0 {
		cut = maxEmbedChars
	}
	return text[:cut]
}

// embedChunks generates embeddings in batches. A failed batch falls back to
// per-text embedding so one oversized text does not lose the whole batch.
func (e *engine) embedChunks(ctx context.Context, chunks []string, chunkIDs []int64) error {
	const batchSize = 32
	var failed int

	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = truncateForEmbed(chunks[j])
		}

		embeddings, err := e.embedLLM.Embed(ctx, texts)
		if err != nil {
			slog.Warn("embedding batch failed, falling back to individual",
				"batch_start", i, "batch_end", end, "error", err)
			for j, text := range texts {
				single, serr := e.embedLLM.Embed(ctx, []string{text})
				if serr != nil {
					slog.Warn("embedding single text failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
					continue
				}
				if len(single) == 0 || len(single[0]) == 0 {
					failed++
					continue
				}
				if serr := e.store.InsertEmbedding(ctx, chunkIDs[i+j], single[0]); serr != nil {
					slog.Warn("storing embedding failed",
						"chunk_id", chunkIDs[i+j], "error", serr)
					failed++
				}
			}
			continue
		}

		for j, emb := range embeddings {
			if err := e.store.InsertEmbedding(ctx, chunkIDs[i+j], emb); err != nil {
				slog.Warn("storing embedding failed",
					"chunk_id", chunkIDs[i+j], "error", err)
				failed++
			}
		}
	}

	if failed == len(chunks) && len(chunks) > 0 {
		return fmt.Errorf("all %d chunks failed embedding", len(chunks))
	}
	if failed > 0 {
		slog.Warn("some embeddings failed", "failed", failed, "total", len(chunks))
	}
	return nil
}

// mimeForExt maps a file extension to a MIME type, with fallbacks for the
// formats the registry handles that the platform table may not know.
func mimeForExt(format string) string {
	if t := mime.TypeByExtension("." + format); t != "" {
		return t
	}
	switch format {
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "csv":
		return "text/csv"
	case "json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
