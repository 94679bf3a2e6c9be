package kudwa

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configuration for the Kudwa ontology engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.kudwa/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "kudwa".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. Options: "home" (default) uses ~/.kudwa/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers. Extraction drives the ontology-extraction call,
	// Answer drives the chat/question-answering call, Embedding drives
	// chunk embeddings. Any of them may be left unconfigured (empty
	// Provider); the affected stage degrades instead of failing.
	Extraction LLMConfig `json:"extraction" yaml:"extraction"`
	Answer     LLMConfig `json:"answer" yaml:"answer"`
	Embedding  LLMConfig `json:"embedding" yaml:"embedding"`

	// Temperature for both generation calls. Kept low so the extraction
	// output stays schema-shaped.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// AnswerMaxTokens caps the answer-generation response length.
	AnswerMaxTokens int `json:"answer_max_tokens" yaml:"answer_max_tokens"`

	// Payload reduction. A document whose pretty-printed JSON exceeds
	// MaxPayloadBytes is sampled; the serialized sample is hard-capped at
	// PayloadHardCap bytes before it reaches the prompt.
	MaxPayloadBytes int `json:"max_payload_bytes" yaml:"max_payload_bytes"`
	PayloadHardCap  int `json:"payload_hard_cap" yaml:"payload_hard_cap"`

	// Chunking for embeddings.
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding dimensions (must match the embedding model).
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // openai, ollama, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// Configured reports whether this endpoint has a provider set.
func (c LLMConfig) Configured() bool {
	return c.Provider != ""
}

// DefaultConfig returns a Config with the defaults the hosted system uses:
// a compact model for extraction, a larger one for answers.
func DefaultConfig() Config {
	return Config{
		DBName:     "kudwa",
		StorageDir: "home",
		Extraction: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Answer: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4",
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Temperature:     0.1,
		AnswerMaxTokens: 1000,
		MaxPayloadBytes: 2000,
		PayloadHardCap:  1500,
		ChunkSize:       1000,
		ChunkOverlap:    200,
		EmbeddingDim:    1536,
	}
}

// validate rejects configurations the pipeline cannot run with. Zero values
// are fine (defaults apply later); explicit values must be coherent.
func (c *Config) validate() error {
	if c.ChunkSize < 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk size and overlap must be non-negative", ErrInvalidConfig)
	}
	if c.ChunkOverlap > 0 && c.ChunkSize > 0 && c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDim < 0 {
		return fmt.Errorf("%w: embedding dimension must be non-negative", ErrInvalidConfig)
	}
	if c.MaxPayloadBytes < 0 || c.PayloadHardCap < 0 {
		return fmt.Errorf("%w: payload limits must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "kudwa"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".kudwa", name+".db")
	}
}
