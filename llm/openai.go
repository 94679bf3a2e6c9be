package llm

import "context"

// openAIProvider implements Provider for the OpenAI API.
//
// Chat models: gpt-4o-mini is the extraction default (cheap, schema-
// following at low temperature); gpt-4 is the answer-generation default.
// Embedding models: text-embedding-3-small (1536 dim) is the default.
type openAIProvider struct {
	base openAICompatClient
}

// NewOpenAI creates a provider for OpenAI.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	return &openAIProvider{base: newOpenAICompatClient(cfg)}
}

func (p *openAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.base.embed(ctx, texts)
}
