package ontology

import (
	"context"
	"fmt"

	"github.com/pdrago97/kudwa/llm"
)

// extractionSystemPrompt anchors the model on the financial reference
// ontology and pins the exact response schema.
const extractionSystemPrompt = `You are an expert in ontology design and financial data modeling.

Your task is to analyze JSON data and propose ontology extensions following this financial domain model:

REFERENCE ONTOLOGY (use as guidance):
Classes: Report, Section, Account, Period, Observation
Properties: reportBasis, currency, startDate, endDate, accountId, accountName, sectionName, periodKey, amount
Relations: hasSection, hasAccount, hasPeriod, forReport, forSection, forAccount, forPeriod

Analyze the provided JSON and return ONLY a valid JSON response with three arrays:

{
  "entities": [
    {"name": "EntityName", "properties": {"prop1": "description", "prop2": "description"}}
  ],
  "relations": [
    {"source": "EntityA", "target": "EntityB", "type": "relationName", "properties": {}}
  ],
  "instances": [
    {"entity": "EntityName", "properties": {"prop1": "value1", "prop2": "value2"}}
  ]
}

Focus on:
1. Identifying core business entities (like Report, Account, Period, etc.)
2. Finding repeated data patterns that represent instances
3. Discovering relationships between entities
4. Extracting meaningful properties and their values

The JSON sample may be truncated mid-structure; work with what is present.
Be conservative and only propose clear, well-defined entities and relations.`

// extractionUserPrompt embeds the filename and the reduced payload.
const extractionUserPrompt = `Analyze this JSON data from file '%s':

%s

Extract the ontology (entities, relations, instances) as JSON.`

// Extractor issues the single ontology-extraction call against a chat model.
// It is only constructed when a provider is configured; callers without one
// substitute EmptyResult instead of invoking.
type Extractor struct {
	chat        llm.Provider
	model       string
	temperature float64
}

// NewExtractor creates an extractor bound to a chat provider.
func NewExtractor(chat llm.Provider, model string, temperature float64) *Extractor {
	return &Extractor{chat: chat, model: model, temperature: temperature}
}

// Invoke sends the reduced payload to the model and returns the raw response
// text. Exactly one call is made; a provider failure is fatal for this
// extraction request and propagates unwrapped in meaning — retrying is the
// caller's decision.
func (e *Extractor) Invoke(ctx context.Context, reducedPayload, filename string) (string, error) {
	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(extractionUserPrompt, filename, reducedPayload)},
		},
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("extraction chat call: %w", err)
	}
	return resp.Content, nil
}
