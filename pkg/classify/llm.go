// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/flowtrace/flowtrace/pkg/errors"
	"github.com/flowtrace/flowtrace/pkg/flow"
)

// maxCodeExcerpt bounds the code excerpt sent to the model.
const maxCodeExcerpt = 2000

// Client is the completion surface the LLM classifier needs. The prompt
// asks for a JSON object response.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIClient is a Client backed by an OpenAI-compatible chat API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given credentials. baseURL is
// optional and points at OpenAI-compatible servers such as local runtimes.
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, &errors.ConfigError{
			Key:    "FLOWTRACE_LLM_API_KEY",
			Reason: "no API key configured for LLM classification",
		}
	}
	if model == "" {
		model = "gpt-4"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Complete implements Client.
func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// LLM classifies components with a language model, falling back to the
// keyword rules whenever the model is unavailable or unusable.
type LLM struct {
	client Client
	logger *slog.Logger
}

// NewLLM wraps a completion client. A nil client means every call falls
// back to the rules.
func NewLLM(client Client, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLM{client: client, logger: logger}
}

type llmResponse struct {
	ComponentType string  `json:"component_type"`
	Rationale     string  `json:"rationale"`
	Confidence    float64 `json:"confidence"`
}

// Classify asks the model to classify the component. Any failure to reach
// the model or to parse its response degrades to the rule-based result
// with the reason recorded; a low-confidence model answer is also
// overridden by a more confident rule-based one.
func (l *LLM) Classify(ctx context.Context, in Input) Result {
	if l.client == nil {
		return RuleBased(in)
	}

	raw, err := l.client.Complete(ctx, buildPrompt(in))
	if err != nil {
		l.logger.Warn("llm classification failed, using rules", "error", err)
		fallback := RuleBased(in)
		fallback.FallbackReason = "llm request failed: " + err.Error()
		return fallback
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		l.logger.Warn("llm response was not valid json, using rules", "error", err)
		fallback := RuleBased(in)
		fallback.FallbackReason = "llm response parsing failed: " + err.Error()
		return fallback
	}

	componentType, err := flow.ParseComponentType(parsed.ComponentType)
	if err != nil || componentType == flow.AutoComponentType {
		l.logger.Warn("llm returned invalid component type", "value", parsed.ComponentType)
		componentType = flow.Other
	}
	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := Result{
		ComponentType: componentType,
		Rationale:     parsed.Rationale,
		Confidence:    confidence,
		Method:        "llm",
	}
	if result.Confidence < 0.3 {
		if ruled := RuleBased(in); ruled.Confidence > result.Confidence {
			ruled.FallbackReason = "rule-based preferred over low-confidence llm answer"
			return ruled
		}
	}
	return result
}

// FlowClassifier adapts the LLM classifier to the flow.Classifier
// interface.
func (l *LLM) FlowClassifier() flow.Classifier {
	return llmAdapter{l}
}

type llmAdapter struct {
	llm *LLM
}

func (a llmAdapter) Classify(stepName string) (flow.ComponentType, string) {
	result := a.llm.Classify(context.Background(), Input{Name: stepName})
	return result.ComponentType, result.Rationale
}

const classifyPrompt = `You are a data pipeline architect. Classify a data pipeline component into one of these types:

- DataLoader: loads data from files, databases, or APIs into the pipeline
- Transformer: transforms, cleans, or processes data without adding external information
- Reconciliator: matches, deduplicates, or reconciles data entities
- Enricher: adds new information to existing data using external APIs or datasets
- Exporter: outputs or saves data to external systems, files, or databases
- QualityCheck: validates data quality, runs tests, or checks data contracts
- Splitter: splits datasets into multiple outputs based on criteria
- Merger: combines multiple datasets into a single output
- Orchestrator: coordinates other components or manages workflow execution
- Other: components that do not fit the above categories

Input:
- Name: %s
- Documentation: %s
- Code excerpt: %s
- Additional hints: %s

Respond with a JSON object containing:
- component_type: one of the types listed above
- rationale: brief explanation of the choice
- confidence: number between 0.0 and 1.0`

func buildPrompt(in Input) string {
	code := in.Code
	if len(code) > maxCodeExcerpt {
		code = code[:maxCodeExcerpt]
	}
	return fmt.Sprintf(classifyPrompt,
		strings.TrimSpace(in.Name),
		strings.TrimSpace(in.Doc),
		code,
		strings.TrimSpace(in.Hints),
	)
}
