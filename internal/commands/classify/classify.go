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

// Package classify implements the flowtrace classify command.
package classify

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowtrace/flowtrace/internal/commands/shared"
	"github.com/flowtrace/flowtrace/internal/config"
	"github.com/flowtrace/flowtrace/pkg/classify"
	"github.com/flowtrace/flowtrace/pkg/errors"
)

type options struct {
	name   string
	doc    string
	code   string
	hints  string
	method string
}

// NewCommand creates the classify command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a pipeline component",
		Long: `Classify a pipeline component by name, documentation, and code excerpt.
The rules method uses keyword heuristics; the llm method asks a language
model and falls back to rules when the answer is unusable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "Component name")
	cmd.Flags().StringVar(&opts.doc, "doc", "", "Component documentation")
	cmd.Flags().StringVar(&opts.code, "code", "", "Code excerpt or path to a source file")
	cmd.Flags().StringVar(&opts.hints, "hints", "", "Additional hints for classification")
	cmd.Flags().StringVar(&opts.method, "method", "rules", "Classification method: rules|llm")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	in := classify.Input{
		Name:  opts.name,
		Doc:   opts.doc,
		Code:  codeExcerpt(opts.code),
		Hints: opts.hints,
	}

	var result classify.Result
	switch opts.method {
	case "rules":
		result = classify.RuleBased(in)
	case "llm":
		settings := config.FromEnv()
		client, err := classify.NewOpenAIClient(settings.LLMAPIKey, settings.LLMModel, settings.LLMBaseURL)
		if err != nil {
			return shared.NewFailureError("llm classifier unavailable", err)
		}
		result = classify.NewLLM(client, slog.Default()).Classify(cmd.Context(), in)
	default:
		return shared.NewFailureError("invalid method", &errors.ValidationError{
			Field:   "method",
			Message: "method must be rules or llm",
		})
	}

	if shared.GetJSON() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return shared.NewFailureError("encoding result", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Component type: %s\n", result.ComponentType)
	cmd.Printf("Confidence:     %.2f\n", result.Confidence)
	cmd.Printf("Method:         %s\n", result.Method)
	cmd.Printf("Rationale:      %s\n", result.Rationale)
	if result.FallbackReason != "" {
		cmd.Printf("Fallback:       %s\n", result.FallbackReason)
	}
	return nil
}

// codeExcerpt treats the flag value as a file path when it names a
// readable file, otherwise as the excerpt itself.
func codeExcerpt(value string) string {
	if value == "" {
		return ""
	}
	if data, err := os.ReadFile(value); err == nil {
		return string(data)
	}
	return value
}
