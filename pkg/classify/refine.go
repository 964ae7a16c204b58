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

	"github.com/flowtrace/flowtrace/pkg/contracts"
)

const (
	maxRefineSamples  = 10
	maxRefineGuidance = 1000
)

// RefinementSuggestion describes one proposed change to a contract.
type RefinementSuggestion struct {
	Type      string `json:"type"`
	Field     string `json:"field"`
	Change    string `json:"change"`
	Rationale string `json:"rationale"`
}

// Refinement is the outcome of a contract refinement pass. Method is
// "llm" when the model's answer was used and "heuristic" when the
// rule-based fallback produced the result.
type Refinement struct {
	Suggestions    []RefinementSuggestion `json:"suggestions"`
	Updated        *contracts.Contract    `json:"updated_suite"`
	ChangesSummary string                 `json:"changes_summary"`
	RiskAssessment string                 `json:"risk_assessment"`
	Method         string                 `json:"method"`
	FallbackReason string                 `json:"fallback_reason,omitempty"`
}

const refinePrompt = `You are a data quality engineer reviewing a data contract
so it generalizes beyond the sample it was inferred from while keeping its
quality guarantees.

Guidelines:
1. Enum expansion: allow additional reasonable values when sets look limited
2. Range flexibility: widen numeric ranges for natural variation
3. Nullable fields: consider which fields might legitimately be null
4. String lengths: leave buffer for text fields

Current contract:
%s

Sample data:
%s

Additional guidance: %s

Respond with a JSON object containing:
- "suggestions": list of {"type", "field", "change", "rationale"}
- "updated_suite": the modified contract document
- "changes_summary": brief summary of the changes
- "risk_assessment": risks introduced by the changes`

type refineResponse struct {
	Suggestions    []RefinementSuggestion `json:"suggestions"`
	UpdatedSuite   json.RawMessage        `json:"updated_suite"`
	ChangesSummary string                 `json:"changes_summary"`
	RiskAssessment string                 `json:"risk_assessment"`
}

// RefineContract asks the model to generalize a contract against sample
// records. Any model failure falls back to the heuristic refinement, so
// the returned contract is always usable.
func (l *LLM) RefineContract(ctx context.Context, c *contracts.Contract, samples []map[string]any, guidance string) Refinement {
	if l.client == nil {
		r := HeuristicRefine(c)
		r.FallbackReason = "no llm client configured"
		return r
	}

	prompt, err := buildRefinePrompt(c, samples, guidance)
	if err != nil {
		r := HeuristicRefine(c)
		r.FallbackReason = "encoding contract for refinement failed: " + err.Error()
		return r
	}

	raw, err := l.client.Complete(ctx, prompt)
	if err != nil {
		l.logger.Warn("llm contract refinement failed", "error", err)
		r := HeuristicRefine(c)
		r.FallbackReason = "llm request failed: " + err.Error()
		return r
	}

	var resp refineResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		l.logger.Warn("llm refinement response unparseable", "error", err)
		r := HeuristicRefine(c)
		r.FallbackReason = "llm response parsing failed: " + err.Error()
		return r
	}

	updated := c
	if len(resp.UpdatedSuite) > 0 {
		var parsed contracts.Contract
		if err := json.Unmarshal(resp.UpdatedSuite, &parsed); err == nil && parsed.Suite != "" {
			updated = &parsed
		} else {
			l.logger.Warn("llm refinement returned invalid updated suite, keeping original")
		}
	}

	if resp.Suggestions == nil {
		resp.Suggestions = []RefinementSuggestion{}
	}
	return Refinement{
		Suggestions:    resp.Suggestions,
		Updated:        updated,
		ChangesSummary: resp.ChangesSummary,
		RiskAssessment: resp.RiskAssessment,
		Method:         "llm",
	}
}

func buildRefinePrompt(c *contracts.Contract, samples []map[string]any, guidance string) (string, error) {
	suiteJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", err
	}
	if len(samples) > maxRefineSamples {
		samples = samples[:maxRefineSamples]
	}
	samplesJSON, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return "", err
	}
	if len(guidance) > maxRefineGuidance {
		guidance = guidance[:maxRefineGuidance]
	}
	return fmt.Sprintf(refinePrompt, suiteJSON, samplesJSON, guidance), nil
}

// HeuristicRefine widens length and numeric range expectations with a
// conservative buffer. It never touches other expectation types and
// never modifies the input contract.
func HeuristicRefine(c *contracts.Contract) Refinement {
	updated := cloneContract(c)
	suggestions := []RefinementSuggestion{}

	for i, exp := range updated.Expectations {
		column, _ := exp.Kwargs["column"].(string)

		switch exp.Type {
		case contracts.ExpectColumnLengthsBetween:
			minVal, minOK := numericKwarg(exp.Kwargs, "min_value")
			maxVal, maxOK := numericKwarg(exp.Kwargs, "max_value")
			if !minOK || !maxOK {
				continue
			}
			newMin := int(minVal * 0.8)
			if newMin < 0 {
				newMin = 0
			}
			newMax := int(maxVal * 1.2)
			if float64(newMin) == minVal && float64(newMax) == maxVal {
				continue
			}
			updated.Expectations[i].Kwargs["min_value"] = newMin
			updated.Expectations[i].Kwargs["max_value"] = newMax
			suggestions = append(suggestions, RefinementSuggestion{
				Type:      "length_buffer",
				Field:     column,
				Change:    fmt.Sprintf("expanded length range from [%v, %v] to [%d, %d]", minVal, maxVal, newMin, newMax),
				Rationale: "20% buffer for string length variation",
			})

		case contracts.ExpectColumnBetween:
			minVal, minOK := numericKwarg(exp.Kwargs, "min_value")
			maxVal, maxOK := numericKwarg(exp.Kwargs, "max_value")
			if !minOK || !maxOK {
				continue
			}
			buffer := (maxVal - minVal) * 0.1
			if buffer < 1 {
				buffer = 1
			}
			updated.Expectations[i].Kwargs["min_value"] = minVal - buffer
			updated.Expectations[i].Kwargs["max_value"] = maxVal + buffer
			suggestions = append(suggestions, RefinementSuggestion{
				Type:      "range_buffer",
				Field:     column,
				Change:    fmt.Sprintf("expanded range from [%v, %v] to [%v, %v]", minVal, maxVal, minVal-buffer, maxVal+buffer),
				Rationale: "10% buffer for numeric variation",
			})
		}
	}

	return Refinement{
		Suggestions:    suggestions,
		Updated:        updated,
		ChangesSummary: fmt.Sprintf("applied %d heuristic refinements", len(suggestions)),
		RiskAssessment: "low risk, conservative buffer adjustments only",
		Method:         "heuristic",
	}
}

func cloneContract(c *contracts.Contract) *contracts.Contract {
	clone := *c
	clone.Expectations = make([]contracts.Expectation, len(c.Expectations))
	for i, exp := range c.Expectations {
		kwargs := make(map[string]any, len(exp.Kwargs))
		for k, v := range exp.Kwargs {
			kwargs[k] = v
		}
		clone.Expectations[i] = contracts.Expectation{Type: exp.Type, Kwargs: kwargs}
	}
	return &clone
}

func numericKwarg(kwargs map[string]any, key string) (float64, bool) {
	switch v := kwargs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
