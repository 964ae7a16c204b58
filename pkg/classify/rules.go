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

// Package classify resolves pipeline component types from step names and
// surrounding context, by keyword rules or by asking a language model.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// Input is the material available for classifying one component.
type Input struct {
	Name  string
	Doc   string
	Code  string
	Hints string
}

// Result is a classification outcome with its provenance.
type Result struct {
	ComponentType  flow.ComponentType `json:"component_type"`
	Rationale      string             `json:"rationale"`
	Confidence     float64            `json:"confidence"`
	Method         string             `json:"method"`
	FallbackReason string             `json:"fallback_reason,omitempty"`
	Scores         map[string]int     `json:"all_scores,omitempty"`
}

// ruleOrder fixes the tie-break order when several component types score
// equally.
var ruleOrder = []flow.ComponentType{
	flow.DataLoader,
	flow.Transformer,
	flow.Reconciliator,
	flow.Enricher,
	flow.Exporter,
	flow.QualityCheck,
	flow.Splitter,
	flow.Merger,
	flow.Orchestrator,
}

// Keyword patterns per component type, matched against the lowercased
// combined input text.
var rules = map[flow.ComponentType][]*regexp.Regexp{
	flow.DataLoader: compile(
		`\b(load|read|fetch|import|ingest)\b.*\b(file|csv|json|database|api)\b`,
		`\b(read_csv|read_json|read_sql|fetch|download)\b`,
		`\b(load|loading).*\b(data|dataset)\b`,
	),
	flow.Transformer: compile(
		`\b(transform|convert|clean|process|normalize)\b`,
		`\b(apply|map|filter|groupby|pivot|melt)\b`,
		`\b(preprocess|postprocess)\b`,
	),
	flow.Reconciliator: compile(
		`\b(reconcile|match|dedupe|deduplicat\w*|merge|join)\b`,
		`\b(entity.*match|record.*link)\b`,
		`\b(fuzzy.*match|string.*match)\b`,
	),
	flow.Enricher: compile(
		`\b(enrich|extend|augment|enhance)\b`,
		`\b(add|append).*\b(data|information|features)\b`,
		`\b(geocod\w*|weather|lookup)\b`,
	),
	flow.Exporter: compile(
		`\b(export|save|write|output|publish)\b`,
		`\b(to_csv|to_json|to_sql|write_file)\b`,
		`\b(upload|send|post).*\b(api|service)\b`,
	),
	flow.QualityCheck: compile(
		`\b(validate|check|test|verify|assert)\b`,
		`\b(quality|expectation|contract)\b`,
	),
	flow.Splitter: compile(
		`\b(split|partition|divide|separate)\b`,
		`\b(train.*test.*split|sample)\b`,
	),
	flow.Merger: compile(
		`\b(merge|combine|concat|union|join)\b`,
		`\b(aggregate|consolidate)\b`,
	),
	flow.Orchestrator: compile(
		`\b(orchestrat\w*|coordinat\w*|manag\w*|schedul\w*)\b`,
		`\b(workflow|pipeline|dag)\b`,
	),
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// RuleBased classifies a component by keyword patterns. The highest-scoring
// type wins; with no matches at all the result is Other at low confidence.
func RuleBased(in Input) Result {
	text := strings.ToLower(strings.Join([]string{in.Name, in.Doc, in.Code, in.Hints}, " "))
	// Word-boundary patterns treat underscores as part of the word, so
	// snake_case step names match their parts.
	text = strings.ReplaceAll(text, "_", " ")

	scores := map[string]int{}
	matched := map[flow.ComponentType][]string{}
	for componentType, patterns := range rules {
		for _, pattern := range patterns {
			if pattern.MatchString(text) {
				scores[string(componentType)]++
				matched[componentType] = append(matched[componentType], pattern.String())
			}
		}
	}

	if len(scores) == 0 {
		return Result{
			ComponentType: flow.Other,
			Rationale:     "no clear patterns matched for classification",
			Confidence:    0.1,
			Method:        "rule-based",
		}
	}

	var best flow.ComponentType
	bestScore := 0
	total := 0
	for _, componentType := range ruleOrder {
		score := scores[string(componentType)]
		total += score
		if score > bestScore {
			best = componentType
			bestScore = score
		}
	}

	confidence := float64(bestScore) / float64(total)
	if confidence > 0.9 {
		confidence = 0.9
	}

	patterns := matched[best]
	rationale := fmt.Sprintf("rule-based classification found %d pattern matches: %s", bestScore, strings.Join(head(patterns, 2), ", "))
	if len(patterns) > 2 {
		rationale += fmt.Sprintf(" and %d more", len(patterns)-2)
	}

	return Result{
		ComponentType: best,
		Rationale:     rationale,
		Confidence:    confidence,
		Method:        "rule-based",
		Scores:        scores,
	}
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Rules adapts rule-based classification to the flow.Classifier interface
// for resolving steps declared with the "auto" component type.
type Rules struct{}

// Classify implements flow.Classifier.
func (Rules) Classify(stepName string) (flow.ComponentType, string) {
	result := RuleBased(Input{Name: stepName})
	return result.ComponentType, result.Rationale
}
