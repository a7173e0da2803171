package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CausalRelation is one directed causal edge the extraction prompt found
// between two facts in the same batch, referencing the target by its
// position in the returned array (SPEC_FULL.md §4.5 step 6).
type CausalRelation struct {
	TargetIndex  int     `json:"target_index"`
	RelationType string  `json:"relation_type"`
	Strength     float64 `json:"strength"`
}

// ExtractedFact is one fact the extraction prompt asked the model to pull
// out of raw input text (SPEC_FULL.md §4.5 step 1).
type ExtractedFact struct {
	Content         string           `json:"content"`
	FactType        string           `json:"fact_type"`
	Confidence      float64          `json:"confidence"`
	CausalRelations []CausalRelation `json:"causal_relations,omitempty"`
}

const extractionPrompt = `Extract discrete factual statements from the text below. Respond with a JSON array only, no prose, where each element has "content" (the fact, rewritten as a standalone sentence), "fact_type" (one of: experience, world, observation, opinion), "confidence" (0 to 1), and an optional "causal_relations" array of {"target_index", "relation_type", "strength"} for facts elsewhere in this same array that this fact causes or is caused by (target_index is the 0-based position of the other fact in this array, strength is 0 to 1).

Text:
%s`

// ExtractFacts calls the chat model to decompose raw text into
// ExtractedFacts. If the client is disabled, it falls back to treating the
// whole input as a single experience fact at confidence 1.0, so retain
// still has something to write in environments without a live LLM.
func (c *Client) ExtractFacts(ctx context.Context, text string) ([]ExtractedFact, error) {
	return c.ExtractFactsWithGuidance(ctx, text, "", "")
}

// ExtractFactsWithGuidance is ExtractFacts with retain's optional mode and
// custom_guidelines options (SPEC_FULL.md §4.5) folded into the prompt.
func (c *Client) ExtractFactsWithGuidance(ctx context.Context, text, mode, guidelines string) ([]ExtractedFact, error) {
	if !c.enabled {
		return []ExtractedFact{{Content: text, FactType: "experience", Confidence: 1.0}}, nil
	}

	prompt := fmt.Sprintf(extractionPrompt, text)
	if mode != "" {
		prompt = fmt.Sprintf("Extraction mode: %s\n\n%s", mode, prompt)
	}
	if guidelines != "" {
		prompt = fmt.Sprintf("%s\n\nAdditional guidelines: %s", prompt, guidelines)
	}

	raw, err := c.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	facts, err := parseFactArray(raw)
	if err != nil {
		log.Warn("extraction response was not valid JSON, falling back to raw text", "error", err)
		return []ExtractedFact{{Content: text, FactType: "experience", Confidence: 1.0}}, nil
	}
	return facts, nil
}

const entityPrompt = `List the distinct named entities (people, places, organizations, projects) mentioned in the text below. Respond with a JSON array of strings only, no prose.

Text:
%s`

// ExtractEntityNames returns candidate entity names mentioned in text. When
// the client is disabled, it falls back to a simple capitalized-word
// heuristic so the entity resolver still has candidates to work with.
func (c *Client) ExtractEntityNames(ctx context.Context, text string) ([]string, error) {
	if !c.enabled {
		return capitalizedWordCandidates(text), nil
	}

	raw, err := c.Generate(ctx, fmt.Sprintf(entityPrompt, text))
	if err != nil {
		return nil, err
	}

	names, err := parseStringArray(raw)
	if err != nil {
		log.Warn("entity extraction response was not valid JSON, falling back to heuristic", "error", err)
		return capitalizedWordCandidates(text), nil
	}
	return names, nil
}

func parseStringArray(raw string) ([]string, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in model response")
	}
	var names []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &names); err != nil {
		return nil, fmt.Errorf("decode entity names: %w", err)
	}
	return names, nil
}

// capitalizedWordCandidates picks out runs of capitalized words as a crude
// proper-noun heuristic, skipping the first word of each sentence where a
// capital is just normal sentence casing rather than a name.
func capitalizedWordCandidates(text string) []string {
	var names []string
	seen := map[string]bool{}
	sentenceStart := true

	for _, word := range strings.Fields(text) {
		trimmed := strings.Trim(word, ".,;:!?\"'()")
		if trimmed == "" {
			continue
		}
		isCapitalized := trimmed[0] >= 'A' && trimmed[0] <= 'Z'
		if isCapitalized && !sentenceStart && !seen[trimmed] {
			seen[trimmed] = true
			names = append(names, trimmed)
		}
		sentenceStart = strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
	}
	return names
}

func parseFactArray(raw string) ([]ExtractedFact, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in model response")
	}

	var facts []ExtractedFact
	if err := json.Unmarshal([]byte(raw[start:end+1]), &facts); err != nil {
		return nil, fmt.Errorf("decode extracted facts: %w", err)
	}
	for i := range facts {
		if facts[i].FactType == "" {
			facts[i].FactType = "experience"
		}
		if facts[i].Confidence == 0 {
			facts[i].Confidence = 1.0
		}
	}
	return facts, nil
}
