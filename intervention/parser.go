package intervention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Parser turns a free-text prompt into an Intervention.
type Parser interface {
	Parse(ctx context.Context, prompt string) (Intervention, error)
}

// Completer is the part of an LLM client the parser needs.
type Completer interface {
	Name() string
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const systemPrompt = `You are an assistant that parses sustainability intervention prompts for New York City.

Given a natural language prompt, extract:
1. borough: Manhattan, Brooklyn, Queens, Bronx, Staten Island, or "citywide"
2. sector: transport, buildings, industry, energy, aviation, nature, or "all"
3. reduction_percent: expected emission change in percent for that sector (estimate if not explicit)
4. direction: "decrease" or "increase"
5. subsector: optional, one of "taxis", "bus", "waste"
6. description: a short description
7. spatial_pattern: optional list of up to 8 [lat, lon, intensity] points (intensity 0-1) where the intervention concentrates
8. ai_analysis: optional object with short "summary" and "caveats" strings

Respond ONLY with valid JSON in this exact format:
{
    "borough": "Manhattan",
    "sector": "transport",
    "reduction_percent": 25,
    "direction": "decrease",
    "subsector": "taxis",
    "description": "EV taxi conversion",
    "spatial_pattern": [[40.758, -73.9855, 0.9]],
    "ai_analysis": {"summary": "...", "caveats": "..."}
}

Examples:
- "Convert 30% of taxis to EVs in Manhattan" -> {"borough": "Manhattan", "sector": "transport", "reduction_percent": 25, "direction": "decrease", "subsector": "taxis", "description": "EV taxi conversion"}
- "Add solar panels to all Brooklyn buildings" -> {"borough": "Brooklyn", "sector": "buildings", "reduction_percent": 20, "direction": "decrease", "description": "Solar panel installation"}
- "Reduce citywide industrial emissions by 15%" -> {"borough": "citywide", "sector": "industry", "reduction_percent": 15, "direction": "decrease", "description": "Industrial emission reduction"}
`

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// llmResponse mirrors the JSON the model is asked for. spatial_pattern comes
// back as arrays, not objects.
type llmResponse struct {
	Borough          string            `json:"borough"`
	Sector           string            `json:"sector"`
	ReductionPercent *float64          `json:"reduction_percent"`
	Direction        string            `json:"direction"`
	Subsector        string            `json:"subsector"`
	SpecificLocation string            `json:"specific_location"`
	Description      string            `json:"description"`
	SpatialPattern   [][]float64       `json:"spatial_pattern"`
	Analysis         map[string]string `json:"ai_analysis"`
}

// LLMParser asks a language model to classify the prompt.
type LLMParser struct {
	client Completer
	logger *zap.Logger
}

func NewLLMParser(client Completer, logger *zap.Logger) *LLMParser {
	return &LLMParser{client: client, logger: logger}
}

func (p *LLMParser) Parse(ctx context.Context, prompt string) (Intervention, error) {
	if strings.TrimSpace(prompt) == "" {
		return Intervention{}, ErrEmptyPrompt
	}
	content, err := p.client.CompleteWithSystem(ctx, systemPrompt, prompt)
	if err != nil {
		return Intervention{}, fmt.Errorf("%s completion failed: %w", p.client.Name(), err)
	}
	iv, err := DecodeLLMResponse(content)
	if err != nil {
		return Intervention{}, err
	}
	iv.Prompt = prompt
	p.logger.Debug("parsed intervention",
		zap.String("provider", p.client.Name()),
		zap.String("borough", iv.Borough),
		zap.String("sector", iv.Sector),
		zap.Float64("reduction_percent", iv.ReductionPercent))
	return iv, nil
}

// DecodeLLMResponse extracts the first JSON object from a completion,
// tolerating markdown fences and chatter around it.
func DecodeLLMResponse(content string) (Intervention, error) {
	raw := strings.TrimSpace(content)
	if m := jsonObjectPattern.FindString(raw); m != "" {
		raw = m
	}
	var r llmResponse
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Intervention{}, fmt.Errorf("failed to decode model response: %w", err)
	}
	if r.ReductionPercent == nil {
		return Intervention{}, errors.New("model response has no reduction_percent")
	}

	iv := Intervention{
		Borough:          r.Borough,
		Sector:           r.Sector,
		ReductionPercent: *r.ReductionPercent,
		Direction:        r.Direction,
		Subsector:        r.Subsector,
		SpecificLocation: r.SpecificLocation,
		Description:      r.Description,
		Analysis:         r.Analysis,
		Source:           SourceLLM,
	}
	for _, p := range r.SpatialPattern {
		if len(p) < 3 {
			continue
		}
		iv.SpatialPattern = append(iv.SpatialPattern, PatternPoint{Lat: p[0], Lon: p[1], Intensity: p[2]})
	}
	iv.Normalize()
	return iv, nil
}

// FallbackParser prefers the primary parser and falls back to rules on any
// failure. A nil primary means rules only.
type FallbackParser struct {
	primary  Parser
	fallback RuleParser
	logger   *zap.Logger
}

func NewFallbackParser(primary Parser, logger *zap.Logger) *FallbackParser {
	return &FallbackParser{primary: primary, logger: logger}
}

func (p *FallbackParser) Parse(ctx context.Context, prompt string) (Intervention, error) {
	if strings.TrimSpace(prompt) == "" {
		return Intervention{}, ErrEmptyPrompt
	}
	if p.primary != nil {
		iv, err := p.primary.Parse(ctx, prompt)
		if err == nil {
			return iv, nil
		}
		if ctx.Err() != nil {
			return Intervention{}, ctx.Err()
		}
		p.logger.Warn("model parsing failed, falling back to rules", zap.Error(err))
	}
	iv, err := p.fallback.Parse(ctx, prompt)
	if err != nil {
		return Intervention{}, err
	}
	p.logger.Info("rule-based parsing",
		zap.String("borough", iv.Borough),
		zap.String("sector", iv.Sector),
		zap.Float64("reduction_percent", iv.ReductionPercent))
	return iv, nil
}

// UsesModel reports whether a language model is configured.
func (p *FallbackParser) UsesModel() bool {
	return p.primary != nil
}
