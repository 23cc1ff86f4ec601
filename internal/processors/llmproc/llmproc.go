// Package llmproc implements an LLM-backed Processor using the OpenAI
// chat completions API, grounded on the teacher's
// internal/providers/openai_tts.go client-construction idiom (retargeted
// at chat completions instead of speech synthesis) and its
// structured_output.go schema-validation idiom (retargeted at a
// description-extraction schema instead of a generic ResponseFormat).
package llmproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fancai/orchestrator/internal/model"
	"github.com/fancai/orchestrator/internal/processors"
)

const (
	defaultModel       = openai.ChatModelGPT4oMini
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 2
	healthCheckTimeout = 5 * time.Second
)

// Config is this processor's construction-time tunables.
type Config struct {
	Name         string
	APIKey       string
	Model        string
	BaseURL      string // optional, tests/self-hosted gateways
	Timeout      time.Duration
	MaxRetries   int
	Weight       float64
	Threshold    float64
	PriorityRank int
	HTTPClient   *http.Client // optional, tests
}

// Processor extracts descriptions by prompting an LLM for structured
// JSON output, validated against extractionSchema before being trusted.
type Processor struct {
	name         string
	model        string
	weight       float64
	threshold    float64
	priorityRank int
	client       openai.Client

	schema *jsonschema.Schema
}

// New constructs a Processor, wiring an openai-go client the same way
// the teacher's NewOpenAITTSClient does: explicit API key, HTTP client,
// SDK-level retry count, and an optional BaseURL override for tests or
// OpenAI-compatible gateways.
func New(cfg Config) (*Processor, error) {
	name := cfg.Name
	if name == "" {
		name = "llm"
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(maxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	schema, err := compileExtractionSchema()
	if err != nil {
		return nil, fmt.Errorf("compile extraction schema: %w", err)
	}

	return &Processor{
		name:         name,
		model:        model,
		weight:       cfg.Weight,
		threshold:    cfg.Threshold,
		priorityRank: cfg.PriorityRank,
		client:       openai.NewClient(opts...),
		schema:       schema,
	}, nil
}

// NewFromProcessorConfig adapts a processors.Config into a Processor,
// for use as a processors.Factory.
func NewFromProcessorConfig(name string, cfg processors.Config) (processors.Processor, error) {
	return New(Config{
		Name:         name,
		APIKey:       cfg.APIKey,
		Model:        cfg.Model,
		Weight:       cfg.Weight,
		Threshold:    cfg.Threshold,
		PriorityRank: cfg.PriorityRank,
	})
}

func (p *Processor) Name() string        { return p.name }
func (p *Processor) Weight() float64     { return p.weight }
func (p *Processor) Threshold() float64  { return p.threshold }
func (p *Processor) PriorityRank() int   { return p.priorityRank }

// IsAvailable performs a cheap reachability check, mirroring the
// teacher's OpenAITTSClient.HealthCheck (which lists models to confirm
// the API key is valid and the service is reachable).
func (p *Processor) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	_, err := p.client.Models.List(ctx)
	return err == nil
}

// Load is a no-op: the openai-go client has no connection handshake to
// perform ahead of the first request.
func (p *Processor) Load(ctx context.Context) error { return nil }

// extractionResult is the structured-output shape the model is asked to
// return; one entry per description found in the chapter.
type extractionResult struct {
	Descriptions []extractedDescription `json:"descriptions"`
}

type extractedDescription struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	CharStart  int     `json:"char_start"`
	CharEnd    int     `json:"char_end"`
	Confidence float64 `json:"confidence"`
}

const extractionSchemaJSON = `{
  "type": "object",
  "properties": {
    "descriptions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": {"type": "string", "enum": ["LOCATION", "CHARACTER", "ATMOSPHERE", "OBJECT", "ACTION"]},
          "content": {"type": "string"},
          "char_start": {"type": "integer"},
          "char_end": {"type": "integer"},
          "confidence": {"type": "number"}
        },
        "required": ["type", "content", "char_start", "char_end", "confidence"]
      }
    }
  },
  "required": ["descriptions"]
}`

func compileExtractionSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", bytes.NewReader([]byte(extractionSchemaJSON))); err != nil {
		return nil, err
	}
	return compiler.Compile("extraction.json")
}

const extractionPrompt = `You are a literary analysis assistant. Read the chapter text and extract every
vivid descriptive passage referring to a LOCATION, CHARACTER, ATMOSPHERE, OBJECT, or ACTION
suitable for illustration. For each, report its type, the verbatim excerpt, its character
offset range within the chapter, and your confidence (0 to 1) that it is a genuine,
illustration-worthy description. Respond with JSON only, matching the given schema.`

// Extract prompts the model for structured extraction output, validates
// it against extractionSchema, and maps it into RawDescriptions.
// Transport failures, validation failures and malformed JSON are all
// returned as plain errors; the pipeline strategy that called Extract
// decides what to do with them.
func (p *Processor) Extract(ctx context.Context, chapter *model.Chapter) ([]processors.RawDescription, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionPrompt),
			openai.UserMessage(chapter.Content),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in chat completion response")
	}

	raw := json.RawMessage(resp.Choices[0].Message.Content)
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode structured output: %w", err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("structured output failed schema validation: %w", err)
	}

	var parsed extractionResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal extraction result: %w", err)
	}

	out := make([]processors.RawDescription, 0, len(parsed.Descriptions))
	for _, d := range parsed.Descriptions {
		out = append(out, processors.RawDescription{
			Type:       model.DescriptionType(d.Type),
			Content:    d.Content,
			CharStart:  d.CharStart,
			CharEnd:    d.CharEnd,
			Confidence: d.Confidence,
		})
	}
	return out, nil
}

var _ processors.Processor = (*Processor)(nil)
var _ processors.Weighted = (*Processor)(nil)
