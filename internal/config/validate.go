package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the shapes viper cannot: numeric ranges and the
// enumerated provider/log values. Structural typing is already handled by
// unmarshalling.
const configSchema = `{
	"type": "object",
	"properties": {
		"provider": {
			"type": "object",
			"properties": {
				"type": {"enum": ["openai", "mock"]},
				"rate_limit": {"type": "integer", "minimum": 0},
				"timeout_seconds": {"type": "integer", "minimum": 0},
				"prompt_cost_per_1m": {"type": "number", "minimum": 0},
				"completion_cost_per_1m": {"type": "number", "minimum": 0}
			}
		},
		"translate": {
			"type": "object",
			"properties": {
				"max_chunk_runes": {"type": "integer", "minimum": 1},
				"workers": {"type": "integer", "minimum": 1},
				"context_words": {"type": "integer", "minimum": 0},
				"max_attempts": {"type": "integer", "minimum": 1},
				"base_delay_seconds": {"type": "integer", "minimum": 0},
				"max_delay_seconds": {"type": "integer", "minimum": 0},
				"min_output_chars": {"type": "integer", "minimum": 0},
				"min_output_ratio": {"type": "number", "minimum": 0, "maximum": 1}
			}
		},
		"storage": {
			"type": "object",
			"properties": {
				"path": {"type": "string", "minLength": 1}
			}
		},
		"log": {
			"type": "object",
			"properties": {
				"level": {"enum": ["debug", "info", "warn", "error"]},
				"format": {"enum": ["text", "json"]}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// Validate checks a config against the schema.
func Validate(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config for validation: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
