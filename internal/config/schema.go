package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// updateSchemaJSON constrains the shape of API config updates. Range
// checks beyond simple bounds live in Validate, which runs after merge.
const updateSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "app": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "log_level": {"type": "string"},
        "log_path": {"type": "string"},
        "listen_addr": {"type": "string"}
      }
    },
    "account": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "initial_equity": {"type": "number", "exclusiveMinimum": 0},
        "demo_mode": {"type": "boolean"}
      }
    },
    "strategy": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "sma_fast": {"type": "integer", "minimum": 2},
        "sma_slow": {"type": "integer", "minimum": 3},
        "rsi_period": {"type": "integer", "minimum": 2},
        "rsi_lower": {"type": "number", "minimum": 0, "maximum": 100},
        "rsi_upper": {"type": "number", "minimum": 0, "maximum": 100},
        "stop_loss_pct": {"type": "number", "exclusiveMinimum": 0, "maximum": 0.5},
        "take_profit_pct": {"type": "number", "exclusiveMinimum": 0, "maximum": 1}
      }
    },
    "risk": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_position_size": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "max_risk_per_trade": {"type": "number", "exclusiveMinimum": 0, "maximum": 0.1},
        "max_drawdown": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "max_daily_loss": {"type": "number", "exclusiveMinimum": 0, "maximum": 1},
        "max_positions": {"type": "integer", "minimum": 1}
      }
    },
    "symbols": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "trading": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "check_interval": {"type": "integer", "minimum": 1},
        "market_hours": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "start": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"},
            "end": {"type": "string", "pattern": "^[0-2][0-9]:[0-5][0-9]$"}
          }
        },
        "test_mode": {"type": "boolean"}
      }
    },
    "feed": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"type": "string", "enum": ["demo", "http", "binance"]},
        "quote_url": {"type": "string"},
        "cache_ttl_seconds": {"type": "integer", "minimum": 0},
        "timeout_seconds": {"type": "integer", "minimum": 1},
        "binance": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "api_key": {"type": "string"},
            "api_secret": {"type": "string"},
            "interval": {"type": "string"}
          }
        }
      }
    },
    "telegram": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "bot_token": {"type": "string"},
        "chat_id": {"type": "string"}
      }
    },
    "database": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "path": {"type": "string"},
        "journal_path": {"type": "string"}
      }
    }
  }
}`

var (
	updateSchemaOnce sync.Once
	updateSchema     *jsonschema.Schema
	updateSchemaErr  error
)

func compiledUpdateSchema() (*jsonschema.Schema, error) {
	updateSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config_update.json", strings.NewReader(updateSchemaJSON)); err != nil {
			updateSchemaErr = err
			return
		}
		updateSchema, updateSchemaErr = compiler.Compile("config_update.json")
	})
	return updateSchema, updateSchemaErr
}

// ValidateUpdate parses raw as a JSON object and checks it against the
// update schema. The decoded document is returned for merging.
func ValidateUpdate(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config update must be a JSON object: %w", err)
	}
	schema, err := compiledUpdateSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config update rejected: %w", err)
	}
	return doc, nil
}
