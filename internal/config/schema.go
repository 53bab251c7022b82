package config

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchemaJSON is validated against the TOML-decoded document before the
// typed Config struct is trusted, catching unknown keys and type
// mismatches early.
const configSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "content": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "repo_path": {"type": "string"},
        "content_dir": {"type": "string"}
      }
    },
    "storage": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend": {"type": "string"},
        "bucket": {"type": "string"},
        "region": {"type": "string"},
        "endpoint": {"type": "string"},
        "public_url_base": {"type": "string"}
      }
    },
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer"},
        "cors_origins": {"type": "array", "items": {"type": "string"}},
        "cache_max_age": {"type": "integer"},
        "cache_stale_while_revalidate": {"type": "integer"},
        "behind_proxy": {"type": "boolean"}
      }
    },
    "git": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend_path": {"type": "string"},
        "max_body_size": {"type": "integer"},
        "cgi_timeout_secs": {"type": "integer"}
      }
    },
    "webhooks": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "on_content_update": {"type": "array", "items": {"type": "string"}},
        "secret": {"type": "string"}
      }
    },
    "auth": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "git_token": {"type": "string"},
        "api_token": {"type": "string"}
      }
    }
  }
}`

var compiledConfigSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("riley-cms-config.schema.json", bytes.NewReader([]byte(configSchemaJSON))); err != nil {
		panic("config: invalid embedded schema: " + err.Error())
	}
	s, err := c.Compile("riley-cms-config.schema.json")
	if err != nil {
		panic("config: schema compile failed: " + err.Error())
	}
	compiledConfigSchema = s
}

// validateDocument checks a TOML-decoded document (as produced by
// unmarshalling into map[string]any) against compiledConfigSchema. TOML's
// int64/time.Time values are normalized to JSON-compatible types via a
// JSON round-trip first, since the schema validator expects the same
// value shapes encoding/json would produce.
func validateDocument(doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	return compiledConfigSchema.Validate(normalized)
}
