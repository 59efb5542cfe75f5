package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/xeipuuv/gojsonschema"
)

// graphSchema describes the persisted graph document.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"enum": ["start", "end", "information", "question", "condition", "integration"]},
          "data": {"type": ["object", "null"]}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(graphSchema)

// CheckDocument validates the shape of a raw graph document before it is decoded.
func CheckDocument(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("failed to check graph document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return fmt.Errorf("graph document does not match schema: %s", strings.Join(msgs, "; "))
}

// ParseDocument checks the document shape and decodes it.
func ParseDocument(data []byte) (*domain.Graph, error) {
	if err := CheckDocument(data); err != nil {
		return nil, err
	}
	return domain.DecodeGraph(data)
}
