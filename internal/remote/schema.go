package remote

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Response kinds, one per task endpoint.
const (
	KindEmbedding    = "embedding"
	KindEmbeddings   = "embeddings"
	KindSimilarity   = "similarity"
	KindSimilarities = "similarities"
	KindRerank       = "rerank"
	KindRerankTasks  = "rerank_tasks"
)

// SchemaError is returned when a response body does not have the shape its
// endpoint promises.
type SchemaError struct {
	Kind     string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s response failed validation: %s", e.Kind, strings.Join(e.Problems, "; "))
}

const vectorSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"required": ["values"],
		"properties": {"values": {"type": "array", "items": {"type": "number"}}}
	}
}`

const scoreRowSchema = `{
	"type": "object",
	"required": ["scores"],
	"properties": {"scores": {"type": "array", "items": {"type": "number"}}}
}`

const rankedRowSchema = `{
	"type": "object",
	"required": ["scores"],
	"properties": {
		"scores": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["score"],
				"properties": {
					"score": {"type": ["number", "string"]},
					"index": {"type": ["number", "string"]},
					"corpus_id": {"type": ["number", "string"]}
				}
			}
		}
	}
}`

var schemaSources = map[string]string{
	KindEmbedding: `{"type": "object", "required": ["result"], "properties": {"result": ` + vectorSchema + `}}`,
	KindEmbeddings: `{"type": "object", "required": ["results"], "properties": {"results": {
		"type": "object",
		"required": ["vectors"],
		"properties": {"vectors": {"type": "array", "items": ` + vectorSchema + `}}
	}}}`,
	KindSimilarity:   `{"type": "object", "required": ["result"], "properties": {"result": ` + scoreRowSchema + `}}`,
	KindSimilarities: `{"type": "object", "required": ["results"], "properties": {"results": {"type": "array", "items": ` + scoreRowSchema + `}}}`,
	KindRerank:       `{"type": "object", "required": ["result"], "properties": {"result": ` + rankedRowSchema + `}}`,
	KindRerankTasks:  `{"type": "object", "required": ["results"], "properties": {"results": {"type": "array", "items": ` + rankedRowSchema + `}}}`,
}

var compiledSchemas = sync.OnceValues(func() (map[string]*gojsonschema.Schema, error) {
	out := make(map[string]*gojsonschema.Schema, len(schemaSources))
	for kind, src := range schemaSources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		out[kind] = s
	}
	return out, nil
})

// Validate checks body against the schema registered for kind.
func Validate(kind string, body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrEmptyResponse
	}
	schemas, err := compiledSchemas()
	if err != nil {
		return err
	}
	schema, ok := schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for response kind %q", kind)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &SchemaError{Kind: kind, Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	return &SchemaError{Kind: kind, Problems: problems}
}
