package agent

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	schemaOnce        sync.Once
	analysisSchema    string
	suggestionsSchema string
)

// replySchemas returns the JSON Schemas of the analysis and improvement replies.
func replySchemas() (string, string) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: true,
		}
		analysisSchema = reflectSchema(r, &Analysis{})
		suggestionsSchema = reflectSchema(r, &Suggestions{})
	})
	return analysisSchema, suggestionsSchema
}

func reflectSchema(r *jsonschema.Reflector, v any) string {
	s := r.Reflect(v)
	s.Version = ""
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		panic("agent: marshal reply schema: " + err.Error())
	}
	return string(out)
}
