package server

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

const participationSchema = `{
  "type": "object",
  "required": ["business"],
  "properties": {
    "business": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string"},
        "location": {"type": "string"},
        "postal_code": {"type": "string"},
        "industry": {"type": "string"},
        "tract": {
          "type": "object",
          "required": ["state", "county", "tract"],
          "properties": {
            "state": {"type": "string"},
            "county": {"type": "string"},
            "tract": {"type": "string"}
          }
        }
      }
    },
    "participation": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "hours": {"type": "number", "minimum": 0},
          "verified": {"type": "boolean"},
          "duration_months": {"type": "number", "minimum": 0}
        }
      }
    },
    "purchase_amount": {"type": "number", "minimum": 0}
  }
}`

var participationLoader = gojsonschema.NewStringLoader(participationSchema)

// validateParticipation checks a raw participation payload against the
// request schema.
func validateParticipation(body []byte) error {
	result, err := gojsonschema.Validate(participationLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return eris.Wrap(err, "server: invalid JSON")
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return eris.Errorf("server: payload validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
