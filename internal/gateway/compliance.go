package gateway

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/payai/internal/jsonfix"
	"github.com/sells-group/payai/internal/model"
)

const complianceSchemaJSON = `{
  "type": "object",
  "required": ["using"],
  "properties": {
    "total":       {"type": "integer", "minimum": 0},
    "using":       {"type": "integer", "minimum": 0},
    "not_using":   {"type": "integer", "minimum": 0},
    "group_label": {"type": "string"}
  }
}`

var complianceSchema = jsonschema.MustCompileString("compliance.json", complianceSchemaJSON)

var countFields = []string{"total", "using", "not_using"}

// decodeFigures parses and validates a compliance completion. Numeric
// strings are coerced before validation; a missing total or not_using is 0.
func decodeFigures(raw []byte) (model.ComplianceFigures, error) {
	var f model.ComplianceFigures

	obj, err := jsonfix.DecodeObject(raw)
	if err != nil {
		return f, eris.Wrap(err, "gateway: parse compliance figures")
	}

	for _, k := range countFields {
		switch v := obj[k].(type) {
		case nil:
			if k != "using" {
				delete(obj, k)
			}
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err == nil {
				obj[k] = float64(n)
			}
		}
	}
	if label, ok := obj["group_label"]; ok && label == nil {
		delete(obj, "group_label")
	}

	if err := complianceSchema.Validate(obj); err != nil {
		return f, eris.Wrap(err, "gateway: compliance figures do not match schema")
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return f, eris.Wrap(err, "gateway: marshal compliance figures")
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, eris.Wrap(err, "gateway: decode compliance figures")
	}
	return f, nil
}
