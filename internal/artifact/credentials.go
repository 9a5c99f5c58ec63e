package artifact

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/payai/internal/jsonfix"
)

// unquoteDocument turns a key that was stored as a JSON string literal
// ("{\"type\": ...}") back into the object it encodes.
var unquoteDocument = jsonfix.Repair{
	Name: "unquote_document",
	Apply: func(b []byte) []byte {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return b
		}
		return []byte(s)
	},
}

// ParseServiceAccount accepts either the key JSON itself or a path to it
// and returns normalized key JSON. Malformed JSON goes through the
// tolerant parser; a *jsonfix.ParseError carries the failure position.
func ParseServiceAccount(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, eris.New("artifact: service account not configured")
	}

	raw := []byte(value)
	if !strings.HasPrefix(value, "{") && !strings.HasPrefix(value, `"`) {
		b, err := os.ReadFile(value)
		if err != nil {
			return nil, eris.Wrapf(err, "artifact: service account not found at %s and is not JSON", value)
		}
		raw = b
	}

	fields, err := jsonfix.DecodeObject(raw, unquoteDocument)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: parse service account")
	}

	typ, _ := fields["type"].(string)
	email, _ := fields["client_email"].(string)
	key, _ := fields["private_key"].(string)
	switch {
	case typ != "service_account":
		return nil, eris.Errorf("artifact: credentials type %q is not service_account", typ)
	case email == "":
		return nil, eris.New("artifact: service account has no client_email")
	case !strings.Contains(key, "PRIVATE KEY"):
		return nil, eris.New("artifact: service account has no private_key")
	}

	// Keys pasted through shells often carry literal \n sequences.
	fields["private_key"] = strings.ReplaceAll(key, `\n`, "\n")

	b, err := json.Marshal(fields)
	return b, eris.Wrap(err, "artifact: encode service account")
}
