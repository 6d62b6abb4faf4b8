// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned by DecodeJSON when the reply has no JSON object.
var ErrNoJSON = errors.New("no JSON object in model reply")

// DecodeJSON decodes the outermost JSON object in a model reply into v.
// Models often wrap the object in prose or a code fence, so everything
// before the first '{' and after the last '}' is ignored.
func DecodeJSON(reply string, v any) error {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(reply[start:end+1]), v)
}
