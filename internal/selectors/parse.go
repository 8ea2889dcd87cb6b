// internal/selectors/parse.go
package selectors

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a model reply holds no decodable JSON.
var ErrNoJSON = errors.New("no JSON found in response")

var (
	fencedObject = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*?\\})\\s*```")
	bareObject   = regexp.MustCompile(`\{[\s\S]*\}`)
	fencedArray  = regexp.MustCompile("```(?:json)?\\s*(\\[[\\s\\S]*?\\])\\s*```")
	bareArray    = regexp.MustCompile(`\[[\s\S]*\]`)
)

// decodeTolerant tries, in order: the whole text, the first fenced code
// block, then the widest bracket-delimited span.
func decodeTolerant(text string, open string, fenced, bare *regexp.Regexp, v interface{}) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, open) && json.Unmarshal([]byte(text), v) == nil {
		return nil
	}
	if m := fenced.FindStringSubmatch(text); m != nil {
		if json.Unmarshal([]byte(m[1]), v) == nil {
			return nil
		}
	}
	if m := bare.FindString(text); m != "" {
		if json.Unmarshal([]byte(m), v) == nil {
			return nil
		}
	}
	return ErrNoJSON
}

// ParseObject decodes a selector-synthesis reply.
func ParseObject(text string) (Set, error) {
	var w wireSet
	if err := decodeTolerant(text, "{", fencedObject, bareObject, &w); err != nil {
		return Set{}, err
	}
	return fromWire(w), nil
}

// ParseArray decodes a JSON array reply into a slice of T.
func ParseArray[T any](text string) ([]T, error) {
	var out []T
	if err := decodeTolerant(text, "[", fencedArray, bareArray, &out); err != nil {
		return nil, err
	}
	return out, nil
}
