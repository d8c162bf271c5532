// Package settings implements the per-folder configuration document.
//
// Settings are stored as one nested JSON document on the folder row and
// addressed by dot paths. Every known key has a default and a validation
// rule; validation happens when a document is assembled from raw input or
// loaded from storage, never at read time. Reads resolve the default when
// the key is absent.
package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/bookmarkd/bookmarkd/internal/domain"
)

const emptyDoc = "{}"

// Settings wraps a validated JSON document. The zero value behaves as an
// empty document where every read yields its default.
type Settings struct {
	doc string
}

// Default returns settings where every key resolves to its default.
func Default() Settings {
	return Settings{doc: emptyDoc}
}

// FromJSON validates raw against the schema and wraps it. Unknown key paths
// and malformed values fail with an InvalidSetting domain error.
func FromJSON(raw string) (Settings, error) {
	if raw == "" {
		return Default(), nil
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Settings{}, domain.InvalidSetting("InvalidFolderSettings", "The folder settings document is not valid JSON.")
	}

	if err := validate(doc); err != nil {
		return Settings{}, err
	}

	return Settings{doc: raw}, nil
}

// FromMap normalizes loosely-typed input (request payloads), validates it
// and assembles a document. Normalization of booleans ("0", 0, "false") is
// an explicit pre-processing step before validation; validation itself
// never coerces.
func FromMap(values map[string]any) (Settings, error) {
	normalized, err := Normalize(values)
	if err != nil {
		return Settings{}, err
	}

	if err := validate(normalized); err != nil {
		return Settings{}, err
	}

	raw, err := json.Marshal(normalized)
	if err != nil {
		return Settings{}, err
	}

	return Settings{doc: string(raw)}, nil
}

// JSON returns the stored document.
func (s Settings) JSON() string {
	if s.doc == "" {
		return emptyDoc
	}
	return s.doc
}

// Bool reads a boolean setting, falling back to the schema default. Bool
// panics on keys not registered as booleans; that is a programming error,
// not an input error.
func (s Settings) Bool(key string) bool {
	def := mustLookup(key, TypeBool)

	result := gjson.Get(s.JSON(), key)
	if !result.Exists() {
		return def.Default.(bool)
	}
	return result.Bool()
}

// Int reads an integer setting, falling back to the schema default.
func (s Settings) Int(key string) int64 {
	def := mustLookup(key, TypeInt)

	result := gjson.Get(s.JSON(), key)
	if !result.Exists() {
		return def.Default.(int64)
	}
	return result.Int()
}

// String reads a string or enum setting, falling back to the schema default.
func (s Settings) String(key string) string {
	def := mustLookup(key, TypeString)

	result := gjson.Get(s.JSON(), key)
	if !result.Exists() {
		return def.Default.(string)
	}
	return result.String()
}

func mustLookup(key string, typ Type) Definition {
	def, ok := lookup(key)
	if !ok {
		panic(fmt.Sprintf("settings: unknown key %q", key))
	}
	if def.Type != typ {
		panic(fmt.Sprintf("settings: key %q is not of type %v", key, typ))
	}
	return def
}

// Normalize coerces loosely-typed request values for boolean keys:
// "0"/"1"/"true"/"false" and 0/1 become real booleans. Other values pass
// through untouched for validation to judge.
func Normalize(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}

	for _, leaf := range flatten(out, "") {
		def, ok := lookup(leaf.path)
		if !ok || def.Type != TypeBool {
			continue
		}

		normalized, ok := normalizeBool(leaf.value)
		if !ok {
			continue
		}
		setPath(out, leaf.path, normalized)
	}

	return out, nil
}

func normalizeBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch val {
		case "0", "false":
			return false, true
		case "1", "true":
			return true, true
		}
	case float64:
		if val == 0 {
			return false, true
		}
		if val == 1 {
			return true, true
		}
	case int:
		if val == 0 {
			return false, true
		}
		if val == 1 {
			return true, true
		}
	}
	return false, false
}

// validate walks every leaf of doc, rejecting unknown key paths and values
// that fail their definition. Unknown paths are caught here so typos in
// API input surface immediately instead of silently never matching a read.
func validate(doc map[string]any) error {
	leaves := flatten(doc, "")
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].path < leaves[j].path })

	for _, leaf := range leaves {
		def, ok := lookup(leaf.path)
		if !ok {
			return domain.InvalidSetting("UnknownFolderSetting", fmt.Sprintf("Unknown folder setting [%s].", leaf.path))
		}

		if err := def.check(leaf.value); err != nil {
			return domain.InvalidSetting("InvalidFolderSettingValue", fmt.Sprintf("Invalid value for folder setting [%s].", leaf.path))
		}
	}

	return nil
}

type leaf struct {
	path  string
	value any
}

func flatten(doc map[string]any, prefix string) []leaf {
	var leaves []leaf
	for k, v := range doc {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		if nested, ok := v.(map[string]any); ok {
			leaves = append(leaves, flatten(nested, path)...)
			continue
		}
		leaves = append(leaves, leaf{path: path, value: v})
	}
	return leaves
}

func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
