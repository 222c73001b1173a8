package catalog

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode parses a catalog document.
//
// The bytes are compiled with CUE, so both JSON exports and hand-written CUE
// files (with comments, unquoted keys and references) are accepted. The
// concrete value is exported as JSON and decoded into the catalog types.
// filename is used for error positions only.
func Decode(data []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog %s: %w", filename, err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("catalog %s is not concrete: %w", filename, err)
	}

	exported, err := value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export catalog %s: %w", filename, err)
	}

	return DecodeJSON(exported)
}

// DecodeJSON parses a catalog already in JSON form, as stored in the cache.
func DecodeJSON(data []byte) (*Catalog, error) {
	var doc map[Category]map[string]Item
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc), nil
}
