package form

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Format is the serialization of a definition document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks a format from a file extension. Unknown extensions
// are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadFile reads and decodes a definition from disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	def, err := DecodeBytes(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return def, nil
}

// Decode reads a definition document from r.
func Decode(r io.Reader, format Format) (*Definition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	return DecodeBytes(data, format)
}

// DecodeBytes decodes a definition document. Legacy key spellings are
// normalized, then the document shape is checked against the embedded CUE
// schema before it is decoded into a Definition. Semantic checks are left
// to Validate.
func DecodeBytes(data []byte, format Format) (*Definition, error) {
	var raw any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("definition document must be an object")
	}
	normalizeDefinition(doc)

	if err := CheckShape(doc); err != nil {
		return nil, err
	}

	// Round-trip through JSON so YAML and JSON decode identically.
	buf, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encoding definition: %w", err)
	}
	var def Definition
	if err := json.Unmarshal(buf, &def); err != nil {
		return nil, fmt.Errorf("decoding definition: %w", err)
	}
	return &def, nil
}

// ── CUE shape check ─────────────────────────────────────────────────────────

type shapeChecker struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
	err    error
}

var (
	checkerOnce sync.Once
	checker     *shapeChecker
)

func loadChecker() *shapeChecker {
	checkerOnce.Do(func() {
		ctx := cuecontext.New()
		c := &shapeChecker{ctx: ctx}
		root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if root.Err() != nil {
			c.err = fmt.Errorf("compiling definition schema: %w", root.Err())
		} else {
			c.schema = root.LookupPath(cue.ParsePath("#Definition"))
			c.err = c.schema.Err()
		}
		checker = c
	})
	return checker
}

// CheckShape validates a generic document (as produced by encoding/json or
// yaml.v3) against the #Definition schema. Violations are returned as a
// *ValidationError with one problem per CUE error.
func CheckShape(doc map[string]any) error {
	c := loadChecker()
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.ctx.Encode(doc)
	if v.Err() != nil {
		return fmt.Errorf("encoding definition for schema check: %w", v.Err())
	}
	err := c.schema.Unify(v).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		verr.Add(Problem{
			Field:   strings.Join(e.Path(), "."),
			Message: "shape: " + fmt.Sprintf(format, args...),
		})
	}
	if len(verr.Problems) == 0 {
		verr.Add(Problem{Message: "shape: " + err.Error()})
	}
	return verr
}

// ── Legacy key normalization ────────────────────────────────────────────────

var (
	itemAliases = map[string]string{
		"enableOperator": "enableBehavior",
		"children":       "item",
	}
	conditionAliases = map[string]string{
		"referencedLinkId": "question",
		"comparandLiteral": "answer",
		"comparandLinkId":  "answerLinkId",
	}
	autofillAliases = map[string]string{
		"expression": "valueExpression",
		"condition":  "autofillWhen",
	}
)

func normalizeDefinition(doc map[string]any) {
	if items, ok := doc["item"].([]any); ok {
		for _, it := range items {
			normalizeItem(it)
		}
	}
}

func normalizeItem(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	rename(m, itemAliases)
	normalizeBehavior(m, "enableBehavior")
	normalizeConditions(m["enableWhen"])
	if rules, ok := m["autofillValues"].([]any); ok {
		for _, r := range rules {
			rm, ok := r.(map[string]any)
			if !ok {
				continue
			}
			rename(rm, autofillAliases)
			normalizeBehavior(rm, "autofillBehavior")
			normalizeConditions(rm["autofillWhen"])
		}
	}
	if b, ok := m["bounds"].(map[string]any); ok {
		for _, key := range []string{"min", "max"} {
			switch bv := b[key].(type) {
			case string:
				b[key] = map[string]any{"expression": bv}
			case float64, int:
				b[key] = map[string]any{"value": bv}
			}
		}
	}
	if children, ok := m["item"].([]any); ok {
		for _, c := range children {
			normalizeItem(c)
		}
	}
}

func normalizeConditions(v any) {
	conds, ok := v.([]any)
	if !ok {
		return
	}
	for _, c := range conds {
		if cm, ok := c.(map[string]any); ok {
			rename(cm, conditionAliases)
		}
	}
}

func normalizeBehavior(m map[string]any, key string) {
	s, ok := m[key].(string)
	if !ok {
		return
	}
	switch strings.ToUpper(s) {
	case "AND":
		m[key] = string(BehaviorAll)
	case "OR":
		m[key] = string(BehaviorAny)
	default:
		m[key] = strings.ToUpper(s)
	}
}

func rename(m map[string]any, aliases map[string]string) {
	for from, to := range aliases {
		v, ok := m[from]
		if !ok {
			continue
		}
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
	}
}
