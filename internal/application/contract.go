package application

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/apascualco/cinemesh/internal/domain"
	"github.com/go-playground/validator/v10"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

type compiledSchema struct {
	schema   domain.ContractSchema
	patterns map[string]*regexp.Regexp
}

// ContractValidator checks payloads from other services against named
// structural contracts before they are decoded into trusted types.
//
// The baseline check is that every required path is present and non-null.
// In strict mode the per-field rules (type, pattern, enum, minimum, format)
// apply as well. Unknown schemas and unparsable payloads fail closed.
type ContractValidator struct {
	mu       sync.RWMutex
	schemas  map[string]*compiledSchema
	strict   bool
	validate *validator.Validate
}

type ContractOption func(*ContractValidator)

func WithStrictContracts(strict bool) ContractOption {
	return func(v *ContractValidator) {
		v.strict = strict
	}
}

// NewContractValidator comes with the MovieSession and Booking contracts registered.
func NewContractValidator(opts ...ContractOption) *ContractValidator {
	v := &ContractValidator{
		schemas:  make(map[string]*compiledSchema),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(v)
	}

	for _, s := range []domain.ContractSchema{domain.MovieSessionSchema(), domain.BookingSchema()} {
		if err := v.Register(s); err != nil {
			panic(fmt.Sprintf("built-in contract %s: %v", s.Name, err))
		}
	}
	return v
}

// Register adds a schema. Schemas are immutable once registered, so a second
// registration under the same name is rejected.
func (v *ContractValidator) Register(schema domain.ContractSchema) error {
	if schema.Name == "" {
		return fmt.Errorf("%w: schema name is required", domain.ErrInvalidRequest)
	}

	compiled := &compiledSchema{
		schema:   schema,
		patterns: make(map[string]*regexp.Regexp),
	}
	for path, rule := range schema.Fields {
		if rule.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("schema %s field %s: invalid pattern: %w", schema.Name, path, err)
		}
		compiled.patterns[path] = re
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, exists := v.schemas[schema.Name]; exists {
		return fmt.Errorf("schema %s already registered", schema.Name)
	}
	v.schemas[schema.Name] = compiled
	return nil
}

func (v *ContractValidator) Schema(name string) (domain.ContractSchema, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	c, ok := v.schemas[name]
	if !ok {
		return domain.ContractSchema{}, false
	}
	return c.schema, true
}

func (v *ContractValidator) Validate(schemaName string, raw []byte) bool {
	return v.Check(schemaName, raw) == nil
}

// Check is Validate with the reason: ErrUnknownSchema for an unregistered
// name, or a *domain.ContractViolationError listing every failure.
func (v *ContractValidator) Check(schemaName string, raw []byte) error {
	v.mu.RLock()
	compiled, ok := v.schemas[schemaName]
	v.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSchema, schemaName)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &domain.ContractViolationError{
			Schema:     schemaName,
			Violations: []string{fmt.Sprintf("malformed payload: %v", err)},
		}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &domain.ContractViolationError{
			Schema:     schemaName,
			Violations: []string{"malformed payload: trailing data after JSON value"},
		}
	}
	root, isObject := doc.(map[string]any)
	if !isObject {
		return &domain.ContractViolationError{
			Schema:     schemaName,
			Violations: []string{"payload is not a JSON object"},
		}
	}

	var violations []string
	for _, path := range compiled.schema.Required {
		if val, found := lookupPath(root, path); !found || val == nil {
			violations = append(violations, "missing required field: "+path)
		}
	}

	if v.strict {
		paths := make([]string, 0, len(compiled.schema.Fields))
		for path := range compiled.schema.Fields {
			paths = append(paths, path)
		}
		slices.Sort(paths)

		for _, path := range paths {
			val, found := lookupPath(root, path)
			if !found || val == nil {
				continue
			}
			if msg := v.checkRule(compiled, path, val); msg != "" {
				violations = append(violations, fmt.Sprintf("%s: %s", path, msg))
			}
		}
	}

	if len(violations) > 0 {
		return &domain.ContractViolationError{Schema: schemaName, Violations: violations}
	}
	return nil
}

func (v *ContractValidator) checkRule(c *compiledSchema, path string, val any) string {
	rule := c.schema.Fields[path]

	if rule.Type != "" && !hasType(val, rule.Type) {
		return fmt.Sprintf("expected %s", rule.Type)
	}

	if s, isString := val.(string); isString {
		if rule.MinLength > 0 && utf8.RuneCountInString(s) < rule.MinLength {
			return fmt.Sprintf("shorter than %d", rule.MinLength)
		}
		if re := c.patterns[path]; re != nil && !re.MatchString(s) {
			return fmt.Sprintf("does not match %s", rule.Pattern)
		}
		if len(rule.Enum) > 0 && !slices.Contains(rule.Enum, s) {
			return fmt.Sprintf("must be one of %s", strings.Join(rule.Enum, ", "))
		}
		switch rule.Format {
		case domain.FormatEmail:
			if err := v.validate.Var(s, "email"); err != nil {
				return "not a valid email"
			}
		case domain.FormatDateTime:
			if !isDateTime(s) {
				return "not a valid date-time"
			}
		}
	}

	if n, isNumber := val.(json.Number); isNumber && rule.Minimum != nil {
		f, err := n.Float64()
		if err != nil || f < *rule.Minimum {
			return fmt.Sprintf("below minimum %v", *rule.Minimum)
		}
	}

	return ""
}

func lookupPath(root map[string]any, path string) (any, bool) {
	var cur any = root
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func hasType(val any, t domain.FieldType) bool {
	switch t {
	case domain.TypeString:
		_, ok := val.(string)
		return ok
	case domain.TypeNumber:
		_, ok := val.(json.Number)
		return ok
	case domain.TypeInteger:
		n, ok := val.(json.Number)
		if !ok {
			return false
		}
		_, err := n.Int64()
		return err == nil
	case domain.TypeBoolean:
		_, ok := val.(bool)
		return ok
	case domain.TypeObject:
		_, ok := val.(map[string]any)
		return ok
	case domain.TypeArray:
		_, ok := val.([]any)
		return ok
	default:
		return true
	}
}

func isDateTime(s string) bool {
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
