package config

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// SchemaRegistry manages the CUE schemas raw documents are checked against
// before they are decoded.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// Schema names.
const (
	SchemaCatalog = "catalog"
)

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	if err := sr.RegisterSchema(SchemaCatalog, builtinCatalogSchema, "#Catalog"); err != nil {
		panic(err)
	}

	return sr
}

// RegisterSchema compiles source and registers the definition def under name.
func (sr *SchemaRegistry) RegisterSchema(name, source, def string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(source, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	defVal := val.LookupPath(cue.ParsePath(def))
	if !defVal.Exists() {
		return fmt.Errorf("schema %s does not define %s", name, def)
	}

	sr.schemas[name] = defVal
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateAgainstSchema unifies data with the named schema and requires the
// result to be concrete. Violations are returned as ValidationErrors.
func (sr *SchemaRegistry) ValidateAgainstSchema(schemaName string, data interface{}) error {
	// A cue.Context is not safe for concurrent use.
	sr.mu.Lock()
	defer sr.mu.Unlock()

	schema, ok := sr.schemas[schemaName]
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}

	return nil
}

// ValidationError is one schema violation.
type ValidationError struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects schema violations.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		if e.Path != "" {
			msgs[i] = e.Path + ": " + e.Message
		} else {
			msgs[i] = e.Message
		}
	}
	return "schema validation failed: " + strings.Join(msgs, "; ")
}

// convertCUEErrors flattens a CUE error list.
func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		out = append(out, ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}

// Built-in schema definitions

const builtinCatalogSchema = `
// Requirement is one structure kind and a count. Kind names are matched
// loosely by the loader, so any non-empty string is accepted here.
#Requirement: {
	kind:  string & !=""
	count: int & >=0
}

// Goal is an authored goal tier.
#Goal: {
	id:        string & !=""
	viability: number & >=0
	requirements: [...#Requirement]
	extras?: [...#Requirement]
}

// Preset is an infinite-play goal; its threshold is derived, not authored.
#Preset: {
	id:         string & !=""
	viability?: number & >=0
	requirements: [...#Requirement]
	extras?: [...#Requirement]
}

#InfinitePlay: {
	crossover_fraction: number & >0
	easy_increment:     number & >0
	hard_increment:     number & >0
}

#Stats: {
	viability?:  number
	happiness?:  number
	power?:      number
	sustenance?: number
}

#Catalog: {
	version?: 1
	name?:    string
	goals: [#Goal, ...#Goal]
	presets: {
		easy: [#Preset, ...#Preset]
		hard: [#Preset, ...#Preset]
	}
	infinite_play?: #InfinitePlay
	stats?: [string]: #Stats
}
`
