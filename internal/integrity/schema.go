package integrity

import (
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/thinglink/internal/ir"
)

// ContentDefinition is the CUE definition entity content must satisfy.
const ContentDefinition = "#Content"

// ContentSchema validates entity content, which must be JSON, against a
// CUE definition.
//
// Example schema:
//
//	#Content: {
//		title: string & !=""
//		done?: bool
//	}
type ContentSchema struct {
	ctx *cue.Context
	def cue.Value
}

// CompileSchema compiles CUE source defining #Content.
func CompileSchema(src string) (*ContentSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := v.LookupPath(cue.ParsePath(ContentDefinition))
	if !def.Exists() {
		return nil, &SchemaError{Field: ContentDefinition, Message: "definition is required", Pos: v.Pos()}
	}
	if err := def.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return &ContentSchema{ctx: ctx, def: def}, nil
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*ContentSchema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	schema, err := CompileSchema(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return schema, nil
}

// Validate reports an InvariantViolation unless content is JSON that
// unifies with #Content into a concrete value.
func (s *ContentSchema) Validate(content string) error {
	if !json.Valid([]byte(content)) {
		return ir.Invariant("content is not valid JSON")
	}
	data := s.ctx.CompileBytes([]byte(content), cue.Filename("content.json"))
	if err := data.Err(); err != nil {
		return ir.Invariant("content: %v", err)
	}
	if err := s.def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return ir.Invariant("content does not match %s: %v", ContentDefinition, errors.Details(err, nil))
	}
	return nil
}

// SchemaError is a schema compilation failure with its source position.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from the first CUE error.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &SchemaError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
