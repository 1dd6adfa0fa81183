package mapping

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation of a table document.
type ValidationError struct {
	Problems []string
}

func (verr *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidTable, strings.Join(verr.Problems, "; "))
}

func (verr *ValidationError) Unwrap() error {
	return ErrInvalidTable
}

// Schema returns the embedded JSON schema for table documents.
func Schema() []byte {
	content, err := dataFS.ReadFile("data/schema.json")
	if err != nil {
		// The schema is compiled into the binary.
		panic(err)
	}

	return content
}

// Validate checks a decoded document (as produced by yaml.v3 or encoding/json
// into any) against the table schema.
func Validate(doc any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(Schema()),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate mapping table: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
	}

	return &ValidationError{Problems: problems}
}
