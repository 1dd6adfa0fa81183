package mapping

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/ember.json data/schema.json
var dataFS embed.FS

// Sentinel errors for table loading.
var (
	ErrEmptyTable   = errors.New("mapping table is empty")
	ErrInvalidTable = errors.New("mapping table failed schema validation")
)

// LoadOptions controls how a table is read.
type LoadOptions struct {
	// Validate checks the document against the embedded JSON schema before decoding.
	Validate bool
}

// Load reads a table from JSON or YAML. Both formats decode through yaml.v3
// since a JSON document is valid YAML.
func Load(reader io.Reader, opts LoadOptions) ([]Record, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read mapping table: %w", err)
	}

	return decode(content, opts)
}

// LoadFile reads a table from path.
func LoadFile(path string, opts LoadOptions) ([]Record, error) {
	//nolint:gosec // the mapping table path is operator supplied configuration.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping table %s: %w", path, err)
	}

	records, err := decode(content, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return records, nil
}

var (
	defaultOnce    sync.Once
	defaultRecords []Record
	errDefault     error
)

// Default returns the embedded Ember table. The slice is shared; callers
// must not modify it.
func Default() ([]Record, error) {
	defaultOnce.Do(func() {
		content, err := dataFS.ReadFile("data/ember.json")
		if err != nil {
			errDefault = fmt.Errorf("read embedded table: %w", err)

			return
		}

		defaultRecords, errDefault = decode(content, LoadOptions{})
	})

	return defaultRecords, errDefault
}

func decode(content []byte, opts LoadOptions) ([]Record, error) {
	if opts.Validate {
		var doc any

		err := yaml.Unmarshal(content, &doc)
		if err != nil {
			return nil, fmt.Errorf("parse mapping table: %w", err)
		}

		err = Validate(doc)
		if err != nil {
			return nil, err
		}
	}

	var records []Record

	err := yaml.Unmarshal(content, &records)
	if err != nil {
		return nil, fmt.Errorf("decode mapping table: %w", err)
	}

	if len(records) == 0 {
		return nil, ErrEmptyTable
	}

	return records, nil
}
