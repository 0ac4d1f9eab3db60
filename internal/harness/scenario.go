package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/compiler"
)

// Scenario defines a conformance scenario: one schema, one record set, and
// a list of filter/order cases whose results every backend must agree on.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path of a CUE schema file, relative to the scenario
	// file. Exactly one of Schema and SchemaSource is set.
	Schema string `yaml:"schema,omitempty"`

	// SchemaSource is inline CUE schema text.
	SchemaSource string `yaml:"schema_source,omitempty"`

	// Table names the schema type the records follow.
	Table string `yaml:"table"`

	// Records are the documents every case runs against. Each needs a
	// string "id".
	Records []map[string]any `yaml:"records"`

	// Cases are executed in order.
	Cases []Case `yaml:"cases"`
}

// Case is one filter/order pair and its expected outcome.
type Case struct {
	Name string `yaml:"name"`

	// Filter is the filter tree in its YAML form. Empty means no filter.
	Filter yaml.Node `yaml:"filter,omitempty"`

	// Order is the sort tree in its YAML form. Empty means no ordering.
	Order yaml.Node `yaml:"order,omitempty"`

	// Expect lists the matching record ids in result order. Use [] for no
	// matches.
	Expect []string `yaml:"expect,omitempty"`

	// Error is the expected compile error code, e.g. UNKNOWN_FIELD.
	Error string `yaml:"error,omitempty"`

	// Backends restricts the case to the named backends. Empty means the
	// default set.
	Backends []string `yaml:"backends,omitempty"`
}

var errorCodes = []string{
	string(compiler.CodeUnknownField),
	string(compiler.CodeNotNavigable),
	string(compiler.CodeTypeMismatch),
	string(compiler.CodeUnsupportedOperator),
	string(compiler.CodeMalformedAST),
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML. Schema paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "case:" vs "cases:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Schema == "") == (s.SchemaSource == "") {
		return fmt.Errorf("exactly one of schema and schema_source is required")
	}

	if s.Table == "" {
		return fmt.Errorf("table is required")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Records))
	for i, rec := range s.Records {
		id, ok := rec["id"].(string)
		if !ok || id == "" {
			return fmt.Errorf("records[%d]: string id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("records[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
	}

	names := make(map[string]bool, len(s.Cases))
	for i := range s.Cases {
		if err := validateCase(i, &s.Cases[i]); err != nil {
			return err
		}
		if names[s.Cases[i].Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, s.Cases[i].Name)
		}
		names[s.Cases[i].Name] = true
	}

	return nil
}

// validateCase validates a single case.
func validateCase(index int, c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("cases[%d]: name is required", index)
	}

	switch {
	case c.Error != "" && c.Expect != nil:
		return fmt.Errorf("cases[%d]: expect and error are mutually exclusive", index)
	case c.Error == "" && c.Expect == nil:
		return fmt.Errorf("cases[%d]: one of expect or error is required", index)
	case c.Error != "" && !slices.Contains(errorCodes, c.Error):
		return fmt.Errorf("cases[%d]: unknown error code %q", index, c.Error)
	}

	for _, b := range c.Backends {
		if !slices.Contains(BackendNames, b) {
			return fmt.Errorf("cases[%d]: unknown backend %q", index, b)
		}
	}

	return nil
}
