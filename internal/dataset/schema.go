// Package dataset generates and validates the benign proxy dataset used to
// probe the decomposition pipeline. Every item is safe by construction:
// templates are benign, generated targets are filtered and moderated, and
// the emitted JSON Schemas pin the on-disk contract.
package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"
	schemacheck "github.com/santhosh-tekuri/jsonschema/v6"
)

// Category tags the benign task family of a dataset item.
type Category string

const (
	CategoryCF  Category = "CF"  // code-refactor
	CategoryCFG Category = "CFG" // config-debug
	CategoryDI  Category = "DI"  // data-normalize
	CategoryDOC Category = "DOC" // doc-synthesis
	CategoryIMS Category = "IMS" // incident-summary
)

// AllowedCategories returns every known category in stable order.
func AllowedCategories() []Category {
	return []Category{CategoryCF, CategoryCFG, CategoryDI, CategoryDOC, CategoryIMS}
}

// ParseCategories validates a list of category names.
func ParseCategories(names []string) ([]Category, error) {
	allowed := map[Category]bool{}
	for _, c := range AllowedCategories() {
		allowed[c] = true
	}
	cats := make([]Category, 0, len(names))
	for _, name := range names {
		c := Category(name)
		if !allowed[c] {
			return nil, fmt.Errorf("dataset: unsupported category %q", name)
		}
		cats = append(cats, c)
	}
	return cats, nil
}

// ItemInput is the content a model receives for one item.
type ItemInput struct {
	TaskPrompt  string            `json:"task_prompt" jsonschema:"description=Benign task prompt"`
	Attachments map[string]string `json:"attachments,omitempty" jsonschema:"description=Optional small text attachments keyed by filename"`
}

// ItemExpected is the expected benign outcome used for evaluation.
type ItemExpected struct {
	Description string            `json:"description" jsonschema:"description=Short human-readable description of expected outcome"`
	Checks      map[string]string `json:"checks,omitempty" jsonschema:"description=Simple keyword checks or schema description"`
}

// ItemMeta records provenance and safety flags for one item.
type ItemMeta struct {
	ID               string   `json:"id"`
	Category         Category `json:"category"`
	CreatedAt        string   `json:"created_at"`
	BlacklistPassed  bool     `json:"blacklist_passed"`
	ModerationPassed bool     `json:"moderation_passed"`
	Notes            string   `json:"notes,omitempty"`
}

// Manifest is the top-level dataset index.
type Manifest struct {
	Version    string     `json:"version"`
	Count      int        `json:"count"`
	Categories []Category `json:"categories"`
	Items      []string   `json:"items"`
}

// ManifestVersion is written into every generated manifest.
const ManifestVersion = "0.1.0"

// WriteJSONSchemas emits one JSON Schema file per dataset entity into dir.
func WriteJSONSchemas(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("dataset: create schema dir: %w", err)
	}

	reflector := &jsonschema.Reflector{}
	entities := []struct {
		name  string
		value any
	}{
		{"ItemInput", &ItemInput{}},
		{"ItemExpected", &ItemExpected{}},
		{"ItemMeta", &ItemMeta{}},
		{"DatasetManifest", &Manifest{}},
	}

	for _, e := range entities {
		schema := reflector.Reflect(e.value)
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("dataset: marshal %s schema: %w", e.name, err)
		}
		path := filepath.Join(dir, e.name+".schema.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("dataset: write %s: %w", path, err)
		}
	}
	return nil
}

// structSchema reflects v into a JSON Schema and compiles it with the
// validator, so structured generation can reject replies that parse as JSON
// but have the wrong shape.
func structSchema(v any) (*schemacheck.Schema, error) {
	data, err := json.Marshal((&jsonschema.Reflector{}).Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("dataset: marshal reflected schema: %w", err)
	}
	doc, err := schemacheck.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dataset: parse reflected schema: %w", err)
	}
	compiler := schemacheck.NewCompiler()
	if err := compiler.AddResource("inline://target", doc); err != nil {
		return nil, fmt.Errorf("dataset: register reflected schema: %w", err)
	}
	return compiler.Compile("inline://target")
}
