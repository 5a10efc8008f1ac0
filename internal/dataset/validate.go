package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Checks is the typed form of an item's expected/checks.json.
type Checks struct {
	Contains   string `mapstructure:"contains"`
	MinBullets string `mapstructure:"min_bullets"`
}

// Validate checks a generated dataset directory against its own contract:
// manifest shape and count, per-item file layout, meta.json conformance to
// the emitted ItemMeta schema, and decodable checks.json. Returns every
// problem found rather than stopping at the first.
func Validate(root string) []string {
	var errs []string

	manifestPath := filepath.Join(root, "manifest.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return []string{"manifest.json missing"}
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return []string{fmt.Sprintf("manifest invalid: %v", err)}
	}
	if manifest.Count != len(manifest.Items) {
		errs = append(errs, fmt.Sprintf("manifest count %d does not match %d items", manifest.Count, len(manifest.Items)))
	}

	metaSchema, err := compileSchema(filepath.Join(root, "schemas", "ItemMeta.schema.json"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("ItemMeta schema: %v", err))
	}

	for _, id := range manifest.Items {
		for _, e := range validateItemDir(filepath.Join(root, "items", id), metaSchema) {
			errs = append(errs, fmt.Sprintf("%s: %s", id, e))
		}
	}
	return errs
}

func validateItemDir(itemDir string, metaSchema *jsonschema.Schema) []string {
	var errs []string

	inputsDir := filepath.Join(itemDir, "inputs")
	expectedDir := filepath.Join(itemDir, "expected")
	metaPath := filepath.Join(itemDir, "meta.json")

	if !dirExists(inputsDir) || !dirExists(expectedDir) || !fileExists(metaPath) {
		return []string{"missing required files/directories"}
	}

	if metaSchema != nil {
		if err := validateAgainst(metaSchema, metaPath); err != nil {
			errs = append(errs, fmt.Sprintf("meta invalid: %v", err))
		}
	}

	if !fileExists(filepath.Join(inputsDir, "prompt.txt")) {
		errs = append(errs, "inputs/prompt.txt missing")
	}

	checksPath := filepath.Join(expectedDir, "checks.json")
	if !fileExists(checksPath) {
		errs = append(errs, "expected/checks.json missing")
	} else if err := decodeChecks(checksPath); err != nil {
		errs = append(errs, fmt.Sprintf("checks.json invalid: %v", err))
	}

	return errs
}

func compileSchema(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(path)
}

func validateAgainst(schema *jsonschema.Schema, instancePath string) error {
	data, err := os.ReadFile(instancePath)
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(instance)
}

func decodeChecks(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var checks Checks
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &checks,
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
