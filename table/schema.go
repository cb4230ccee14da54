package table

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Schema file format:
//
//	tables:
//	  - name: user-contacts
//	    partitionKey: {name: user_id, kind: S}
//	    sortKey: {name: email, kind: S}
type schemaFile struct {
	Tables []tableYAML `yaml:"tables"`
}

type tableYAML struct {
	Name         string   `yaml:"name"`
	PartitionKey keyYAML  `yaml:"partitionKey"`
	SortKey      *keyYAML `yaml:"sortKey,omitempty"`
}

type keyYAML struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // "S", "N", or "B"
}

// Load reads table definitions from a YAML schema document.
func Load(r io.Reader) ([]TableDefinition, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	defs := make([]TableDefinition, 0, len(file.Tables))
	for _, t := range file.Tables {
		def, err := t.toDefinition()
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile reads table definitions from a YAML schema file.
func LoadFile(path string) ([]TableDefinition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func (t tableYAML) toDefinition() (TableDefinition, error) {
	if t.Name == "" {
		return TableDefinition{}, fmt.Errorf("table name is required")
	}
	pk, err := t.PartitionKey.toKeyDef()
	if err != nil {
		return TableDefinition{}, fmt.Errorf("partitionKey: %w", err)
	}
	def := TableDefinition{
		Name: t.Name,
		KeyDefinitions: PrimaryKeyDefinition{
			PartitionKey: pk,
		},
	}
	if t.SortKey != nil {
		sk, err := t.SortKey.toKeyDef()
		if err != nil {
			return TableDefinition{}, fmt.Errorf("sortKey: %w", err)
		}
		def.KeyDefinitions.SortKey = sk
	}
	return def, nil
}

func (k keyYAML) toKeyDef() (KeyDef, error) {
	if k.Name == "" {
		return KeyDef{}, fmt.Errorf("key name is required")
	}
	switch KeyKind(k.Kind) {
	case KeyKindS, KeyKindN, KeyKindB:
	default:
		return KeyDef{}, fmt.Errorf("invalid key kind %q, want S, N, or B", k.Kind)
	}
	return KeyDef{Name: k.Name, Kind: KeyKind(k.Kind)}, nil
}
