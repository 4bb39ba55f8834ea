// Parses patch manifest YAML documents.

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	patcherrors "github.com/maruel/jsonlpatch/internal/errors"
	"github.com/maruel/jsonlpatch/internal/patcher"
)

// currentVersion is the only manifest format version understood.
const currentVersion = 1

// Manifest describes one patch run: which store, which records, which fields.
type Manifest struct {
	Version        int                       `yaml:"version"`
	File           string                    `yaml:"file"`
	Timestamp      string                    `yaml:"timestamp"`
	IDField        string                    `yaml:"id_field,omitempty"`
	TimestampField string                    `yaml:"timestamp_field,omitempty"`
	Malformed      string                    `yaml:"malformed,omitempty"` // "drop" or "preserve"
	Merge          string                    `yaml:"merge,omitempty"`     // "shallow" or "merge-patch"
	Updates        map[string]map[string]any `yaml:"updates"`
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, patcherrors.InvalidManifest("failed to parse manifest").Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, patcherrors.InvalidManifest("invalid manifest").Wrap(err)
	}
	return &m, nil
}

// Validate checks that the manifest is well-formed and every update value can
// be written as JSON.
func (m *Manifest) Validate() error {
	if m.Version != currentVersion {
		return fmt.Errorf("unsupported version %d", m.Version)
	}
	if m.File == "" {
		return fmt.Errorf("file is required")
	}
	if m.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if _, err := m.malformedPolicy(); err != nil {
		return err
	}
	if _, err := m.mergeStrategy(); err != nil {
		return err
	}
	for id, fields := range m.Updates {
		if id == "" {
			return fmt.Errorf("update with empty id")
		}
		// yaml.v3 decodes mappings with non-string keys as map[any]any,
		// which cannot be encoded as JSON.
		if _, err := json.Marshal(fields); err != nil {
			return fmt.Errorf("update %q: %w", id, err)
		}
	}
	return nil
}

// Options returns the patcher options described by the manifest.
func (m *Manifest) Options() (patcher.Options, error) {
	policy, err := m.malformedPolicy()
	if err != nil {
		return patcher.Options{}, err
	}
	strategy, err := m.mergeStrategy()
	if err != nil {
		return patcher.Options{}, err
	}
	return patcher.Options{
		IDField:        m.IDField,
		TimestampField: m.TimestampField,
		Timestamp:      m.Timestamp,
		Malformed:      policy,
		Merge:          strategy,
	}, nil
}

// Set returns the patch set described by the manifest.
func (m *Manifest) Set() patcher.Set {
	set := make(patcher.Set, len(m.Updates))
	for id, fields := range m.Updates {
		set[id] = patcher.Fields(fields)
	}
	return set
}

func (m *Manifest) malformedPolicy() (patcher.MalformedPolicy, error) {
	switch m.Malformed {
	case "", "drop":
		return patcher.DropMalformed, nil
	case "preserve":
		return patcher.PreserveMalformed, nil
	default:
		return 0, fmt.Errorf("unknown malformed policy %q", m.Malformed)
	}
}

func (m *Manifest) mergeStrategy() (patcher.MergeStrategy, error) {
	switch m.Merge {
	case "", "shallow":
		return patcher.MergeShallow, nil
	case "merge-patch":
		return patcher.MergePatch, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q", m.Merge)
	}
}
