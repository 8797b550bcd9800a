package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	tariff "prepaid-meter/internal/tariff/domain"
)

// ErrUnsupportedFormat is returned for tariff files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("tariff file: unsupported format")

type document struct {
	Plans []tariff.Plan `yaml:"plans" toml:"plans"`
}

// Load reads a tariff file and merges its plans onto the built-in table.
// The format is chosen by extension: .yaml, .yml or .toml.
func Load(path string) (tariff.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tariff file: %w", err)
	}
	doc, err := decode(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("decode tariff file %s: %w", path, err)
	}

	override := make(tariff.Table, len(doc.Plans))
	for i, plan := range doc.Plans {
		plan.ID = strings.TrimSpace(plan.ID)
		if err := plan.Validate(); err != nil {
			return nil, fmt.Errorf("tariff file %s: plan %d: %w", path, i, err)
		}
		if _, dup := override[plan.ID]; dup {
			return nil, fmt.Errorf("tariff file %s: duplicate plan %q", path, plan.ID)
		}
		if plan.Name == "" {
			plan.Name = plan.ID
		}
		override[plan.ID] = plan
	}
	return tariff.DefaultTable().Merge(override), nil
}

func decode(ext string, data []byte) (document, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return document{}, err
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &doc)
		if err != nil {
			return document{}, err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return document{}, fmt.Errorf("unknown keys %v", undecoded)
		}
	default:
		return document{}, ErrUnsupportedFormat
	}
	return doc, nil
}
