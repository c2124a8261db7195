package aptconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file.  Files ending in .yaml or .yml are
// YAML; anything else is TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - configuration path given by the operator
	if err != nil {
		return nil, errors.Wrap(err, "read configuration")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data)
	}
	return DecodeTOML(data)
}

// DecodeTOML decodes a TOML configuration.
func DecodeTOML(data []byte) (*Config, error) {
	config := NewConfig()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, configError(errors.Wrap(err, "decode TOML"))
	}

	for _, key := range md.Keys() {
		if len(key) == 2 && key[0] == "sources" {
			config.sourceOrder = append(config.sourceOrder, key[1])
		}
	}
	for _, key := range md.Undecoded() {
		config.undecoded = append(config.undecoded, key.String())
	}
	return config, nil
}

// mappingValue returns the value node of key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// DecodeYAML decodes a YAML configuration.  The settings may also be
// nested under a top-level "apt" key.  Unknown keys are errors.
func DecodeYAML(data []byte) (*Config, error) {
	config := NewConfig()

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, configError(errors.Wrap(err, "decode YAML"))
	}
	if len(root.Content) == 0 {
		return config, nil
	}

	doc := root.Content[0]
	if apt := mappingValue(doc, "apt"); apt != nil && len(doc.Content) == 2 {
		doc = apt
		var err error
		data, err = yaml.Marshal(doc)
		if err != nil {
			return nil, errors.Wrap(err, "re-encode apt section")
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil {
		return nil, configError(errors.Wrap(err, "decode YAML"))
	}

	if sources := mappingValue(doc, "sources"); sources != nil && sources.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(sources.Content); i += 2 {
			config.sourceOrder = append(config.sourceOrder, sources.Content[i].Value)
		}
	}
	return config, nil
}
