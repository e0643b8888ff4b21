package conversation

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ConfigSchema returns the JSON schema describing GenerationConfig.
// Fields are optional (absent fields keep their defaults) but unknown
// keys are rejected, so typos in a config file fail loudly instead of
// being silently ignored.
func ConfigSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(&GenerationConfig{})
	schema.Version = ""

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal generation config schema")
	}
	return b, nil
}

// ValidateConfigDocument checks a raw JSON document against the
// GenerationConfig schema.
func ValidateConfigDocument(doc []byte) error {
	schemaBytes, err := ConfigSchema()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return errors.Wrap(err, "could not validate generation config")
	}
	if !result.Valid() {
		descs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			descs = append(descs, e.String())
		}
		return errors.Errorf("invalid generation config: %s", strings.Join(descs, "; "))
	}
	return nil
}

// ParseConfigFile reads a YAML (or JSON, which is a YAML subset)
// generation config, validates it, and overlays it onto the defaults.
func ParseConfigFile(data []byte) (*GenerationConfig, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "could not parse generation config file")
	}
	if raw == nil {
		return NewGenerationConfig(), nil
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "could not convert generation config to JSON")
	}
	if err := ValidateConfigDocument(doc); err != nil {
		return nil, err
	}

	cfg := NewGenerationConfig()
	if err := json.Unmarshal(doc, cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode generation config")
	}
	return cfg, nil
}
