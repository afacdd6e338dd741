package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrUnknownKind     = errors.New("unknown component kind")
)

// Extensions lists the file extensions Decode understands.
var Extensions = []string{".yaml", ".yml", ".json", ".hcl"}

// Manifest is the decoded content of one source.
type Manifest struct {
	Components []Component `yaml:"components" json:"components"`
}

// Component declares one registrable component.
type Component struct {
	ID           string         `yaml:"id" json:"id"`
	Name         string         `yaml:"name,omitempty" json:"name,omitempty"`
	Dependencies []string       `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Kind         string         `yaml:"kind,omitempty" json:"kind,omitempty"`
	Arity        *int           `yaml:"arity,omitempty" json:"arity,omitempty"`
	Value        any            `yaml:"value,omitempty" json:"value,omitempty"`
	Properties   map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// EffectiveKind returns Kind, or "value" when only a value is given and
// "object" otherwise.
func (c Component) EffectiveKind() string {
	if c.Kind != "" {
		return strings.ToLower(c.Kind)
	}
	if c.Value != nil {
		return KindValue
	}
	return KindObject
}

// EffectiveArity returns Arity, defaulting to the dependency count.
func (c Component) EffectiveArity() int {
	if c.Arity != nil {
		return *c.Arity
	}
	return len(c.Dependencies)
}

// Decode parses text according to the extension of location.
func Decode(location, text string) (*Manifest, error) {
	var (
		m   *Manifest
		err error
	)
	switch strings.ToLower(path.Ext(location)) {
	case ".hcl":
		m, err = decodeHCL(location, text)
	default:
		m, err = decodeYAML(text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, location, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, location, err)
	}
	return m, nil
}

func (m *Manifest) validate() error {
	for i, c := range m.Components {
		if c.ID == "" {
			return fmt.Errorf("component %d has no id", i)
		}
		if c.Arity != nil && *c.Arity < 0 {
			return fmt.Errorf("component %s has negative arity", c.ID)
		}
	}
	return nil
}

func decodeYAML(text string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal([]byte(text), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type hclFile struct {
	Components []*hclComponent `hcl:"component,block"`
}

type hclComponent struct {
	ID           string    `hcl:"id,label"`
	Name         *string   `hcl:"name,optional"`
	Dependencies []string  `hcl:"dependencies,optional"`
	Kind         *string   `hcl:"kind,optional"`
	Arity        *int      `hcl:"arity,optional"`
	Value        cty.Value `hcl:"value,optional"`
	Properties   cty.Value `hcl:"properties,optional"`
}

func decodeHCL(location, text string) (*Manifest, error) {
	file, diags := hclparse.NewParser().ParseHCL([]byte(text), location)
	if diags.HasErrors() {
		return nil, diags
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	m := &Manifest{Components: make([]Component, 0, len(parsed.Components))}
	for _, block := range parsed.Components {
		c := Component{
			ID:           block.ID,
			Dependencies: block.Dependencies,
			Arity:        block.Arity,
		}
		if block.Name != nil {
			c.Name = *block.Name
		}
		if block.Kind != nil {
			c.Kind = *block.Kind
		}

		value, err := ctyToGo(block.Value)
		if err != nil {
			return nil, fmt.Errorf("component %s value: %w", block.ID, err)
		}
		c.Value = value

		props, err := ctyToGo(block.Properties)
		if err != nil {
			return nil, fmt.Errorf("component %s properties: %w", block.ID, err)
		}
		if props != nil {
			asMap, ok := props.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("component %s properties must be an object", block.ID)
			}
			c.Properties = asMap
		}
		m.Components = append(m.Components, c)
	}
	return m, nil
}

// ctyToGo converts a cty value to plain Go values through its JSON form.
func ctyToGo(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsWhollyKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
