package schema

import (
	"io"
	"os"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The YAML schema file format:
//
//	schemas:
//	  - name: LeakyRelu
//	    domain: ""
//	    since_version: 16
//	    inputs: [X]
//	    outputs: [Y]
//	    attributes:
//	      - name: alpha
//	        type: float
//	        default: 0.01
type yamlFile struct {
	Schemas []yamlSchema `yaml:"schemas"`
}

type yamlSchema struct {
	Name         string     `yaml:"name"`
	Domain       string     `yaml:"domain"`
	SinceVersion int64      `yaml:"since_version"`
	Doc          string     `yaml:"doc"`
	Deprecated   bool       `yaml:"deprecated"`
	Inputs       []string   `yaml:"inputs"`
	Outputs      []string   `yaml:"outputs"`
	Attributes   []yamlAttr `yaml:"attributes"`
}

type yamlAttr struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	Required bool      `yaml:"required"`
	Doc      string    `yaml:"doc"`
	Default  yaml.Node `yaml:"default"`
}

// LoadYAML parses schemas from r.
func LoadYAML(r io.Reader) ([]*OpSchema, error) {
	var file yamlFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode schema YAML")
	}
	schemas := make([]*OpSchema, 0, len(file.Schemas))
	for _, ys := range file.Schemas {
		s := &OpSchema{
			Name:         ys.Name,
			Domain:       ys.Domain,
			SinceVersion: ys.SinceVersion,
			Doc:          ys.Doc,
			Deprecated:   ys.Deprecated,
			Inputs:       ys.Inputs,
			Outputs:      ys.Outputs,
			Attributes:   make(map[string]AttrSpec, len(ys.Attributes)),
		}
		for _, ya := range ys.Attributes {
			spec, err := ya.spec()
			if err != nil {
				return nil, errors.Wrapf(err, "schema %s(%d)", ys.Name, ys.SinceVersion)
			}
			s.Attributes[spec.Name] = spec
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (ya yamlAttr) spec() (AttrSpec, error) {
	attrType, ok := ir.ParseAttrType(ya.Type)
	if !ok {
		return AttrSpec{}, errors.Errorf("attribute %q: unknown type %q", ya.Name, ya.Type)
	}
	spec := AttrSpec{Name: ya.Name, Type: attrType, Required: ya.Required, Doc: ya.Doc}
	if ya.Default.Kind == 0 {
		return spec, nil
	}
	v := ir.AttrValue{Type: attrType}
	var err error
	switch attrType {
	case ir.AttrFloat:
		err = ya.Default.Decode(&v.F)
	case ir.AttrInt:
		err = ya.Default.Decode(&v.I)
	case ir.AttrString:
		err = ya.Default.Decode(&v.S)
	case ir.AttrFloats:
		err = ya.Default.Decode(&v.Floats)
	case ir.AttrInts:
		err = ya.Default.Decode(&v.Ints)
	case ir.AttrStrings:
		err = ya.Default.Decode(&v.Strings)
	default:
		err = errors.Errorf("defaults of type %s cannot be given in YAML", attrType)
	}
	if err != nil {
		return AttrSpec{}, errors.Wrapf(err, "attribute %q default", ya.Name)
	}
	spec.Default = &v
	return spec, nil
}

// LoadFile reads a YAML schema file and registers its schemas.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open schema file %q", path)
	}
	defer f.Close()
	schemas, err := LoadYAML(f)
	if err != nil {
		return errors.Wrapf(err, "load schema file %q", path)
	}
	return r.Register(schemas...)
}
