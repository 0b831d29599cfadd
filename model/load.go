package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Load parses a YAML schema document into a Model. The loader checks
// referential integrity and obvious structural mistakes only; semantic
// validation of the schema is performed by the upstream tooling that produced
// the document.
//
// Shape declaration order in the document is preserved, as is member order
// within each shape; both are part of the generator's reproducibility
// contract.
func Load(data []byte) (*Model, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("model: parse schema: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("model: empty schema document")
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("model: schema document must be a mapping")
	}

	var shapesNode *yaml.Node
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == "shapes" {
			shapesNode = doc.Content[i+1]
		}
	}
	if shapesNode == nil || shapesNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("model: schema document has no shapes mapping")
	}

	var shapes []*Shape
	for i := 0; i+1 < len(shapesNode.Content); i += 2 {
		id := ShapeID(shapesNode.Content[i].Value)
		var ys yamlShape
		if err := shapesNode.Content[i+1].Decode(&ys); err != nil {
			return nil, fmt.Errorf("model: shape %q: %w", id, err)
		}
		s, err := ys.toShape(id)
		if err != nil {
			return nil, err
		}
		shapes = append(shapes, s)
	}
	return New(shapes)
}

type yamlMember struct {
	Name              string          `yaml:"name"`
	Target            ShapeID         `yaml:"target"`
	Required          bool            `yaml:"required"`
	Default           any             `yaml:"default"`
	WireName          string          `yaml:"wireName"`
	TimestampFormat   TimestampFormat `yaml:"timestampFormat"`
	HTTPHeader        string          `yaml:"httpHeader"`
	HTTPPrefixHeaders string          `yaml:"httpPrefixHeaders"`
	HTTPQuery         string          `yaml:"httpQuery"`
	HTTPLabel         bool            `yaml:"httpLabel"`
	HTTPPayload       bool            `yaml:"httpPayload"`
	HTTPResponseCode  bool            `yaml:"httpResponseCode"`
	Streaming         bool            `yaml:"streaming"`
	EventStream       bool            `yaml:"eventStream"`
	MediaType         string          `yaml:"mediaType"`
	Sensitive         bool            `yaml:"sensitive"`
	Flattened         bool            `yaml:"flattened"`
	XMLAttribute      bool            `yaml:"xmlAttribute"`
}

func (ym *yamlMember) toMember() Member {
	return Member{
		Name:              ym.Name,
		Target:            ym.Target,
		Optional:          !ym.Required,
		Default:           ym.Default,
		WireName:          ym.WireName,
		TimestampFormat:   ym.TimestampFormat,
		HTTPHeader:        ym.HTTPHeader,
		HTTPPrefixHeaders: ym.HTTPPrefixHeaders,
		HTTPQuery:         ym.HTTPQuery,
		HTTPLabel:         ym.HTTPLabel,
		HTTPPayload:       ym.HTTPPayload,
		HTTPResponseCode:  ym.HTTPResponseCode,
		Streaming:         ym.Streaming,
		EventStream:       ym.EventStream,
		MediaType:         ym.MediaType,
		Sensitive:         ym.Sensitive,
		Flattened:         ym.Flattened,
		XMLAttribute:      ym.XMLAttribute,
	}
}

type yamlHTTP struct {
	Method string `yaml:"method"`
	URI    string `yaml:"uri"`
	Code   int    `yaml:"code"`
}

type yamlShape struct {
	Type       string       `yaml:"type"`
	Members    []yamlMember `yaml:"members"`
	Member     *yamlMember  `yaml:"member"`
	Key        *yamlMember  `yaml:"key"`
	Value      *yamlMember  `yaml:"value"`
	Values     []string     `yaml:"values"`
	Fault      string       `yaml:"fault"`
	ErrorCode  string       `yaml:"errorCode"`
	HTTP       *yamlHTTP    `yaml:"http"`
	Input      ShapeID      `yaml:"input"`
	Output     ShapeID      `yaml:"output"`
	Errors     []ShapeID    `yaml:"errors"`
	Operations []ShapeID    `yaml:"operations"`
	Version    string       `yaml:"version"`
	Protocol   string       `yaml:"protocol"`
}

var kindsByName = func() map[string]ShapeKind {
	m := make(map[string]ShapeKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (ys *yamlShape) toShape(id ShapeID) (*Shape, error) {
	kind, ok := kindsByName[ys.Type]
	if !ok {
		return nil, fmt.Errorf("model: shape %q: unknown type %q", id, ys.Type)
	}
	s := &Shape{
		ID:         id,
		Kind:       kind,
		EnumValues: ys.Values,
		Fault:      ys.Fault,
		ErrorCode:  ys.ErrorCode,
		Input:      ys.Input,
		Output:     ys.Output,
		Errors:     ys.Errors,
		Operations: ys.Operations,
		Version:    ys.Version,
		Protocol:   ys.Protocol,
	}
	for i := range ys.Members {
		s.Members = append(s.Members, ys.Members[i].toMember())
	}
	switch kind {
	case KindList:
		if ys.Member == nil {
			return nil, fmt.Errorf("model: list %q has no member", id)
		}
		m := ys.Member.toMember()
		s.ListMember = &m
	case KindMap:
		if ys.Value == nil {
			return nil, fmt.Errorf("model: map %q has no value", id)
		}
		k := Member{Name: "key", Target: PreludeString}
		if ys.Key != nil {
			k = ys.Key.toMember()
		}
		v := ys.Value.toMember()
		s.MapKey, s.MapValue = &k, &v
	}
	if ys.HTTP != nil {
		s.HTTP = &HTTPTrait{Method: ys.HTTP.Method, URI: ys.HTTP.URI, Code: ys.HTTP.Code}
		if s.HTTP.Code == 0 {
			s.HTTP.Code = 200
		}
	}
	return s, nil
}
