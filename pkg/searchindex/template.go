package searchindex

import (
	_ "embed"
	"fmt"
	"sort"

	json "github.com/goccy/go-json"
)

//go:embed template.json
var defaultTemplateJSON []byte

type IndexTemplate struct {
	IndexPatterns []string               `json:"index_patterns"`
	Priority      int                    `json:"priority,omitempty"`
	Template      TemplateBody           `json:"template"`
	Meta          map[string]interface{} `json:"_meta,omitempty"`
}

type TemplateBody struct {
	Settings map[string]interface{} `json:"settings,omitempty"`
	Mappings Mappings               `json:"mappings"`
}

type Mappings struct {
	Dynamic    interface{}         `json:"dynamic,omitempty"`
	Properties map[string]Property `json:"properties"`
}

type Property struct {
	Type       string              `json:"type,omitempty"`
	Properties map[string]Property `json:"properties,omitempty"`
}

// DefaultTemplate returns the index template detection events are written against.
func DefaultTemplate() (IndexTemplate, []byte, error) {
	var template IndexTemplate
	if err := json.Unmarshal(defaultTemplateJSON, &template); err != nil {
		return IndexTemplate{}, nil, err
	}
	return template, defaultTemplateJSON, nil
}

// SchemaMatches reports whether installed covers expected: same index
// patterns and every expected field mapped with the same type. Extra
// installed fields are tolerated.
func SchemaMatches(expected, installed IndexTemplate) (bool, string) {
	if !samePatterns(expected.IndexPatterns, installed.IndexPatterns) {
		return false, fmt.Sprintf("index patterns differ: expected %v, installed %v", expected.IndexPatterns, installed.IndexPatterns)
	}
	return propertiesMatch("", expected.Template.Mappings.Properties, installed.Template.Mappings.Properties)
}

func propertiesMatch(prefix string, expected, installed map[string]Property) (bool, string) {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := expected[name]
		path := prefix + name
		got, ok := installed[name]
		if !ok {
			return false, fmt.Sprintf("field %s is not mapped", path)
		}
		if want.Type != got.Type {
			return false, fmt.Sprintf("field %s is mapped as %q, expected %q", path, got.Type, want.Type)
		}
		if len(want.Properties) > 0 {
			if ok, reason := propertiesMatch(path+".", want.Properties, got.Properties); !ok {
				return false, reason
			}
		}
	}
	return true, ""
}

func samePatterns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
