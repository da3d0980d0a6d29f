package labels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassTable maps a model class index to its name. It is built once at
// startup and only read afterwards.
type ClassTable map[int]string

// Name resolves a class index.
func (t ClassTable) Name(index int) (string, bool) {
	name, ok := t[index]
	return name, ok
}

type datasetFile struct {
	Names yaml.Node `yaml:"names"`
}

// LoadClassTable reads the `names` entry of a YOLO dataset YAML file. Both the
// list form and the index map form are accepted.
func LoadClassTable(path string) (ClassTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class table %s: %w", path, err)
	}
	table, err := ParseClassTable(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse class table %s: %w", path, err)
	}
	return table, nil
}

// ParseClassTable decodes dataset YAML content.
func ParseClassTable(data []byte) (ClassTable, error) {
	var file datasetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	table := make(ClassTable)
	switch file.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := file.Names.Decode(&names); err != nil {
			return nil, err
		}
		for i, name := range names {
			table[i] = name
		}
	case yaml.MappingNode:
		var names map[int]string
		if err := file.Names.Decode(&names); err != nil {
			return nil, err
		}
		for i, name := range names {
			table[i] = name
		}
	default:
		return nil, fmt.Errorf("missing names list")
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("names list is empty")
	}
	return table, nil
}
