// Package companies supplies the ordered list of employers the driver searches
// recruiters for. The list is resolved once at startup.
package companies

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider returns company names in the order they should be searched.
type Provider interface {
	Companies(ctx context.Context) ([]string, error)
}

// Static serves a fixed list, typically from configuration.
type Static []string

// Companies returns the cleaned list.
func (s Static) Companies(_ context.Context) ([]string, error) {
	return Normalize(s), nil
}

// File reads companies from a YAML document. Both a bare sequence and a
// mapping with a "companies" sequence are accepted.
type File struct {
	Path string
}

type fileDocument struct {
	Companies []string `yaml:"companies"`
}

// Companies parses the file at f.Path.
func (f File) Companies(_ context.Context) ([]string, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, fmt.Errorf("companies file path is required")
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read companies file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse companies file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var list []string
	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&list); err != nil {
			return nil, fmt.Errorf("decode companies list: %w", err)
		}
	case yaml.MappingNode:
		var doc fileDocument
		if err := node.Content[0].Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode companies document: %w", err)
		}
		list = doc.Companies
	default:
		return nil, fmt.Errorf("companies file must hold a list or a mapping with a companies key")
	}
	return Normalize(list), nil
}

// Normalize trims names, drops blanks and removes case-insensitive
// duplicates while keeping first-seen order.
func Normalize(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.Join(strings.Fields(name), " ")
		if name == "" {
			continue
		}
		fold := strings.ToLower(name)
		if _, dup := seen[fold]; dup {
			continue
		}
		seen[fold] = struct{}{}
		out = append(out, name)
	}
	return out
}
