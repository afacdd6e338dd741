package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heywhy/bucket/internal/loader"
	"github.com/heywhy/bucket/internal/log"
)

// SaveFilters replaces the filters section of the config file.
// Comments and formatting elsewhere in the file are preserved by editing
// the yaml.Node tree instead of re-marshaling a Config.
func SaveFilters(configPath string, filters []loader.Filter) error {
	return saveSection(configPath, "filters", buildFiltersNode(filters))
}

// AddFilter appends a filter, replacing any existing filter with the same
// prefix (compared case-insensitively, like id matching).
func AddFilter(configPath string, existing []loader.Filter, filter loader.Filter) ([]loader.Filter, error) {
	if filter.Prefix == "" {
		return nil, fmt.Errorf("filter prefix is required")
	}
	filters := make([]loader.Filter, 0, len(existing)+1)
	replaced := false
	for _, f := range existing {
		if strings.EqualFold(f.Prefix, filter.Prefix) {
			filters = append(filters, filter)
			replaced = true
			continue
		}
		filters = append(filters, f)
	}
	if !replaced {
		filters = append(filters, filter)
	}
	if err := SaveFilters(configPath, filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// RemoveFilter drops the filter with the given prefix. It returns an error
// when no filter matches.
func RemoveFilter(configPath string, existing []loader.Filter, prefix string) ([]loader.Filter, error) {
	filters := make([]loader.Filter, 0, len(existing))
	for _, f := range existing {
		if !strings.EqualFold(f.Prefix, prefix) {
			filters = append(filters, f)
		}
	}
	if len(filters) == len(existing) {
		return nil, fmt.Errorf("no filter with prefix %q", prefix)
	}
	if err := SaveFilters(configPath, filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// SaveCachePolicy replaces the cache section of the config file.
func SaveCachePolicy(configPath string, policy loader.CachePolicy) error {
	if policy.Automate {
		if _, err := loader.ParseExpiry(policy.Expires); err != nil {
			return err
		}
	}
	node := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "automate"},
			{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", policy.Automate)},
			{Kind: yaml.ScalarNode, Value: "expires"},
			{Kind: yaml.ScalarNode, Value: policy.Expires},
		},
	}
	return saveSection(configPath, "cache", node)
}

func saveSection(configPath, key string, value *yaml.Node) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: config path comes from the user
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: key},
						value,
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return fmt.Errorf("parsing config: top level is not a mapping")
		}
		found := false
		for i := 0; i < len(root.Content)-1; i += 2 {
			if root.Content[i].Value == key {
				root.Content[i+1] = value
				found = true
				break
			}
		}
		if !found {
			root.Content = append(root.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				value,
			)
		}
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	if err := writeAtomic(configPath, buf.Bytes()); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to save config", err, "path", configPath, "section", key)
		return err
	}
	log.Debug(log.CatConfig, "Saved config section", "path", configPath, "section", key)
	return nil
}

// writeAtomic writes to a temp file in the same directory, then renames.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".bucket.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func buildFiltersNode(filters []loader.Filter) *yaml.Node {
	node := &yaml.Node{
		Kind:    yaml.SequenceNode,
		Content: make([]*yaml.Node, 0, len(filters)),
	}
	for _, f := range filters {
		node.Content = append(node.Content, &yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "prefix"},
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Prefix},
				{Kind: yaml.ScalarNode, Value: "replacement"},
				{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Replacement},
			},
		})
	}
	return node
}
