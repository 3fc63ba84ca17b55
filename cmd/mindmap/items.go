package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Hoooon22/devzip-sub000/internal/mindmap"
)

// readInput returns the contents of path, or stdin when path is "-" or empty.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// parseItems decodes a JSON or YAML list of items. A list entry may also be
// a bare string, taken as the item's content. Items without an id get their
// position.
func parseItems(data []byte) ([]mindmap.Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []mindmap.Item{}, nil
	}

	var raw []itemEntry
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode json items: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("decode yaml items: %w", err)
		}
	}

	items := make([]mindmap.Item, len(raw))
	for i, e := range raw {
		it := mindmap.Item(e)
		if strings.TrimSpace(it.ID) == "" {
			it.ID = strconv.Itoa(i)
		}
		items[i] = it
	}
	return items, nil
}

// itemEntry accepts either a full item object or a plain string.
type itemEntry mindmap.Item

func (e *itemEntry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*e = itemEntry{Content: s}
		return nil
	}
	var it mindmap.Item
	if err := json.Unmarshal(b, &it); err != nil {
		return err
	}
	*e = itemEntry(it)
	return nil
}

func (e *itemEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*e = itemEntry{Content: n.Value}
		return nil
	}
	var it mindmap.Item
	if err := n.Decode(&it); err != nil {
		return err
	}
	*e = itemEntry(it)
	return nil
}
