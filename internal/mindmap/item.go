// Package mindmap organizes free-text thoughts into flat relevance clusters
// and a leveled mind-map tree, using an external text classifier and
// repairing whatever it gets back.
package mindmap

import (
	"strings"
	"time"
)

// Item is one thought supplied by the caller. The engine only reads Content
// and Tags; the rest is carried through to the results untouched.
type Item struct {
	ID        string    `json:"id" yaml:"id"`
	Content   string    `json:"content" yaml:"content"`
	Tags      []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" yaml:"created_at,omitempty"`
}

// Cluster is a disjoint group of related items.
type Cluster struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
	Members []Item `json:"members" yaml:"members"`
}

// Node is one item placed in the mind map. Children always sit deeper than
// their parent when the classifier assigned consistent levels; see Inspect.
type Node struct {
	Item     Item    `json:"item" yaml:"item"`
	Level    int     `json:"level" yaml:"level"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// firstTag returns the grouping key (lowercased) and display form of the
// item's first non-blank tag. Both are empty for untagged items.
func firstTag(it Item) (key, label string) {
	for _, t := range it.Tags {
		t = strings.TrimSpace(t)
		if t != "" {
			return strings.ToLower(t), t
		}
	}
	return "", ""
}

// maxRawRunes bounds the response excerpt carried in Outcome.Raw.
const maxRawRunes = 500

// truncateRunes truncates s to n runes, appending "..." if truncated.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
