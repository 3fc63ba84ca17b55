package mindmap

import "fmt"

// Violation is a parent/child pair whose levels do not strictly increase.
type Violation struct {
	Parent      string `json:"parent" yaml:"parent"`
	Child       string `json:"child" yaml:"child"`
	ParentLevel int    `json:"parent_level" yaml:"parent_level"`
	ChildLevel  int    `json:"child_level" yaml:"child_level"`
}

// Report summarizes how far a forest is from a single-center mind map.
type Report struct {
	Roots           int         `json:"roots" yaml:"roots"`
	Nodes           int         `json:"nodes" yaml:"nodes"`
	Centers         int         `json:"centers" yaml:"centers"` // roots at level 0
	Duplicates      []string    `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	LevelViolations []Violation `json:"level_violations,omitempty" yaml:"level_violations,omitempty"`
}

// SingleRoot reports whether the forest is one tree centered at level 0.
func (r Report) SingleRoot() bool {
	return r.Roots == 1 && r.Centers == 1
}

// OK reports whether the forest has a single center, no repeated items and
// strictly increasing levels along every edge.
func (r Report) OK() bool {
	return r.SingleRoot() && len(r.Duplicates) == 0 && len(r.LevelViolations) == 0
}

// Problems describes each defect in the report, one per entry.
func (r Report) Problems() []string {
	var out []string
	if r.Roots != 1 {
		out = append(out, fmt.Sprintf("%d roots, want 1", r.Roots))
	}
	if r.Roots > 0 && r.Centers != 1 {
		out = append(out, fmt.Sprintf("%d level-0 roots, want 1", r.Centers))
	}
	for _, id := range r.Duplicates {
		out = append(out, fmt.Sprintf("item %q appears more than once", id))
	}
	for _, v := range r.LevelViolations {
		out = append(out, fmt.Sprintf("child %q (level %d) is not deeper than parent %q (level %d)",
			v.Child, v.ChildLevel, v.Parent, v.ParentLevel))
	}
	return out
}

// Inspect checks a forest without modifying it. Items are identified by
// Item.ID. A node reached twice is counted as a duplicate and not descended
// into again.
func Inspect(roots []*Node) Report {
	r := Report{Roots: len(roots)}
	seenIDs := make(map[string]bool)
	visited := make(map[*Node]bool)

	var walk func(n *Node)
	walk = func(n *Node) {
		if visited[n] {
			r.Duplicates = append(r.Duplicates, n.Item.ID)
			return
		}
		visited[n] = true
		r.Nodes++
		if seenIDs[n.Item.ID] {
			r.Duplicates = append(r.Duplicates, n.Item.ID)
		}
		seenIDs[n.Item.ID] = true
		for _, c := range n.Children {
			if c.Level <= n.Level {
				r.LevelViolations = append(r.LevelViolations, Violation{
					Parent:      n.Item.ID,
					Child:       c.Item.ID,
					ParentLevel: n.Level,
					ChildLevel:  c.Level,
				})
			}
			walk(c)
		}
	}

	for _, root := range roots {
		if root.Level == 0 {
			r.Centers++
		}
		walk(root)
	}
	return r
}
