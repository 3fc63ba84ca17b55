package mindmap

import "context"

// orphanLevel is the level given to items the classifier left out.
const orphanLevel = 3

// BuildHierarchy arranges items into a mind-map forest and returns its roots.
// Every input item appears in exactly one node. The classifier's levels are
// taken as given; multiple roots or non-increasing levels are surfaced, not
// corrected. Use Inspect to check the result.
//
// A response that yields no valid record at all is treated like a failed
// call: the forest is built from tags by FallbackHierarchy rather than by
// synthesizing a level-3 root for every item.
func (e *Engine) BuildHierarchy(ctx context.Context, items []Item) []*Node {
	switch len(items) {
	case 0:
		return []*Node{}
	case 1:
		e.observe(ctx, Outcome{Operation: OpHierarchy, Items: 1, Skipped: true})
		return []*Node{{Item: items[0], Level: 0}}
	}

	resp, elapsed, err := e.classify(ctx, HierarchyPrompt(items))
	out := Outcome{Operation: OpHierarchy, Items: len(items), Duration: elapsed, Raw: truncateRunes(resp, maxRawRunes)}
	if err != nil {
		e.log.Warn("hierarchy: classifier failed, building from tags", "items", len(items), "error", err)
		out.Fallback, out.Err = true, err
		e.observe(ctx, out)
		return FallbackHierarchy(items)
	}

	records, stats := ParseNodes(resp, len(items), e.log)
	out.Records, out.Discarded = len(records), stats.Discarded
	if len(records) == 0 {
		e.log.Warn("hierarchy: classifier response unusable, building from tags",
			"items", len(items), "blocks", stats.Blocks, "raw", truncateRunes(resp, 120))
		out.Fallback = true
		e.observe(ctx, out)
		return FallbackHierarchy(items)
	}

	roots, repaired := assembleForest(items, records)
	out.Repaired = repaired
	if repaired > 0 || stats.Discarded > 0 {
		e.log.Warn("hierarchy: classifier response partially usable",
			"items", len(items), "synthesized", repaired, "discarded", stats.Discarded)
	}
	if len(roots) != 1 {
		e.log.Debug("hierarchy: forest has more than one root", "roots", len(roots))
	}
	e.observe(ctx, out)
	return roots
}

// assembleForest builds the forest from records whose indices are distinct
// and in range. Items without a record get level 3 and no parent. Nodes are
// created first and attached in a second pass, so a child may reference a
// parent that appears later in the response. A node whose parent is missing,
// negative, itself or one of its own descendants becomes a root. It returns
// the roots in item order and the number of synthesized records.
func assembleForest(items []Item, records []NodeRecord) ([]*Node, int) {
	n := len(items)
	parents := make([]int, n)
	has := make([]bool, n)
	nodes := make([]*Node, n)
	for _, r := range records {
		has[r.Index] = true
		parents[r.Index] = r.Parent
		nodes[r.Index] = &Node{Item: items[r.Index], Level: r.Level}
	}
	repaired := 0
	for i := range n {
		if !has[i] {
			parents[i] = -1
			nodes[i] = &Node{Item: items[i], Level: orphanLevel}
			repaired++
		}
	}

	attached := make([]int, n)
	for i := range attached {
		attached[i] = -1
	}
	roots := []*Node{}
	for i, p := range parents {
		if p < 0 || p >= n || createsCycle(attached, i, p) {
			roots = append(roots, nodes[i])
			continue
		}
		attached[i] = p
		nodes[p].Children = append(nodes[p].Children, nodes[i])
	}
	return roots, repaired
}

// createsCycle reports whether making parent the parent of child would close
// a loop, given the edges attached so far.
func createsCycle(attached []int, child, parent int) bool {
	for p := parent; p >= 0; p = attached[p] {
		if p == child {
			return true
		}
	}
	return false
}

// FallbackHierarchy builds a forest from tags alone. Items are grouped by
// first tag as in FallbackClusters; the first item of each group is a level-0
// root and the others are its level-1 children. Untagged items are level-0
// roots. It never consults a classifier.
func FallbackHierarchy(items []Item) []*Node {
	roots := []*Node{}
	byTag := make(map[string]*Node)
	for _, it := range items {
		key, _ := firstTag(it)
		if key != "" {
			if root, ok := byTag[key]; ok {
				root.Children = append(root.Children, &Node{Item: it, Level: 1})
				continue
			}
		}
		root := &Node{Item: it, Level: 0}
		if key != "" {
			byTag[key] = root
		}
		roots = append(roots, root)
	}
	return roots
}
