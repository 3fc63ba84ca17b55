package mindmap

import (
	"context"
	"fmt"
)

// Cluster partitions items into disjoint groups of related thoughts. Every
// input item lands in exactly one returned cluster. With fewer than two items
// the classifier is not consulted; when it fails or its answer claims no
// items, the result comes from FallbackClusters.
func (e *Engine) Cluster(ctx context.Context, items []Item) []Cluster {
	switch len(items) {
	case 0:
		return []Cluster{}
	case 1:
		e.observe(ctx, Outcome{Operation: OpCluster, Items: 1, Skipped: true})
		return []Cluster{{ID: "cluster-0", Members: []Item{items[0]}}}
	}

	resp, elapsed, err := e.classify(ctx, GroupingPrompt(items))
	out := Outcome{Operation: OpCluster, Items: len(items), Duration: elapsed, Raw: truncateRunes(resp, maxRawRunes)}
	if err != nil {
		e.log.Warn("cluster: classifier failed, grouping by tag", "items", len(items), "error", err)
		out.Fallback, out.Err = true, err
		e.observe(ctx, out)
		return FallbackClusters(items)
	}

	groups, stats := ParseGroups(resp, len(items), e.log)
	out.Discarded = stats.Discarded
	claimed := 0
	for _, g := range groups {
		if len(g.Members) > 0 {
			out.Records++
			claimed += len(g.Members)
		}
	}
	if claimed == 0 {
		e.log.Warn("cluster: classifier response unusable, grouping by tag",
			"items", len(items), "blocks", stats.Blocks, "raw", truncateRunes(resp, 120))
		out.Fallback = true
		e.observe(ctx, out)
		return FallbackClusters(items)
	}

	clusters := assembleClusters(items, groups)
	out.Repaired = len(items) - claimed
	if out.Repaired > 0 || out.Discarded > 0 {
		e.log.Warn("cluster: classifier response partially usable",
			"items", len(items), "orphans", out.Repaired, "discarded", out.Discarded)
	}
	e.log.Debug("cluster: built", "items", len(items), "clusters", len(clusters))
	e.observe(ctx, out)
	return clusters
}

// assembleClusters turns parsed groups into clusters and appends a singleton
// for every item no group claimed. groups must be disjoint, as ParseGroups
// guarantees.
func assembleClusters(items []Item, groups []GroupRecord) []Cluster {
	claimed := make([]bool, len(items))
	var clusters []Cluster
	for _, g := range groups {
		if len(g.Members) == 0 {
			continue
		}
		c := Cluster{
			ID:      fmt.Sprintf("cluster-%d", len(clusters)),
			Label:   g.Label,
			Members: make([]Item, 0, len(g.Members)),
		}
		for _, idx := range g.Members {
			claimed[idx] = true
			c.Members = append(c.Members, items[idx])
		}
		clusters = append(clusters, c)
	}
	for i, it := range items {
		if !claimed[i] {
			clusters = append(clusters, Cluster{
				ID:      fmt.Sprintf("cluster-orphan-%d", i),
				Members: []Item{it},
			})
		}
	}
	return clusters
}

// FallbackClusters groups items by their first tag, compared
// case-insensitively, in order of first appearance. Untagged items each get
// a cluster of their own. It never consults a classifier.
func FallbackClusters(items []Item) []Cluster {
	clusters := []Cluster{}
	byTag := make(map[string]int)
	for _, it := range items {
		key, label := firstTag(it)
		if key != "" {
			if i, ok := byTag[key]; ok {
				clusters[i].Members = append(clusters[i].Members, it)
				continue
			}
			byTag[key] = len(clusters)
		}
		clusters = append(clusters, Cluster{
			ID:      fmt.Sprintf("cluster-%d", len(clusters)),
			Label:   label,
			Members: []Item{it},
		})
	}
	return clusters
}
