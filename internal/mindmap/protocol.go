package mindmap

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// blockSeparator is the line that separates protocol blocks in a response.
const blockSeparator = "---"

// Protocol field names.
const (
	fieldGroup   = "GROUP"
	fieldMembers = "MEMBERS"
	fieldIndex   = "INDEX"
	fieldLevel   = "LEVEL"
	fieldParent  = "PARENT"
)

// GroupRecord is one parsed block of a grouping response. Members only holds
// indices that were valid and not claimed by an earlier block.
type GroupRecord struct {
	Label   string
	Members []int
}

// NodeRecord is one parsed block of a hierarchy response. Parent is -1 when
// the node has no parent.
type NodeRecord struct {
	Index  int
	Level  int
	Parent int
}

// ParseStats counts what a parser saw and rejected.
type ParseStats struct {
	Blocks    int // candidate units examined (blocks, or tags for ParseTags)
	Discarded int // member tokens (grouping) or whole blocks (hierarchy) dropped
}

// GroupingPrompt builds the clustering prompt for items.
func GroupingPrompt(items []Item) string {
	var sb strings.Builder
	sb.WriteString("Group the following thoughts into clusters of closely related ideas. ")
	sb.WriteString("Each thought belongs to at most one cluster.\n\nThoughts:\n")
	writeItems(&sb, items)
	sb.WriteString("\nReply with ONLY blocks in this exact format, separated by a line containing only ---:\n")
	sb.WriteString("GROUP:<short label>\n")
	sb.WriteString("MEMBERS:<comma-separated thought indices>\n\n")
	sb.WriteString("Do not add any other text.")
	return sb.String()
}

// HierarchyPrompt builds the mind-map prompt for items.
func HierarchyPrompt(items []Item) string {
	var sb strings.Builder
	sb.WriteString("Arrange the following thoughts into a single mind map.\n\nRules:\n")
	sb.WriteString("- Exactly one thought is the center, with LEVEL 0 and PARENT -1.\n")
	sb.WriteString("- Every other thought has a PARENT that is the index of another thought.\n")
	sb.WriteString("- A parent's LEVEL must be strictly lower than its child's LEVEL.\n\nThoughts:\n")
	writeItems(&sb, items)
	sb.WriteString("\nReply with ONLY one block per thought in this exact format, separated by a line containing only ---:\n")
	sb.WriteString("INDEX:<thought index>\n")
	sb.WriteString("LEVEL:<integer level, 0 for the center>\n")
	sb.WriteString("PARENT:<index of the parent thought, -1 for none>\n\n")
	sb.WriteString("Do not add any other text.")
	return sb.String()
}

// writeItems lists items one per line as "[index] content (tags: a, b)".
func writeItems(sb *strings.Builder, items []Item) {
	for i, it := range items {
		fmt.Fprintf(sb, "[%d] %s", i, strings.Join(strings.Fields(it.Content), " "))
		if len(it.Tags) > 0 {
			fmt.Fprintf(sb, " (tags: %s)", strings.Join(it.Tags, ", "))
		}
		sb.WriteByte('\n')
	}
}

// ParseGroups parses a grouping response for n input items. Blocks with
// neither a GROUP nor a MEMBERS line are ignored. Bad member tokens are
// skipped one at a time; an index claimed by an earlier block stays there,
// so the returned groups are always disjoint. Each skipped token is logged at
// debug level on log; a nil log discards them.
func ParseGroups(resp string, n int, log *slog.Logger) ([]GroupRecord, ParseStats) {
	log = orDiscard(log)
	var stats ParseStats
	var records []GroupRecord
	claimed := make([]bool, n)

	for _, block := range splitBlocks(resp) {
		var rec GroupRecord
		var members string
		var hasGroup, hasMembers bool
		for _, line := range block {
			if v, ok := cutField(line, fieldGroup); ok && !hasGroup {
				rec.Label, hasGroup = v, true
				continue
			}
			if v, ok := cutField(line, fieldMembers); ok && !hasMembers {
				members, hasMembers = v, true
			}
		}
		if !hasGroup && !hasMembers {
			continue
		}
		stats.Blocks++

		for _, tok := range strings.Split(members, ",") {
			tok = strings.Trim(strings.TrimSpace(tok), "[]")
			if tok == "" {
				continue
			}
			idx, err := strconv.Atoi(tok)
			switch {
			case err != nil:
				log.Debug("protocol: skipping non-integer member", "group", rec.Label, "token", tok)
			case idx < 0 || idx >= n:
				log.Debug("protocol: skipping out-of-range member", "group", rec.Label, "index", idx)
			case claimed[idx]:
				log.Debug("protocol: skipping already claimed member", "group", rec.Label, "index", idx)
			default:
				claimed[idx] = true
				rec.Members = append(rec.Members, idx)
				continue
			}
			stats.Discarded++
		}
		records = append(records, rec)
	}
	return records, stats
}

// ParseNodes parses a hierarchy response for n input items. A block is kept
// only if INDEX, LEVEL and PARENT are all present integers, INDEX names an
// input item not seen before and LEVEL is not negative. Anything else drops
// the whole block. Dropped blocks are logged like in ParseGroups.
func ParseNodes(resp string, n int, log *slog.Logger) ([]NodeRecord, ParseStats) {
	log = orDiscard(log)
	var stats ParseStats
	var records []NodeRecord
	seen := make([]bool, n)

	for _, block := range splitBlocks(resp) {
		stats.Blocks++
		rec, err := parseNodeBlock(block, n)
		if err == nil && seen[rec.Index] {
			err = fmt.Errorf("duplicate index %d", rec.Index)
		}
		if err != nil {
			log.Debug("protocol: discarding node block", "error", err, "block", strings.Join(block, " | "))
			stats.Discarded++
			continue
		}
		seen[rec.Index] = true
		records = append(records, rec)
	}
	return records, stats
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return log
}

func parseNodeBlock(block []string, n int) (NodeRecord, error) {
	fields := make(map[string]string, 3)
	for _, line := range block {
		for _, key := range []string{fieldIndex, fieldLevel, fieldParent} {
			if v, ok := cutField(line, key); ok {
				if _, dup := fields[key]; !dup {
					fields[key] = v
				}
				break
			}
		}
	}

	var rec NodeRecord
	var err error
	if rec.Index, err = intField(fields, fieldIndex); err != nil {
		return rec, err
	}
	if rec.Level, err = intField(fields, fieldLevel); err != nil {
		return rec, err
	}
	if rec.Parent, err = intField(fields, fieldParent); err != nil {
		return rec, err
	}
	if rec.Index < 0 || rec.Index >= n {
		return rec, fmt.Errorf("index %d out of range", rec.Index)
	}
	if rec.Level < 0 {
		return rec, fmt.Errorf("negative level %d", rec.Level)
	}
	return rec, nil
}

func intField(fields map[string]string, key string) (int, error) {
	v, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, v, err)
	}
	return i, nil
}

// splitBlocks splits a response into blocks of trimmed, non-empty lines.
func splitBlocks(resp string) [][]string {
	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		switch line {
		case blockSeparator:
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
		case "":
		default:
			cur = append(cur, line)
		}
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// cutField matches "KEY:value" (key case-insensitive) and returns the trimmed
// value.
func cutField(line, key string) (string, bool) {
	if len(line) <= len(key) || line[len(key)] != ':' || !strings.EqualFold(line[:len(key)], key) {
		return "", false
	}
	return strings.TrimSpace(line[len(key)+1:]), true
}
