package mindmap

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultTag is returned when neither the classifier nor the content
	// yields anything usable.
	DefaultTag = "thought"

	maxTags        = 5
	minTokenRunes  = 3
	maxTagRunes    = 40
	listMarkers    = "-*•# \t"
	tagQuotes      = "\"'`"
)

// ExtractTags returns 1 to 5 short tags for content, preferring tags from
// existing. It never fails: classifier errors and unusable answers fall back
// to keywords taken from the content itself.
func (e *Engine) ExtractTags(ctx context.Context, content string, existing []string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		e.observe(ctx, Outcome{Operation: OpTags, Items: 1, Skipped: true})
		return []string{DefaultTag}
	}

	resp, elapsed, err := e.classify(ctx, TagPrompt(content, existing))
	out := Outcome{Operation: OpTags, Items: 1, Duration: elapsed, Raw: truncateRunes(resp, maxRawRunes)}
	if err != nil {
		e.log.Warn("tags: classifier failed, using keyword fallback", "error", err)
		out.Fallback, out.Err = true, err
		e.observe(ctx, out)
		return FallbackTags(content)
	}

	tags, stats := ParseTags(resp, existing)
	out.Records, out.Discarded = len(tags), stats.Discarded
	if len(tags) == 0 {
		e.log.Warn("tags: no usable tags in classifier response, using keyword fallback",
			"raw", truncateRunes(resp, 120))
		out.Fallback = true
		e.observe(ctx, out)
		return FallbackTags(content)
	}

	e.log.Debug("tags: extracted", "tags", tags)
	e.observe(ctx, out)
	return tags
}

// TagPrompt builds the tag extraction prompt.
func TagPrompt(content string, existing []string) string {
	var sb strings.Builder
	sb.WriteString("Pick 3 to 5 short tags for the following thought. ")
	sb.WriteString("Reuse any of the existing tags that fit its meaning. ")
	sb.WriteString("Only propose a new tag when none of the existing ones apply. ")
	sb.WriteString("Keep every tag to one or two words.\n\n")
	if len(existing) > 0 {
		sb.WriteString("Existing tags:\n")
		sb.WriteString(strings.Join(existing, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Thought:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nReply with ONLY the tags separated by commas or newlines, nothing else.")
	return sb.String()
}

// ParseTags extracts at most five tags from a classifier response. Tags are
// split on commas and newlines, trimmed of list markers and quotes, and
// de-duplicated case-insensitively. A tag that matches one in existing is
// returned in the existing spelling.
func ParseTags(resp string, existing []string) ([]string, ParseStats) {
	known := make(map[string]string, len(existing))
	for _, t := range existing {
		t = strings.TrimSpace(t)
		if t != "" {
			known[strings.ToLower(t)] = t
		}
	}

	var stats ParseStats
	var tags []string
	seen := make(map[string]bool)
	for _, raw := range strings.FieldsFunc(resp, func(r rune) bool { return r == ',' || r == '\n' }) {
		tag := strings.TrimLeft(strings.TrimSpace(raw), listMarkers)
		tag = strings.TrimSpace(strings.Trim(tag, tagQuotes))
		if tag == "" {
			continue
		}
		stats.Blocks++
		if utf8.RuneCountInString(tag) > maxTagRunes {
			stats.Discarded++
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		if canonical, ok := known[key]; ok {
			tag = canonical
		}
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	return tags, stats
}

// FallbackTags derives tags from the content alone: lowercase words of at
// least three letters or digits, first five distinct ones in order.
func FallbackTags(content string) []string {
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tags []string
	seen := make(map[string]bool)
	for _, w := range words {
		if utf8.RuneCountInString(w) < minTokenRunes || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
		if len(tags) == maxTags {
			break
		}
	}
	if len(tags) == 0 {
		return []string{DefaultTag}
	}
	return tags
}
