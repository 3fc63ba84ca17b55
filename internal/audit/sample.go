package audit

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Sample returns up to n fallback or partial entries for review, favoring
// recent ones and responses the parser rejected. An empty operation matches
// every operation.
func (s *Store) Sample(ctx context.Context, operation string, n int) ([]Entry, error) {
	entries, err := s.degraded(ctx, operation)
	if err != nil {
		return nil, err
	}
	if len(entries) <= n {
		return entries, nil
	}
	return weightedSample(entries, n, s.now()), nil
}

// unusableBoost scales entries whose classifier answered but produced nothing
// the parser could keep. Those point at prompt or model problems, while
// transport failures (Error set) usually do not need a second look.
const unusableBoost = 3

// reviewWeight scores e for sampling: 1 / (1 + age in days), times how much
// of the response was thrown away. Undated entries score as a year old.
func reviewWeight(e Entry, now time.Time) float64 {
	days := 365.0
	if created, err := time.Parse(time.RFC3339, e.CreatedAt); err == nil {
		days = math.Max(0, now.Sub(created).Hours()/24)
	}
	w := 1 / (1 + days)

	switch e.Result {
	case "fallback":
		if e.Error == "" {
			w *= unusableBoost
		}
	case "partial":
		// 1 for a clean parse up to 2 when nearly everything was discarded.
		if total := e.Records + e.Discarded; total > 0 {
			w *= 1 + float64(e.Discarded)/float64(total)
		}
	}
	return w
}

// weightedSample draws n entries without replacement, each with probability
// proportional to its reviewWeight.
func weightedSample(entries []Entry, n int, now time.Time) []Entry {
	weights := make([]float64, len(entries))
	var total float64
	for i, e := range entries {
		weights[i] = reviewWeight(e, now)
		total += weights[i]
	}

	selected := make([]Entry, 0, n)
	for len(selected) < n && total > 0 {
		r := rand.Float64() * total
		pick := -1
		for i, w := range weights {
			if w == 0 {
				continue
			}
			pick = i
			if r -= w; r < 0 {
				break
			}
		}
		if pick < 0 {
			break
		}
		selected = append(selected, entries[pick])
		total -= weights[pick]
		weights[pick] = 0
	}
	return selected
}
