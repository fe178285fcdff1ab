package intents

import "strings"

// NormalizeTags trims tags, drops empty ones and removes repeats while keeping
// first-seen order. The result is never nil.
func NormalizeTags(in []string) Tags {
	seen := map[string]struct{}{}
	out := make(Tags, 0, len(in))

	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out
}
