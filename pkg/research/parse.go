package research

import "strings"

// extractTagged returns the body of every <tag>...</tag> pair in text, in
// order. Text outside the pairs is ignored and an opening tag without a
// closing tag is dropped. Bodies are returned verbatim; only whitespace-only
// bodies are filtered out.
func extractTagged(text, tag string) []string {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"

	parts := strings.Split(text, open)
	items := make([]string, 0, len(parts))
	// parts[0] precedes the first opening tag.
	for _, part := range parts[1:] {
		body, _, ok := strings.Cut(part, closing)
		if !ok {
			continue
		}
		if strings.TrimSpace(body) == "" {
			continue
		}
		items = append(items, body)
	}
	return items
}

// zipQueries pairs queries with goals by position. The shorter list wins and
// the result is capped at limit when limit > 0.
func zipQueries(queries, goals []string, limit int) []SubQuery {
	n := min(len(queries), len(goals))
	if limit > 0 {
		n = min(n, limit)
	}
	out := make([]SubQuery, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SubQuery{Query: queries[i], ResearchGoal: goals[i]})
	}
	return out
}

func capList(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
