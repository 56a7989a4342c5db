package trust

import (
	"sort"
	"strings"
	"time"
)

const (
	rapidGap  = time.Minute
	prefixLen = 200
)

// PostSample is the minimal view of a post the pattern detector needs.
type PostSample struct {
	CreatedAt time.Time
	Body      string
}

// DetectPatterns scans an identity's own posts for behavioral signatures.
// Rapid posting counts consecutive pairs published under a minute apart;
// duplicate content counts posts whose normalized opening repeats.
func DetectPatterns(posts []PostSample) PatternStats {
	var stats PatternStats
	if len(posts) == 0 {
		return stats
	}

	ordered := make([]PostSample, len(posts))
	copy(ordered, posts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	for i := 1; i < len(ordered); i++ {
		if ordered[i].CreatedAt.Sub(ordered[i-1].CreatedAt) < rapidGap {
			stats.RapidPosts++
		}
	}

	prefixes := make(map[string]int, len(ordered))
	for _, p := range ordered {
		prefixes[contentPrefix(p.Body)]++
	}
	for _, p := range ordered {
		if prefixes[contentPrefix(p.Body)] > 1 {
			stats.DuplicatePosts++
		}
	}

	return stats
}

func contentPrefix(body string) string {
	trimmed := strings.TrimSpace(body)
	runes := []rune(trimmed)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return strings.ToLower(string(runes))
}
