package extract

import (
	"regexp"
	"strings"

	"github.com/scrypster/attune/pkg/types"
)

// gazetteer is a static known-entity list compiled into a single
// case-insensitive alternation. Entries are matched on word boundaries;
// multi-word entries must come before their prefixes in the alternation
// so the longest form wins (handled by sorting at build time).
type gazetteer struct {
	entityType string
	re         *regexp.Regexp
}

// Static known-entity lists. Deliberately small and auditable: the
// gazetteer exists to boost confidence for unambiguous well-known names,
// not to approximate a knowledge base.
var (
	knownLocations = []string{
		"new york", "new york city", "san francisco", "los angeles",
		"london", "paris", "berlin", "tokyo", "amsterdam", "sydney",
		"toronto", "chicago", "boston", "seattle", "madrid", "rome",
	}

	knownOrganizations = []string{
		"google", "microsoft", "apple", "amazon", "netflix", "meta",
		"openai", "anthropic", "nasa", "united nations", "who",
	}

	knownProducts = []string{
		"iphone", "ipad", "android", "windows", "linux", "macos",
		"kubernetes", "docker", "postgres", "sqlite", "firefox", "chrome",
	}
)

var gazetteers = buildGazetteers()

func buildGazetteers() []gazetteer {
	return []gazetteer{
		{entityType: types.EntityTypeLocation, re: compileList(knownLocations)},
		{entityType: types.EntityTypeOrganization, re: compileList(knownOrganizations)},
		{entityType: types.EntityTypeProduct, re: compileList(knownProducts)},
	}
}

// compileList builds one case-insensitive word-boundary alternation for
// the list, longest entries first so "new york city" beats "new york".
func compileList(entries []string) *regexp.Regexp {
	sorted := make([]string, len(entries))
	copy(sorted, entries)
	// Longest first inside the alternation.
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if len(sorted[j]) > len(sorted[i]) {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	quoted := make([]string, len(sorted))
	for i, s := range sorted {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
