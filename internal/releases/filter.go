package releases

import (
	"strings"

	"github.com/fuseinfotech/send2crm/internal/version"
)

// FilterByMinimumVersion keeps the releases whose tag is at or above minimum
// by semantic-version precedence, preserving order. An empty minimum keeps
// everything. Tags that are not semantic versions are never kept when a
// minimum is set; they are returned in skipped.
func FilterByMinimumVersion(in []Release, minimum string) (kept []Release, skipped []string) {
	if strings.TrimSpace(minimum) == "" {
		return append([]Release(nil), in...), nil
	}
	for _, rel := range in {
		ok, err := version.AtLeast(rel.TagName, minimum)
		if err != nil {
			skipped = append(skipped, rel.TagName)
			continue
		}
		if ok {
			kept = append(kept, rel)
		}
	}
	return kept, skipped
}
