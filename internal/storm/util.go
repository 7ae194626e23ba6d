package storm

import "strings"

// makeTextList joins items into an oxford-comma English list for
// human-facing diagnostics.
func makeTextList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		out := make([]string, len(items))
		copy(out, items)
		out[len(out)-1] = "and " + out[len(out)-1]
		return strings.Join(out, ", ")
	}
}
