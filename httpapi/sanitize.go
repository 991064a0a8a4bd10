package httpapi

import (
	"context"
	"regexp"

	"pkt.systems/pslog"
)

// idPattern is the only check applied to values embedded in served HTML.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const sanitizeLogLimit = 50

// validID reports whether value is a non-empty [A-Za-z0-9_-] identifier.
func validID(value string) bool {
	return idPattern.MatchString(value)
}

// sanitizeID returns input unchanged when it is a valid identifier and
// ("", false) otherwise. Rejections of non-empty input are logged truncated.
func sanitizeID(ctx context.Context, kind, input string) (string, bool) {
	if validID(input) {
		return input, true
	}
	if input != "" {
		pslog.Ctx(ctx).Warn("rejected unsafe id", "kind", kind, "value", truncate(input, sanitizeLogLimit), "len", len(input))
	}
	return "", false
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
