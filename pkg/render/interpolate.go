package render

import (
	"fmt"
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// interpolate substitutes {name} placeholders from the context map. Missing
// placeholders are kept verbatim and returned so the caller can log them;
// silently dropping them would corrupt the copy without a trace.
func interpolate(tmpl string, ctx map[string]any) (string, []string) {
	var missing []string
	result := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]
		if val, ok := ctx[name]; ok && val != nil {
			return fmt.Sprint(val)
		}
		missing = append(missing, name)
		return match
	})
	return result, missing
}
