package proteus

import (
	"regexp"
	"strings"
)

var afterWhitespace = regexp.MustCompile(`\s(.*)`)

// ExtractSessionCookie pulls the usable cookie out of a Set-Cookie value.
//
// The steps are textual: keep the first ';' segment,
// drop everything up to and including the first whitespace character if there
// is one (this strips a "Set-Cookie:" prefix when the whole header line is
// passed), keep the first ',' segment, trim. Malformed input is not rejected;
// it yields whatever text survives, possibly empty.
func ExtractSessionCookie(setCookie string) string {
	first, _, _ := strings.Cut(setCookie, ";")

	if m := afterWhitespace.FindStringSubmatch(first); m != nil {
		first = m[1]
	}

	first, _, _ = strings.Cut(first, ",")
	return strings.TrimSpace(first)
}
