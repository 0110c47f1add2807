package asset

import (
	"regexp"
	"strings"
)

// Matcher extracts a remote file identifier from one shape of share link.
type Matcher interface {
	Name() string
	Match(raw string) (id string, ok bool)
}

type patternMatcher struct {
	name     string
	re       *regexp.Regexp
	httpOnly bool
}

func (m patternMatcher) Name() string { return m.name }

func (m patternMatcher) Match(raw string) (string, bool) {
	if m.httpOnly && !isHTTP(raw) {
		return "", false
	}
	sub := m.re.FindStringSubmatch(raw)
	if sub == nil {
		return "", false
	}
	return sub[1], true
}

var (
	// .../thumbnail?id=<id>&sz=w400
	ThumbnailMatcher Matcher = patternMatcher{name: "thumbnail", re: regexp.MustCompile(`/thumbnail\?(?:[^#]*&)?id=([-\w]+)`)}
	// .../file/d/<id>/view
	FileMatcher Matcher = patternMatcher{name: "file", re: regexp.MustCompile(`/file/d/([-\w]+)`)}
	// .../open?id=<id>
	OpenMatcher Matcher = patternMatcher{name: "open", re: regexp.MustCompile(`/open\?(?:[^#]*&)?id=([-\w]+)`)}
	// .../uc?export=download&id=<id> and other id query parameters
	QueryIDMatcher Matcher = patternMatcher{name: "query-id", re: regexp.MustCompile(`[?&]id=([-\w]+)`)}
	// a long opaque identifier anywhere in an otherwise unknown URL
	BareIDMatcher Matcher = patternMatcher{name: "bare-id", re: regexp.MustCompile(`([-\w]{25,})`), httpOnly: true}
)

// DefaultMatchers is the lookup order used by NewResolver. First match wins.
func DefaultMatchers() []Matcher {
	return []Matcher{ThumbnailMatcher, FileMatcher, OpenMatcher, QueryIDMatcher, BareIDMatcher}
}

func isHTTP(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
