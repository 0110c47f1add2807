package quote

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const SerialPrefix = "SN-"

var serialPattern = regexp.MustCompile(`^SN-(\d+)$`)

func FormatSerial(n int) string {
	return fmt.Sprintf("%s%04d", SerialPrefix, n)
}

// ParseSerial returns the numeric part of s, e.g. 12 for "SN-0012".
func ParseSerial(s string) (int, bool) {
	m := serialPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
