package channel

import "strings"

// Wildcard is the segment placeholder accepted in subscription patterns.
const Wildcard = "*"

// IsPattern reports whether channel contains a wildcard segment.
func IsPattern(channel string) bool {
	return strings.Contains(channel, Wildcard)
}

// MatchPattern reports whether channel matches a colon-segment glob pattern.
// Both must have the same number of segments and every pattern segment must
// be "*" or equal to the corresponding channel segment:
//
//	MatchPattern("board:*:updates", "board:42:updates")     // true
//	MatchPattern("board:*:updates", "board:42:sub:updates") // false
func MatchPattern(pattern, channel string) bool {
	if !IsPattern(pattern) {
		return pattern == channel
	}

	ps := strings.Split(pattern, ":")
	cs := strings.Split(channel, ":")
	if len(ps) != len(cs) {
		return false
	}
	for i, p := range ps {
		if p != Wildcard && p != cs[i] {
			return false
		}
	}
	return true
}
