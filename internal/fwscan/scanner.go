// Package fwscan inspects raw firmware images for embedded build metadata.
//
// Panda firmware carries its build tag as a plain ASCII string compiled
// into the binary, e.g. "v1.2.3-DEV-deadbeef-DEBUG". Scan walks an image
// byte-for-byte and reports every candidate tag, so a .bin of unknown
// provenance can be identified without talking to a device.
package fwscan

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// versionTagPattern is the build tag grammar: an optional dotted version
// prefix, an optional DEV marker, an 8-digit lowercase hex short commit,
// and an optional build type suffix. The leading "-?" is kept exactly as
// the firmware build scripts emit it, redundant or not, so the scanner
// stays bug-compatible with the strings found in released images.
var versionTagPattern = regexp.MustCompile(`[v0-9.]*-?(?:DEV)?-[0-9a-f]{8}-(?:DEBUG)?(?:RELEASE)?`)

// Match is one candidate version tag found in an image.
type Match struct {
	// Offset is the byte position of the match within the image.
	Offset int

	// Raw holds the matched bytes exactly as they appear in the image.
	Raw []byte
}

// Text returns the match as a string when the matched bytes decode as
// valid UTF-8. ok is false for undecodable matches, in which case callers
// should fall back to the raw byte representation. This is a display
// fallback, not an error condition.
func (m Match) Text() (string, bool) {
	if !utf8.Valid(m.Raw) {
		return "", false
	}
	return string(m.Raw), true
}

// String renders the text form when possible and a quoted byte form
// otherwise.
func (m Match) String() string {
	if s, ok := m.Text(); ok {
		return s
	}
	return fmt.Sprintf("%q", m.Raw)
}

// Scan returns every non-overlapping version tag in image, in ascending
// offset order. Each match is the leftmost candidate from a single forward
// pass; scanning resumes immediately after the end of the previous match.
// Scan never fails: arbitrary binary content that contains no tags yields
// an empty result. The image is not mutated.
func Scan(image []byte) []Match {
	locs := versionTagPattern.FindAllIndex(image, -1)
	if len(locs) == 0 {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		raw := make([]byte, loc[1]-loc[0])
		copy(raw, image[loc[0]:loc[1]])
		matches = append(matches, Match{Offset: loc[0], Raw: raw})
	}
	return matches
}
