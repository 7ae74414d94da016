package provider

import (
	"fmt"
	"unicode/utf8"
)

// markerReserve is room kept for the omission marker within maxRunes.
const markerReserve = 48

// TruncateHead caps stdout at maxRunes runes, keeping the start where the envelope begins.
// maxRunes <= 0 disables the cap.
func TruncateHead(s string, maxRunes int) string {
	r, keep, ok := cut(s, maxRunes)
	if !ok {
		return s
	}
	return string(r[:keep]) + marker(len(r)-keep, len(r))
}

// TruncateTail caps stderr at maxRunes runes, keeping the end where a crash is reported.
func TruncateTail(s string, maxRunes int) string {
	r, keep, ok := cut(s, maxRunes)
	if !ok {
		return s
	}
	return marker(len(r)-keep, len(r)) + string(r[len(r)-keep:])
}

func cut(s string, maxRunes int) ([]rune, int, bool) {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return nil, 0, false
	}
	r := []rune(s)
	return r, max(maxRunes-markerReserve, 1), true
}

func marker(omitted, total int) string {
	return fmt.Sprintf("\n[%d of %d runes omitted]\n", omitted, total)
}
