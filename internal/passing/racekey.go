package passing

const headerDateStart, headerDateEnd = 11, 19

// asciiDigits projects runes onto their ASCII digits.
func asciiDigits(runes []rune) string {
	out := make([]byte, 0, len(runes))
	for _, r := range runes {
		if r >= '0' && r <= '9' {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// headerDate returns the payload's own yyyymmdd header field, or "" when it
// is not all digits.
func headerDate(runes []rune) string {
	if len(runes) < headerDateEnd {
		return ""
	}
	date := string(runes[headerDateStart:headerDateEnd])
	for i := 0; i < len(date); i++ {
		if date[i] < '0' || date[i] > '9' {
			return ""
		}
	}
	return date
}

// findRaceKey returns the known key found in digits. Longer keys win; among
// keys of equal length the one registered first wins.
func (idx *RaceIndex) findRaceKey(digits string, accept func(string) bool) (string, bool) {
	for _, l := range idx.lengths {
		best := -1
		for i := 0; i+l <= len(digits); i++ {
			pos, ok := idx.order[digits[i:i+l]]
			if !ok || (best >= 0 && pos >= best) {
				continue
			}
			if accept != nil && !accept(digits[i:i+l]) {
				continue
			}
			best = pos
		}
		if best >= 0 {
			return idx.keys[best], true
		}
	}
	return "", false
}
