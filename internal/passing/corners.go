package passing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var horseNumberRun = regexp.MustCompile(`\d{1,2}`)

// normalizeTail returns the trailing window of the payload with full width
// spaces and digits folded to ASCII.
func normalizeTail(runes []rune, window int) string {
	if len(runes) > window {
		runes = runes[len(runes)-window:]
	}
	var b strings.Builder
	b.Grow(len(runes))
	for _, r := range runes {
		switch {
		case r == '\u3000':
			b.WriteByte(' ')
		case r >= '\uff10' && r <= '\uff19':
			b.WriteByte(byte('0' + r - '\uff10'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cornerMarker returns the corner a token marks, or 0.
func cornerMarker(token string) int {
	if token == "" || token[0] < '1' || token[0] > '4' {
		return 0
	}
	return int(token[0] - '0')
}

// preferToken reports whether candidate beats current for the same corner.
func preferToken(candidate, current, sentinel string) bool {
	cs := strings.Contains(candidate, sentinel)
	if cs != strings.Contains(current, sentinel) {
		return cs
	}
	return utf8.RuneCountInString(candidate) > utf8.RuneCountInString(current)
}

// tokenCorners reads each corner's order from whitespace separated tokens.
func (r *Recoverer) tokenCorners(tail, raceKey string, idx *RaceIndex) map[int][]int {
	chosen := make(map[int]string)
	for _, token := range strings.Fields(tail) {
		corner := cornerMarker(token)
		if corner == 0 {
			continue
		}
		if current, ok := chosen[corner]; !ok || preferToken(token, current, r.cfg.Sentinel) {
			chosen[corner] = token
		}
	}

	corners := make(map[int][]int)
	for corner, token := range chosen {
		var numbers []int
		for _, run := range horseNumberRun.FindAllString(token[1:], -1) {
			n, err := strconv.Atoi(run)
			if err != nil {
				continue
			}
			numbers = append(numbers, n)
		}
		if order := r.keep(numbers, raceKey, idx); len(order) > 0 {
			corners[corner] = order
		}
	}
	return corners
}

// blockScanCorners looks for 1{block}2{block}3{block}4{block} in the digit
// projection of the tail, where each block holds two digits per entrant.
func (r *Recoverer) blockScanCorners(tail, raceKey string, idx *RaceIndex) map[int][]int {
	digits := asciiDigits([]rune(tail))
	fieldSize := idx.FieldSize(raceKey)
	block := fieldSize * 2
	total := 4 * (1 + block)

	for i := 0; i+total <= len(digits); i++ {
		if digits[i] != '1' {
			continue
		}
		markers := [4]int{i, i + 1 + block, i + 2*(1+block), i + 3*(1+block)}
		if digits[markers[1]] != '2' || digits[markers[2]] != '3' || digits[markers[3]] != '4' {
			continue
		}

		corners := make(map[int][]int)
		for c, m := range markers {
			chunk := digits[m+1 : m+1+block]
			numbers := make([]int, 0, fieldSize)
			for j := 0; j+2 <= len(chunk); j += 2 {
				numbers = append(numbers, int(chunk[j]-'0')*10+int(chunk[j+1]-'0'))
			}
			if order := r.keep(numbers, raceKey, idx); len(order) > 0 {
				corners[c+1] = order
			}
		}
		if len(corners) > 0 {
			return corners
		}
	}
	return nil
}

// keep filters candidate horse numbers: in range, an entrant of the race,
// first occurrence only. The order is truncated at the field size.
func (r *Recoverer) keep(numbers []int, raceKey string, idx *RaceIndex) []int {
	fieldSize := idx.FieldSize(raceKey)
	seen := make(map[int]struct{}, len(numbers))
	var order []int
	for _, n := range numbers {
		if n < 1 || n > r.cfg.MaxHorseNo || !idx.IsValidHorse(raceKey, n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		order = append(order, n)
		if len(order) == fieldSize {
			break
		}
	}
	return order
}
