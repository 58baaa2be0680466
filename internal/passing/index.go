package passing

import "sort"

// RaceIndex holds the known races and their entrants. It is built once per
// pass and is read-only afterwards, so one index can serve many workers.
type RaceIndex struct {
	keys      []string
	order     map[string]int
	lengths   []int
	fieldSize map[string]int
	valid     map[string]map[int]struct{}
}

// NewRaceIndex creates an empty index.
func NewRaceIndex() *RaceIndex {
	return &RaceIndex{
		order:     make(map[string]int),
		fieldSize: make(map[string]int),
		valid:     make(map[string]map[int]struct{}),
	}
}

// AddRace registers a known race key. Iteration order is registration order.
func (idx *RaceIndex) AddRace(raceKey string) {
	if _, ok := idx.order[raceKey]; ok {
		return
	}
	idx.order[raceKey] = len(idx.keys)
	idx.keys = append(idx.keys, raceKey)

	for _, l := range idx.lengths {
		if l == len(raceKey) {
			return
		}
	}
	idx.lengths = append(idx.lengths, len(raceKey))
	sort.Sort(sort.Reverse(sort.IntSlice(idx.lengths)))
}

// AddEntries registers a race's horse numbers. The field size is the number
// of distinct horse numbers.
func (idx *RaceIndex) AddEntries(raceKey string, horseNos []int) {
	idx.AddRace(raceKey)
	set, ok := idx.valid[raceKey]
	if !ok {
		set = make(map[int]struct{}, len(horseNos))
		idx.valid[raceKey] = set
	}
	for _, no := range horseNos {
		set[no] = struct{}{}
	}
	idx.fieldSize[raceKey] = len(set)
}

// Keys returns the known race keys in iteration order.
func (idx *RaceIndex) Keys() []string {
	return idx.keys
}

// FieldSize returns the number of entrants of a race.
func (idx *RaceIndex) FieldSize(raceKey string) int {
	return idx.fieldSize[raceKey]
}

// IsValidHorse reports whether horseNo is an entrant of the race.
func (idx *RaceIndex) IsValidHorse(raceKey string, horseNo int) bool {
	_, ok := idx.valid[raceKey][horseNo]
	return ok
}

func (idx *RaceIndex) hasEntries(raceKey string) bool {
	return idx.fieldSize[raceKey] > 0 && len(idx.valid[raceKey]) > 0
}
