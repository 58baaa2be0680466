package decoder

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

const entryMinLength = 336

// bodyWeightUnmeasured is the feed's marker for a horse that was not weighed.
const bodyWeightUnmeasured = 999

var (
	entryHorseNo     = field{29, 2}
	entryHorseID     = field{31, 10}
	entryHorseName   = field{41, 36}
	entryTrainerCode = field{86, 5}
	entryTrainerName = field{91, 8}
	entryHandicap    = field{289, 3}
	entryJockeyCode  = field{297, 5}
	entryJockeyName  = field{307, 8}
	entryBodyWeight  = field{325, 3}
	entryFinish      = field{335, 2}
)

// DecodeEntry decodes an SE record.
func DecodeEntry(payload []byte) (*models.Entry, error) {
	entry, _, err := decodeEntry(newReader(payload))
	return entry, err
}

func decodeEntry(r *reader) (*models.Entry, []string, error) {
	if len(r.payload) < entryMinLength || !hasTag(r.payload, models.KindEntry) {
		return nil, nil, fmt.Errorf("%w: SE length %d", ErrNotApplicable, len(r.payload))
	}
	h, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}
	horseNo := r.number("horse_no", entryHorseNo)
	if horseNo == nil || *horseNo > models.MaxHorseNo {
		return nil, nil, fmt.Errorf("%w: horse number %q", ErrNotApplicable, r.ascii(entryHorseNo))
	}

	entry := &models.Entry{
		RaceKey:           h.raceKey,
		HorseNo:           *horseNo,
		HorseID:           r.code(entryHorseID),
		HorseName:         r.text(entryHorseName),
		TrainerCode:       r.code(entryTrainerCode),
		TrainerName:       r.text(entryTrainerName),
		HandicapWeightX10: r.number("handicap_weight_x10", entryHandicap),
		JockeyCode:        r.code(entryJockeyCode),
		JockeyName:        r.text(entryJockeyName),
		BodyWeight:        r.number("body_weight", entryBodyWeight),
	}
	if entry.BodyWeight != nil && *entry.BodyWeight == bodyWeightUnmeasured {
		entry.BodyWeight = nil
	}
	entry.SetFinish(r.number("finish", entryFinish))
	return entry, r.malformed, nil
}
