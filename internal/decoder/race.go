package decoder

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

const raceMinLength = 615

var (
	raceName      = field{33, 60}
	raceShortName = field{605, 6}
	raceGrade     = field{615, 1}
	raceDistance  = field{698, 4}
	raceTrack     = field{706, 2}
)

// DecodeRace decodes an RA record. Distance and track are read only when the
// payload is long enough to carry them.
func DecodeRace(payload []byte) (*models.Race, error) {
	race, _, err := decodeRace(newReader(payload))
	return race, err
}

func decodeRace(r *reader) (*models.Race, []string, error) {
	if len(r.payload) < raceMinLength || !hasTag(r.payload, models.KindRace) {
		return nil, nil, fmt.Errorf("%w: RA length %d", ErrNotApplicable, len(r.payload))
	}
	h, err := readHeader(r)
	if err != nil {
		return nil, nil, err
	}

	race := &models.Race{
		RaceKey:    h.raceKey,
		Date:       h.date,
		CourseCode: h.course,
		Kai:        h.kai,
		Day:        h.day,
		RaceNo:     h.raceNo,
		Name:       r.text(raceName),
		ShortName:  r.text(raceShortName),
		GradeCode:  r.code(raceGrade),
		DistanceM:  r.number("distance_m", raceDistance),
		TrackCode:  r.code(raceTrack),
	}
	if race.TrackCode != nil {
		race.Surface = models.SurfaceForTrack(*race.TrackCode)
	}
	return race, r.malformed, nil
}
