package decoder

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

// Header fields shared by RA, SE and O1 records.
var (
	fieldTag    = field{1, 2}
	fieldYear   = field{12, 4}
	fieldMMDD   = field{16, 4}
	fieldCourse = field{20, 2}
	fieldKai    = field{22, 2}
	fieldDay    = field{24, 2}
	fieldRaceNo = field{26, 2}
)

type header struct {
	raceKey string
	date    string
	course  string
	kai     string
	day     string
	raceNo  int
}

// readHeader synthesizes the race key from the payload's own sub-fields.
func readHeader(r *reader) (*header, error) {
	yyyy := r.ascii(fieldYear)
	mmdd := r.ascii(fieldMMDD)
	course := r.ascii(fieldCourse)
	kai := r.ascii(fieldKai)
	day := r.ascii(fieldDay)
	raceNo := r.ascii(fieldRaceNo)

	key, err := models.BuildRaceKey(yyyy, mmdd, course, kai, day, raceNo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotApplicable, err)
	}
	no, err := parseNumber([]byte(raceNo))
	if err != nil || no == nil {
		return nil, fmt.Errorf("%w: race number %q", ErrNotApplicable, raceNo)
	}

	return &header{
		raceKey: key,
		date:    yyyy + mmdd,
		course:  course,
		kai:     kai,
		day:     day,
		raceNo:  *no,
	}, nil
}

// RaceKeyOf returns the race key encoded in any RA, SE or O1 payload header.
func RaceKeyOf(payload []byte) (string, error) {
	h, err := readHeader(newReader(payload))
	if err != nil {
		return "", err
	}
	return h.raceKey, nil
}
