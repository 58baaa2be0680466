package decoder

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

// Record is the typed result of decoding one telegram. Exactly one of the
// entity fields is set, according to Kind.
type Record struct {
	Kind    string
	Race    *models.Race
	Entry   *models.Entry
	Odds    []models.OddsQuote
	Jockey  *models.Jockey
	Trainer *models.Trainer

	// Malformed names numeric sub-fields that were not digits and decoded to nil.
	Malformed []string
	// Rejected holds odds slots dropped for an inverted range. Each wraps ErrInvalidOddsRange.
	Rejected []error
}

// Decode dispatches a payload to the decoder for kind. RA7 payloads carry a
// full RA record and decode as races.
func Decode(kind string, payload []byte) (*Record, error) {
	r := newReader(payload)
	rec := &Record{Kind: kind}
	var err error

	switch kind {
	case models.KindRace, models.KindRacePass:
		rec.Race, rec.Malformed, err = decodeRace(r)
	case models.KindEntry:
		rec.Entry, rec.Malformed, err = decodeEntry(r)
	case models.KindPlaceOdds:
		rec.Odds, rec.Malformed, rec.Rejected, err = decodeOdds(r)
	case models.KindJockey:
		var code string
		var name *string
		code, name, err = decodeMaster(r, models.KindJockey)
		if err == nil {
			rec.Jockey = &models.Jockey{Code: code, Name: name}
		}
	case models.KindTrainer:
		var code string
		var name *string
		code, name, err = decodeMaster(r, models.KindTrainer)
		if err == nil {
			rec.Trainer = &models.Trainer{Code: code, Name: name}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrNotApplicable, kind)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Kinds lists the record kinds Decode understands.
func Kinds() []string {
	return []string{
		models.KindRace,
		models.KindRacePass,
		models.KindEntry,
		models.KindPlaceOdds,
		models.KindJockey,
		models.KindTrainer,
	}
}
