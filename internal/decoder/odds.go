package decoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/place-better/internal/models"
)

const (
	oddsMinLength  = 603
	oddsBlockStart = 268
	oddsSlotCount  = models.MaxHorseNo
	oddsSlotWidth  = 12
)

var oddsAnnounced = field{28, 8}

// DecodeOdds decodes the place block of an O1 record. Slots without a horse
// number are skipped. Slots whose minimum exceeds the maximum are left out and
// reported through an error wrapping ErrInvalidOddsRange, alongside the valid quotes.
func DecodeOdds(payload []byte) ([]models.OddsQuote, error) {
	quotes, _, rejected, err := decodeOdds(newReader(payload))
	if err != nil {
		return nil, err
	}
	return quotes, errors.Join(rejected...)
}

func decodeOdds(r *reader) ([]models.OddsQuote, []string, []error, error) {
	if len(r.payload) < oddsMinLength || !hasTag(r.payload, models.KindPlaceOdds) {
		return nil, nil, nil, fmt.Errorf("%w: O1 length %d", ErrNotApplicable, len(r.payload))
	}
	h, err := readHeader(r)
	if err != nil {
		return nil, nil, nil, err
	}
	announced := announcedAt(h.date[:4], r.ascii(oddsAnnounced))

	var (
		quotes   []models.OddsQuote
		rejected []error
	)
	for i := 0; i < oddsSlotCount; i++ {
		base := oddsBlockStart + i*oddsSlotWidth
		horseNo := r.number("horse_no", field{base, 2})
		if horseNo == nil || *horseNo > models.MaxHorseNo {
			continue
		}
		quote := models.OddsQuote{
			RaceKey:     h.raceKey,
			HorseNo:     *horseNo,
			OddsMin:     tenths(r.number("place_odds_min", field{base + 2, 4})),
			OddsMax:     tenths(r.number("place_odds_max", field{base + 6, 4})),
			AnnouncedAt: announced,
		}
		if !quote.ValidRange() {
			rejected = append(rejected, fmt.Errorf("%w: race %s horse %02d (%.1f > %.1f)",
				ErrInvalidOddsRange, h.raceKey, quote.HorseNo, *quote.OddsMin, *quote.OddsMax))
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, r.malformed, rejected, nil
}

func tenths(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v) / 10
	return &f
}

func announcedAt(yyyy, mmddHHMM string) *time.Time {
	if len(mmddHHMM) != 8 {
		return nil
	}
	t, err := models.ParseAnnouncedAt(yyyy + mmddHHMM)
	if err != nil {
		return nil
	}
	return &t
}
