package features

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

// Extension adds optional named fields to FeatureRow.Extra
type Extension string

// Known extensions
const (
	ExtensionLatestMetrics Extension = "latest_metrics"
	ExtensionFieldSize     Extension = "field_size"
)

// Extra field names
const (
	ExtraFieldSize        = "field_size"
	ExtraLastBodyWeight   = "last_body_weight"
	ExtraBodyWeightChange = "body_weight_change"
	ExtraStarts           = "starts"
	ExtraPlaceRate        = "place_rate"
)

// ParseExtensions converts configured names into extensions
func ParseExtensions(names []string) ([]Extension, error) {
	out := make([]Extension, 0, len(names))
	for _, n := range names {
		switch ext := Extension(n); ext {
		case ExtensionLatestMetrics, ExtensionFieldSize:
			out = append(out, ext)
		default:
			return nil, fmt.Errorf("unknown feature extension %q", n)
		}
	}
	return out, nil
}

// Fields lists the Extra keys an extension may set
func (e Extension) Fields() []string {
	switch e {
	case ExtensionLatestMetrics:
		return []string{ExtraLastBodyWeight, ExtraBodyWeightChange, ExtraStarts, ExtraPlaceRate}
	case ExtensionFieldSize:
		return []string{ExtraFieldSize}
	default:
		return nil
	}
}

func applyFieldSize(rows []FeatureRow) {
	fs := float64(len(rows))
	for i := range rows {
		v := fs
		rows[i].setExtra(ExtraFieldSize, &v)
	}
}

// applyLatestMetrics only uses metrics whose last race is dated before the
// row's race, so the result being predicted never leaks into the row.
func applyLatestMetrics(row *FeatureRow, m *models.HorseLatestMetrics) {
	for _, f := range ExtensionLatestMetrics.Fields() {
		row.setExtra(f, nil)
	}
	if !coversBefore(m, row.Date) {
		return
	}
	if m.LastBodyWeight != nil {
		last := float64(*m.LastBodyWeight)
		row.setExtra(ExtraLastBodyWeight, &last)
		if row.BodyWeight != nil {
			change := float64(*row.BodyWeight) - last
			row.setExtra(ExtraBodyWeightChange, &change)
		}
	}
	starts := float64(m.Starts)
	row.setExtra(ExtraStarts, &starts)
	if m.Starts > 0 {
		rate := float64(m.Places) / float64(m.Starts)
		row.setExtra(ExtraPlaceRate, &rate)
	}
}
