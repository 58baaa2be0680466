package models

import (
	"fmt"
	"time"
)

// RaceKeyLength is the length of yyyymmdd + course + kai + day + race number.
const RaceKeyLength = 16

// Surface values derived from the track code.
const (
	SurfaceTurf = "turf"
	SurfaceDirt = "dirt"
	SurfaceJump = "jump"
)

// jst is the feed's local time zone.
var jst = time.FixedZone("JST", 9*60*60)

// Race is one race, keyed by its synthesized race key
type Race struct {
	RaceKey    string    `db:"race_key" json:"race_key" validate:"required,len=16,numeric"`
	Date       string    `db:"yyyymmdd" json:"yyyymmdd" validate:"required,len=8,numeric"`
	CourseCode string    `db:"course_code" json:"course_code" validate:"required,len=2"`
	Kai        string    `db:"kai" json:"kai" validate:"required,len=2"`
	Day        string    `db:"day" json:"day" validate:"required,len=2"`
	RaceNo     int       `db:"race_no" json:"race_no" validate:"gte=1,lte=99"`
	GradeCode  *string   `db:"grade_code" json:"grade_code"`
	Name       *string   `db:"race_name" json:"race_name"`
	ShortName  *string   `db:"race_name_short" json:"race_name_short"`
	DistanceM  *int      `db:"distance_m" json:"distance_m" validate:"omitempty,gt=0"`
	TrackCode  *string   `db:"track_code" json:"track_code"`
	Surface    *string   `db:"surface" json:"surface"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// IsGraded reports whether the race carries a non-blank grade code
func (r *Race) IsGraded() bool {
	return r.GradeCode != nil && *r.GradeCode != ""
}

// RaceDate parses the race date in the feed's time zone
func (r *Race) RaceDate() (time.Time, error) {
	return ParseRaceDate(r.Date)
}

// BuildRaceKey concatenates the header sub-fields into a race key.
func BuildRaceKey(yyyy, mmdd, course, kai, day, raceNo string) (string, error) {
	key := yyyy + mmdd + course + kai + day + raceNo
	if len(key) != RaceKeyLength || !isDigits(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRaceKey, key)
	}
	return key, nil
}

// RaceKeyDate returns the yyyymmdd prefix of a race key.
func RaceKeyDate(raceKey string) string {
	if len(raceKey) < 8 {
		return ""
	}
	return raceKey[:8]
}

// ParseRaceDate parses a yyyymmdd string.
func ParseRaceDate(yyyymmdd string) (time.Time, error) {
	t, err := time.ParseInLocation("20060102", yyyymmdd, jst)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid race date %q: %w", yyyymmdd, err)
	}
	return t, nil
}

// FeedLocation returns the feed's time zone
func FeedLocation() *time.Location {
	return jst
}

// FormatRaceDate renders t as a yyyymmdd date in the feed's time zone.
func FormatRaceDate(t time.Time) string {
	return t.In(jst).Format("20060102")
}

// ParseAnnouncedAt parses a yyyymmddHHMM announcement stamp.
func ParseAnnouncedAt(stamp string) (time.Time, error) {
	return time.ParseInLocation("200601021504", stamp, jst)
}

// SurfaceForTrack maps a track code to a surface.
func SurfaceForTrack(trackCode string) *string {
	if len(trackCode) != 2 || !isDigits(trackCode) {
		return nil
	}
	code := int(trackCode[0]-'0')*10 + int(trackCode[1]-'0')
	var surface string
	switch {
	case code >= 10 && code <= 22:
		surface = SurfaceTurf
	case code >= 23 && code <= 29:
		surface = SurfaceDirt
	case code >= 51 && code <= 59:
		surface = SurfaceJump
	default:
		return nil
	}
	return &surface
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
