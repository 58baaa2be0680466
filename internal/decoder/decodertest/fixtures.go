// Package decodertest builds fixed-width telegram payloads for tests.
package decodertest

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/japanese"
)

// Payload is a fixed-width record under construction. Positions are 1-based.
type Payload struct {
	b []byte
}

// New returns a blank record of length with the tag and race key header set
func New(tag, raceKey string, length int) *Payload {
	b := bytes.Repeat([]byte(" "), length)
	copy(b, tag)
	copy(b[11:], raceKey)
	return &Payload{b: b}
}

// Put writes ASCII text at pos
func (p *Payload) Put(pos int, s string) *Payload {
	copy(p.b[pos-1:], s)
	return p
}

// PutText writes cp932 encoded text at pos
func (p *Payload) PutText(pos int, s string) *Payload {
	encoded, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("decodertest: encode %q: %v", s, err))
	}
	copy(p.b[pos-1:], encoded)
	return p
}

// Bytes returns the payload
func (p *Payload) Bytes() []byte {
	return p.b
}

// Race builds an RA record. An empty grade leaves the race non-graded.
func Race(raceKey, grade string, distance int) []byte {
	return New("RA", raceKey, 710).
		PutText(33, "テストレース").
		PutText(605, "テスト").
		Put(615, grade).
		Put(698, fmt.Sprintf("%04d", distance)).
		Put(706, "11").
		Bytes()
}

// EntryOptions sets the variable SE fields. Zero values are written as
// zeros and decode to nil.
type EntryOptions struct {
	HorseID     string
	JockeyCode  string
	TrainerCode string
	HandicapX10 int
	BodyWeight  int
	Finish      int
}

// Entry builds an SE record
func Entry(raceKey string, horseNo int, opts EntryOptions) []byte {
	jockey := opts.JockeyCode
	if jockey == "" {
		jockey = "05678"
	}
	trainer := opts.TrainerCode
	if trainer == "" {
		trainer = "01234"
	}
	return New("SE", raceKey, 340).
		Put(29, fmt.Sprintf("%02d", horseNo)).
		Put(31, opts.HorseID).
		PutText(41, "テストホース").
		Put(86, trainer).
		PutText(91, "調教師").
		Put(289, fmt.Sprintf("%03d", opts.HandicapX10)).
		Put(297, jockey).
		PutText(307, "騎手").
		Put(325, fmt.Sprintf("%03d", opts.BodyWeight)).
		Put(335, fmt.Sprintf("%02d", opts.Finish)).
		Bytes()
}

// OddsSlot is one horse's place odds in tenths
type OddsSlot struct {
	HorseNo int
	MinX10  int
	MaxX10  int
}

// Odds builds an O1 record announced at mmddHHMM
func Odds(raceKey, mmddHHMM string, slots ...OddsSlot) []byte {
	p := New("O1", raceKey, 610).Put(28, mmddHHMM)
	for i, s := range slots {
		p.Put(268+i*12, fmt.Sprintf("%02d%04d%04d", s.HorseNo, s.MinX10, s.MaxX10))
	}
	return p.Bytes()
}

// Master builds a KS or CH record
func Master(tag, code, name string) []byte {
	return New(tag, "", 80).Put(12, code).PutText(42, name).Bytes()
}

// Passing builds an RA7 record whose head carries raceKey and whose tail is
// the given corner text
func Passing(raceKey, corners string) []byte {
	return []byte("RA7" + raceDate(raceKey) + raceKey + " " + corners)
}

func raceDate(raceKey string) string {
	if len(raceKey) < 8 {
		return "00000000"
	}
	return raceKey[:8]
}
