package models

import (
	"time"

	"github.com/google/uuid"
)

// Record kinds carried by the feed.
const (
	KindRace      = "RA"
	KindRacePass  = "RA7"
	KindEntry     = "SE"
	KindPlaceOdds = "O1"
	KindJockey    = "KS"
	KindTrainer   = "CH"
	kindTagLength = 2
	passTagLength = 3
)

// RawTelegram is one raw record as received from the feed. Stored rows are never modified.
type RawTelegram struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Kind       string    `db:"kind" json:"kind" validate:"required,min=2,max=3"`
	DataSpec   string    `db:"dataspec" json:"dataspec"`
	Payload    []byte    `db:"payload" json:"payload" validate:"required"`
	ReceivedAt time.Time `db:"received_at" json:"received_at" validate:"required"`
}

// NewRawTelegram builds a telegram, deriving Kind from the payload prefix when kind is empty.
func NewRawTelegram(kind, dataSpec string, payload []byte, receivedAt time.Time) *RawTelegram {
	if kind == "" {
		kind = KindFromPayload(payload)
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	return &RawTelegram{
		ID:         uuid.New(),
		Kind:       kind,
		DataSpec:   dataSpec,
		Payload:    payload,
		ReceivedAt: receivedAt,
	}
}

// KindFromPayload returns the record tag at the start of a payload.
// RA payloads whose third byte is '7' carry the corner running order and are reported as RA7.
func KindFromPayload(payload []byte) string {
	if len(payload) >= passTagLength && string(payload[:passTagLength]) == KindRacePass {
		return KindRacePass
	}
	if len(payload) < kindTagLength {
		return ""
	}
	return string(payload[:kindTagLength])
}
