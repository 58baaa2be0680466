// Package feed brings raw telegrams into the TelegramStore, from a websocket
// feed or from files.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/place-better/internal/models"
)

// Frame is the JSON envelope of one telegram. Payload is the raw cp932
// record, base64 encoded on the wire. An empty Kind is taken from the payload
// prefix.
type Frame struct {
	Kind       string    `json:"kind,omitempty"`
	DataSpec   string    `json:"dataspec,omitempty"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// ParseFrame decodes one JSON frame
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if len(f.Payload) == 0 {
		return nil, fmt.Errorf("invalid frame: empty payload")
	}
	return &f, nil
}

// Telegram converts the frame, using dataSpec when the frame carries none
func (f *Frame) Telegram(dataSpec string) *models.RawTelegram {
	if f.DataSpec != "" {
		dataSpec = f.DataSpec
	}
	return models.NewRawTelegram(f.Kind, dataSpec, f.Payload, f.ReceivedAt)
}
