// Package passing recovers corner running orders from RA7 telegrams.
//
// The race a telegram belongs to is found by searching its head for a known
// race key, and the order at each corner is read from the free-form tail.
package passing

import "github.com/yourusername/place-better/internal/models"

// Config tunes the recovery heuristics. A zero field takes its default.
type Config struct {
	// HeadWindow is the number of leading characters searched for a race key.
	HeadWindow int `mapstructure:"head_window"`
	// TailWindow is the number of trailing characters searched for corner tokens.
	TailWindow int `mapstructure:"tail_window"`
	// Sentinel marks the preferred token when a corner has several candidates.
	Sentinel string `mapstructure:"sentinel"`
	// MaxHorseNo bounds accepted horse numbers.
	MaxHorseNo int `mapstructure:"max_horse_no"`
	// MinPayloadLen is the structural minimum; shorter payloads are bad rows.
	MinPayloadLen int `mapstructure:"min_payload_len"`
	// BlockScanFallback enables the fixed-width digit block scan when no corner token parses.
	BlockScanFallback bool `mapstructure:"block_scan_fallback"`
	// StrictDate requires the matched key's date to equal the payload header date.
	StrictDate bool `mapstructure:"strict_date"`
}

// Default tuning values.
const (
	DefaultHeadWindow    = 120
	DefaultTailWindow    = 900
	DefaultSentinel      = "*"
	DefaultMinPayloadLen = 27
)

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		HeadWindow:        DefaultHeadWindow,
		TailWindow:        DefaultTailWindow,
		Sentinel:          DefaultSentinel,
		MaxHorseNo:        models.MaxHorseNo,
		MinPayloadLen:     DefaultMinPayloadLen,
		BlockScanFallback: true,
	}
}

func (c Config) withDefaults() Config {
	if c.HeadWindow <= 0 {
		c.HeadWindow = DefaultHeadWindow
	}
	if c.TailWindow <= 0 {
		c.TailWindow = DefaultTailWindow
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	if c.MaxHorseNo <= 0 {
		c.MaxHorseNo = models.MaxHorseNo
	}
	if c.MinPayloadLen <= 0 {
		c.MinPayloadLen = DefaultMinPayloadLen
	}
	return c
}
