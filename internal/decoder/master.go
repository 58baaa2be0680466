package decoder

import (
	"fmt"

	"github.com/yourusername/place-better/internal/models"
)

const masterMinLength = 75

var (
	masterCode = field{12, 5}
	masterName = field{42, 34}
)

// DecodeJockey decodes a KS jockey master record.
func DecodeJockey(payload []byte) (*models.Jockey, error) {
	code, name, err := decodeMaster(newReader(payload), models.KindJockey)
	if err != nil {
		return nil, err
	}
	return &models.Jockey{Code: code, Name: name}, nil
}

// DecodeTrainer decodes a CH trainer master record.
func DecodeTrainer(payload []byte) (*models.Trainer, error) {
	code, name, err := decodeMaster(newReader(payload), models.KindTrainer)
	if err != nil {
		return nil, err
	}
	return &models.Trainer{Code: code, Name: name}, nil
}

func decodeMaster(r *reader, tag string) (string, *string, error) {
	if len(r.payload) < masterMinLength || !hasTag(r.payload, tag) {
		return "", nil, fmt.Errorf("%w: %s length %d", ErrNotApplicable, tag, len(r.payload))
	}
	code := r.code(masterCode)
	if code == nil {
		return "", nil, fmt.Errorf("%w: %s without code", ErrNotApplicable, tag)
	}
	return *code, r.text(masterName), nil
}
