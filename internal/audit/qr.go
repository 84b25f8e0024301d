package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"platecheck/internal/domain"
)

// QRPayloadEncoder produces the payload embedded in a pass outcome. Rendering
// the payload as an image is a UI concern; the core only guarantees the
// payload contents.
type QRPayloadEncoder interface {
	Encode(record domain.VehicleRecord, auditor string, decidedAt time.Time) (string, error)
}

// JSONQREncoder emits a compact JSON payload that downstream scanners decode.
type JSONQREncoder struct{}

func NewJSONQREncoder() *JSONQREncoder {
	return &JSONQREncoder{}
}

type qrPayload struct {
	Plate     string `json:"plate"`
	Vehicle   string `json:"vehicle,omitempty"`
	Result    string `json:"result"`
	Auditor   string `json:"auditor"`
	DecidedAt string `json:"decided_at"`
}

func (e *JSONQREncoder) Encode(record domain.VehicleRecord, auditor string, decidedAt time.Time) (string, error) {
	payload, err := json.Marshal(qrPayload{
		Plate:     record.Plate,
		Vehicle:   record.DisplayName,
		Result:    string(domain.ResultPass),
		Auditor:   auditor,
		DecidedAt: decidedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encode qr payload: %w", err)
	}
	return string(payload), nil
}
