package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var validate = validator.New()

// RebuildMsg asks a worker to preprocess one dataset and publish the
// result.
type RebuildMsg struct {
	Dataset       string `json:"dataset" validate:"required,alphanumunicode"`
	Reduce        bool   `json:"reduce"`
	MaxUsers      int    `json:"max_users" validate:"min=0"`
	MaxArtists    int    `json:"max_artists" validate:"min=0"`
	Seed          uint64 `json:"seed,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// DeleteMsg asks a worker to drop the stored copies of a dataset.
type DeleteMsg struct {
	Dataset       string `json:"dataset" validate:"required,alphanumunicode"`
	CorrelationID string `json:"correlation_id"`
}

// RebuiltEvent is published on EventsExchange after a rebuild.
type RebuiltEvent struct {
	Dataset       string   `json:"dataset"`
	CorrelationID string   `json:"correlation_id"`
	Entities      int      `json:"entities"`
	Triples       int      `json:"triples"`
	KGHash        string   `json:"kg_file_hash"`
	Artifacts     []string `json:"artifacts,omitempty"`
}

// NewCorrelationID returns an id for tracing one job through the logs.
func NewCorrelationID() string {
	id, err := gonanoid.New()
	if err != nil {
		return ""
	}
	return id
}

// EncodeRebuild validates msg, fills in a correlation id and encodes it.
func EncodeRebuild(msg RebuildMsg) ([]byte, error) {
	if msg.CorrelationID == "" {
		msg.CorrelationID = NewCorrelationID()
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("invalid rebuild message: %w", err)
	}
	return json.Marshal(msg)
}

func decode[T any](body []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := validate.Struct(msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	return msg, nil
}
