// Package snapshot persists the composed canvas in a single local slot.
package snapshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"
)

var (
	ErrNoSnapshot         = errors.New("no snapshot")
	ErrStorageUnavailable = errors.New("snapshot storage unavailable")
)

const dataURLPrefix = "data:image/png;base64,"

// Slot is one overwritable storage key. Read returns ErrNoSnapshot when
// nothing was written yet.
type Slot interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
}

type Snapshot struct {
	CapturedAt time.Time
	Image      image.Image
}

type document struct {
	CapturedAt time.Time `json:"captured_at"`
	DataURL    string    `json:"data_url"`
}

type Store struct {
	slot Slot
}

func NewStore(slot Slot) *Store {
	return &Store{slot: slot}
}

// Save encodes img as PNG and overwrites the slot.
func (s *Store) Save(ctx context.Context, img image.Image, at time.Time) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	doc, err := json.Marshal(document{
		CapturedAt: at.UTC(),
		DataURL:    dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.slot.Write(ctx, doc)
}

// Load decodes the stored snapshot. A slot holding something that is not a
// snapshot is reported as unavailable storage.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := s.slot.Read(ctx)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode document: %v", ErrStorageUnavailable, err)
	}
	encoded, ok := strings.CutPrefix(doc.DataURL, dataURLPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected data url", ErrStorageUnavailable)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decode data url: %v", ErrStorageUnavailable, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode png: %v", ErrStorageUnavailable, err)
	}
	return &Snapshot{CapturedAt: doc.CapturedAt, Image: img}, nil
}
