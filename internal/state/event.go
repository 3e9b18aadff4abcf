package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedEvent = errors.New("malformed event")

const (
	// MaxBatchPoints caps the points carried by one batch.
	MaxBatchPoints = 4096
	maxPeerLen     = 64
)

type Kind string

const (
	KindPointBatch     Kind = "point-batch"
	KindStrokeComplete Kind = "stroke-complete"
	KindClear          Kind = "clear"
	KindCursor         Kind = "cursor"
	KindHello          Kind = "hello"
	KindBye            Kind = "bye"
)

// Event is one of the wire variants below.
type Event interface {
	Kind() Kind
	peer() string
	validate() error
}

// PointBatch carries points for an in-progress stroke. Anchor is the last
// point of the previous batch so the batch can be painted on its own.
type PointBatch struct {
	Stroke StrokeID `json:"stroke"`
	Batch  uint32   `json:"batch"`
	Color  string   `json:"color"`
	Mode   Mode     `json:"mode"`
	Anchor *Point   `json:"anchor,omitempty"`
	Points []Point  `json:"points"`
}

type StrokeComplete struct {
	Stroke  StrokeID `json:"stroke"`
	Batches uint32   `json:"batches"`
}

type Clear struct {
	Peer string `json:"peer"`
}

type Cursor struct {
	Peer string  `json:"peer"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	T    int64   `json:"t"`
}

type Hello struct {
	Peer string `json:"peer"`
}

type Bye struct {
	Peer string `json:"peer"`
}

func (PointBatch) Kind() Kind     { return KindPointBatch }
func (StrokeComplete) Kind() Kind { return KindStrokeComplete }
func (Clear) Kind() Kind          { return KindClear }
func (Cursor) Kind() Kind         { return KindCursor }
func (Hello) Kind() Kind          { return KindHello }
func (Bye) Kind() Kind            { return KindBye }

func (e PointBatch) peer() string     { return e.Stroke.Peer }
func (e StrokeComplete) peer() string { return e.Stroke.Peer }
func (e Clear) peer() string          { return e.Peer }
func (e Cursor) peer() string         { return e.Peer }
func (e Hello) peer() string          { return e.Peer }
func (e Bye) peer() string            { return e.Peer }

func (e PointBatch) validate() error {
	if err := validStroke(e.Stroke); err != nil {
		return err
	}
	if !e.Mode.Valid() {
		return fmt.Errorf("mode %q", e.Mode)
	}
	if _, err := ParseColor(e.Color); err != nil {
		return err
	}
	if len(e.Points) == 0 || len(e.Points) > MaxBatchPoints {
		return fmt.Errorf("batch of %d points", len(e.Points))
	}
	if e.Anchor != nil && !e.Anchor.valid() {
		return errors.New("anchor out of range")
	}
	for _, p := range e.Points {
		if !p.valid() {
			return errors.New("point out of range")
		}
	}
	return nil
}

func (e StrokeComplete) validate() error { return validStroke(e.Stroke) }
func (e Clear) validate() error          { return validPeer(e.Peer) }
func (e Hello) validate() error          { return validPeer(e.Peer) }
func (e Bye) validate() error            { return validPeer(e.Peer) }

func (e Cursor) validate() error {
	if err := validPeer(e.Peer); err != nil {
		return err
	}
	if !(Point{X: e.X, Y: e.Y}).valid() {
		return errors.New("cursor out of range")
	}
	return nil
}

func validStroke(id StrokeID) error {
	if id.Seq == 0 {
		return errors.New("stroke sequence is zero")
	}
	return validPeer(id.Peer)
}

func validPeer(peer string) error {
	if peer == "" || len(peer) > maxPeerLen {
		return fmt.Errorf("peer %q", peer)
	}
	return nil
}

type envelope struct {
	Kind Kind            `json:"kind"`
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// Encode wraps ev in the wire envelope sent by peer from.
func Encode(from string, ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	return json.Marshal(envelope{Kind: ev.Kind(), From: from, Data: data})
}

// Decode parses one frame. Every failure wraps ErrMalformedEvent.
func Decode(frame []byte) (string, Event, error) {
	var env envelope
	if err := strictUnmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: envelope: %v", ErrMalformedEvent, err)
	}

	var ev Event
	var err error
	switch env.Kind {
	case KindPointBatch:
		ev, err = decodeAs[PointBatch](env.Data)
	case KindStrokeComplete:
		ev, err = decodeAs[StrokeComplete](env.Data)
	case KindClear:
		ev, err = decodeAs[Clear](env.Data)
	case KindCursor:
		ev, err = decodeAs[Cursor](env.Data)
	case KindHello:
		ev, err = decodeAs[Hello](env.Data)
	case KindBye:
		ev, err = decodeAs[Bye](env.Data)
	default:
		return "", nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, env.Kind)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Kind, err)
	}
	if err := ev.validate(); err != nil {
		return "", nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Kind, err)
	}
	if ev.peer() != env.From {
		return "", nil, fmt.Errorf("%w: %s from %q names peer %q", ErrMalformedEvent, env.Kind, env.From, ev.peer())
	}
	return env.From, ev, nil
}

func decodeAs[T Event](data json.RawMessage) (Event, error) {
	var v T
	if len(data) == 0 {
		return nil, errors.New("missing data")
	}
	if err := strictUnmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
