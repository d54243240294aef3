package api

import (
	"github.com/go-faster/jx"
)

// Encode encodes SyncOK as JSON.
func (s *SyncOK) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(StatusSuccess)
	e.FieldStart("order_id")
	e.Int64(s.OrderID)
	e.FieldStart("user_id")
	e.Int64(s.UserID)
	e.ObjEnd()
}

// Encode encodes the error envelope.
func (s *Error) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(StatusError)
	e.FieldStart("message")
	e.Str(s.Message)
	e.ObjEnd()
}

// MarshalJSON implements json.Marshaler.
func (s *SyncOK) MarshalJSON() ([]byte, error) {
	e := jx.Encoder{}
	s.Encode(&e)
	return e.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (s *Error) MarshalJSON() ([]byte, error) {
	e := jx.Encoder{}
	s.Encode(&e)
	return e.Bytes(), nil
}
