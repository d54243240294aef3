package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// DefaultMaxBodySize is the request body limit of a Server.
const DefaultMaxBodySize = 1 << 20

// Handler handles the sync operation.
type Handler interface {
	// Sync handles POST /sync.
	Sync(ctx context.Context, req *SyncRequest) (SyncRes, error)
	// NewError creates the error response for err. It is called for request
	// decoding errors and for errors returned by Sync.
	NewError(ctx context.Context, err error) *ErrorStatusCode
}

// DecodeRequestError is passed to Handler.NewError when the request body
// cannot be decoded.
type DecodeRequestError struct {
	Err error
}

func (e *DecodeRequestError) Error() string {
	return "decode request: " + e.Err.Error()
}

func (e *DecodeRequestError) Unwrap() error {
	return e.Err
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxBodySize sets the request body limit in bytes.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// Server serves the sync operation over HTTP.
type Server struct {
	h           Handler
	maxBodySize int64
}

// NewServer creates a Server for h.
func NewServer(h Handler, opts ...ServerOption) *Server {
	s := &Server{
		h:           h,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := s.decodeRequest(w, r)
	if err != nil {
		s.writeError(ctx, w, &DecodeRequestError{Err: err})
		return
	}

	res, err := s.h.Sync(ctx, req)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	switch res := res.(type) {
	case *SyncOK:
		writeJSON(w, http.StatusOK, res.Encode)
	case *ErrorStatusCode:
		writeJSON(w, res.StatusCode, res.Response.Encode)
	default:
		s.writeError(ctx, w, errors.Errorf("unexpected response type %T", res))
	}
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*SyncRequest, error) {
	buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if len(buf) == 0 {
		return nil, errors.New("empty body")
	}

	var req SyncRequest
	if err := req.Decode(jx.DecodeBytes(buf)); err != nil {
		return nil, errors.Wrap(err, "decode \"application/json\"")
	}
	return &req, nil
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var code *ErrorStatusCode
	if !errors.As(err, &code) {
		code = s.h.NewError(ctx, err)
	}
	writeJSON(w, code.StatusCode, code.Response.Encode)
}

// WriteError writes the error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	e := Error{Message: message}
	writeJSON(w, status, e.Encode)
}

func writeJSON(w http.ResponseWriter, status int, encode func(*jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
