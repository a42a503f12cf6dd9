package gateway

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/byzantinelab/gateway/lib/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response is the body replied on failed requests.
type Response struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// ValidationError is returned when request parameters are missing or malformed.
type ValidationError struct {
	Msg     string
	Missing []string
}

func (e *ValidationError) Error() string { return e.Msg }

// ResolutionError is returned when the config block pointer cannot be read from a block.
type ResolutionError struct {
	Msg string
	Err error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}

	return e.Msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// BackendError wraps the errors returned by the ledger.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string { return e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

// backend wraps a ledger call result.
func backend(payload []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, &BackendError{Err: err}
	}

	return payload, nil
}

// status returns the http status for err.
func status(err error) int {
	var (
		ve *ValidationError
		re *ResolutionError
		be *BackendError
	)

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &re):
		return http.StatusInternalServerError
	case errors.As(err, &be):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// reply writes payload verbatim or the error response.
func reply(rw http.ResponseWriter, r *http.Request, payload []byte, err error) {
	code := status(err)

	if err != nil {
		res := Response{Error: err.Error()}

		var ve *ValidationError
		if errors.As(err, &ve) {
			res.Missing = ve.Missing
		}

		log.Logger.Infof("httpreq from %v %s %s status:%d err:%v", r.RemoteAddr, r.Method, r.RequestURI, code, err)

		rw.Header().Set("Content-Type", "application/json;charset=utf8")
		rw.WriteHeader(code)
		_ = json.NewEncoder(rw).Encode(&res)

		return
	}

	log.Logger.Debugf("httpreq from %v %s %s status:%d bytes:%d", r.RemoteAddr, r.Method, r.RequestURI, code, len(payload))

	if jsoniter.Valid(payload) {
		rw.Header().Set("Content-Type", "application/json;charset=utf8")
	} else {
		rw.Header().Set("Content-Type", "text/plain;charset=utf8")
	}

	rw.WriteHeader(code)

	if _, err = rw.Write(payload); err != nil {
		log.Logger.Warnf("httpreq from %v: cannot write response: %v", r.RemoteAddr, err)
	}
}
