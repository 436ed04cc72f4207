package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-quiz/internal/apperr"
	"github.com/mind-engage/mindengage-quiz/internal/logger"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// notice is the body of every error and of successful mutations: a message
// for the user plus the page the client should go to next.
type notice struct {
	Error    string            `json:"error,omitempty"`
	Notice   string            `json:"notice,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

const maxBody = 1 << 20

var errBadJSON = apperr.Invalid("Malformed request body.").WithCode("bad_json")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err. Access denials always send the caller home; other
// known failures send them back to the page they came from.
func writeError(w http.ResponseWriter, log *logger.Logger, err error, back string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, notice{
			Error:    "internal",
			Notice:   "Something went wrong. Please try again.",
			Redirect: back,
		})
		return
	}
	redirect := back
	if ae.Kind == apperr.AccessDenied {
		redirect = "/"
	}
	writeJSON(w, apperr.Status(ae.Kind), notice{
		Error:    ae.Code,
		Notice:   ae.Notice,
		Fields:   ae.Fields,
		Redirect: redirect,
	})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be omitted. It
// reports whether a body was present.
func decodeOptional(r *http.Request, v any) (bool, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, errBadJSON
	}
	return true, nil
}

// idParam parses a positive integer URL parameter. Anything else is a
// missing resource.
func idParam(r *http.Request, name string, missing error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, missing
	}
	return id, nil
}

func actorFrom(r *http.Request) rbac.Actor {
	a, _ := rbac.ActorFromContext(r.Context())
	return a
}
