package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"CycleLedger/internal/collector"
	"CycleLedger/internal/model"
)

var errNoCaller = errors.New("missing " + CallerHeader + " header")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps ledger errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrInvalidParameters), errors.Is(err, model.ErrInvalidClaim):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientTarget),
		errors.Is(err, model.ErrInsufficientBalance),
		errors.Is(err, model.ErrInsufficientSupply):
		return http.StatusConflict
	case errors.Is(err, model.ErrOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, collector.ErrNoPrice):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func caller(r *http.Request) (model.Address, error) {
	c := model.Address(r.Header.Get(CallerHeader))
	if c.IsZero() {
		return "", errNoCaller
	}
	return c, nil
}

func projectID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("project id: %w", model.ErrInvalidParameters)
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, model.ErrInvalidParameters)
	}
	return nil
}

// request parses the caller, project id and body shared by most mutations.
func request(r *http.Request, body interface{}) (model.Address, uint64, error) {
	c, err := caller(r)
	if err != nil {
		return "", 0, err
	}
	id, err := projectID(r)
	if err != nil {
		return "", 0, err
	}
	if body != nil {
		if err := decode(r, body); err != nil {
			return "", 0, err
		}
	}
	return c, id, nil
}
