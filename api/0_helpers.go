package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/bigdata/fixtures"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
		}{
			p.Message,
			p.Description,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

func writePrettyError(w http.ResponseWriter, status int, err error, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	PrettyError{
		Message:     err.Error(),
		Description: description,
	}.MarshalTo(w)
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)

		if errors.Is(err, fixtures.ErrPageNotFound) {
			writePrettyError(w, http.StatusNotFound, err, fmt.Sprintf("page '%s' does not exist", box.GetRequest(ctx).URL.Path))
			return
		}

		if err == box.ErrResourceNotFound {
			writePrettyError(w, http.StatusNotFound, err, fmt.Sprintf("resource '%s' not found", box.GetRequest(ctx).URL.String()))
			return
		}

		if err == box.ErrMethodNotAllowed {
			writePrettyError(w, http.StatusMethodNotAllowed, err, fmt.Sprintf("method '%s' not allowed", box.GetRequest(ctx).Method))
			return
		}

		writePrettyError(w, http.StatusInternalServerError, err, "Unexpected error")
	}
}
