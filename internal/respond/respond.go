package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const ContentTypeJSON = "application/json; charset=utf-8"

// ErrorBody is the JSON error shape of the console API.
type ErrorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func JSON(w http.ResponseWriter, r *http.Request, statusCode int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Ctx(r.Context()).Err(err).Msg("failed to write JSON response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	JSON(w, r, statusCode, ErrorBody{StatusCode: statusCode, Message: message})
}
