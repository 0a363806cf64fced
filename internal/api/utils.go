package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/onyxservices/dispatch/internal/contracts"
	"github.com/onyxservices/dispatch/internal/db"
	"github.com/onyxservices/dispatch/internal/discord"
)

func generateRandomString(length int) string {
	// base64 grows the input by 4/3, so this is always enough bytes
	b := make([]byte, length)
	rand.Read(b)
	encoded := base64.URLEncoding.EncodeToString(b)
	return encoded[:length]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) serverError(w http.ResponseWriter, err error) {
	a.log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// writeServiceError maps domain errors onto HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, db.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, contracts.ErrInvalidShare), errors.Is(err, contracts.ErrInvalidStatus),
		errors.Is(err, contracts.ErrInvalidPayout), errors.Is(err, contracts.ErrInvalidContribution):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, discord.ErrNotGuildMember):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.serverError(w, err)
	}
}
