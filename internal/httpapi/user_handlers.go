package httpapi

import (
	"errors"
	"net/http"

	"taskhub.org/internal/auth"
)

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	identities, err := a.auth.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "USER_LIST_FAILED", "user listing failed")
		return
	}
	views := make([]userView, 0, len(identities))
	for _, identity := range identities {
		views = append(views, viewOf(identity))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	identity, err := a.auth.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "USER_LOOKUP_FAILED", "user lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": viewOf(identity)})
}
