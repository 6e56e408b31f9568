package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"eventsettlement/internal/delivery/http/helpers"
	"eventsettlement/internal/delivery/http/middleware"
)

// currentUser returns the authenticated user. A body that names a different user is
// rejected, since a caller may only act for itself.
func currentUser(w http.ResponseWriter, r *http.Request, claimed string) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		helpers.WriteJSONError(w, http.StatusUnauthorized, helpers.ErrCodeUnauthorized, "unauthorized")
		return "", false
	}
	if claimed != "" && claimed != userID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "user_id does not match the authenticated user")
		return "", false
	}
	return userID, true
}

// pathUUID reads a UUID path parameter and writes a 400 when it is missing or malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.PathValue(name)
	if v == "" {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "missing "+name)
		return "", false
	}
	if _, err := uuid.Parse(v); err != nil {
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid "+name)
		return "", false
	}
	return v, true
}
