package api

import (
	"errors"
	"net/http"

	"github.com/harborline/authcore/auth"
	"github.com/harborline/authcore/validate"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	meta := a.requestMeta(r)
	user, err := a.auth.Authenticate(r.Context(), req.Username, req.Password, meta)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	sess, err := a.auth.CreateSession(r.Context(), user, meta)
	if err != nil {
		a.writeInternalError(w, r, "creating session", err)
		return
	}
	csrf, err := a.auth.EnsureCSRFToken(r.Context(), sess)
	if err != nil {
		a.writeInternalError(w, r, "issuing csrf token", err)
		return
	}

	writeSessionCookie(w, r, sess.Token)
	writeJSON(w, http.StatusOK, LoginResponse{
		User:         userPayload(user),
		SessionToken: sess.Token,
		CSRFToken:    csrf,
	})
}

// Register handles POST /auth/register. All field validation happens here so
// that no store work is done for malformed input.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if !validate.Username(req.Username) {
		writeError(w, http.StatusBadRequest, "username must be 3-30 characters: letters, digits, underscore")
		return
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if vErr := auth.CheckPasswordPolicy(req.Password); vErr != nil {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	userID, err := a.auth.CreateUser(r.Context(), req.Username, email, req.Password, "", a.requestMeta(r))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{UserID: userID})
}

// Logout handles POST /auth/logout. It requires a valid session; destroying
// someone else's token blind is not allowed.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	meta := a.requestMeta(r)
	if _, _, err := a.auth.ValidateSession(r.Context(), token, meta); err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := a.auth.DestroySession(r.Context(), token, meta); err != nil {
		a.writeInternalError(w, r, "destroying session", err)
		return
	}
	clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, struct{}{})
}

// Validate handles POST /auth/validate. The 401 body carries valid:false so
// the consuming CRUD layer can branch without parsing the status.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	user, sess, err := a.auth.ValidateSession(r.Context(), sessionToken(r), a.requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) || errors.Is(err, auth.ErrSessionExpired) {
			writeJSON(w, http.StatusUnauthorized, ValidateResponse{Valid: false})
			return
		}
		a.writeInternalError(w, r, "validating session", err)
		return
	}
	csrf, err := a.auth.EnsureCSRFToken(r.Context(), sess)
	if err != nil {
		a.writeInternalError(w, r, "issuing csrf token", err)
		return
	}
	u := userPayload(user)
	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:     true,
		User:      &u,
		CSRFToken: csrf,
	})
}

// ChangePassword handles POST /auth/change-password. Requires a valid
// session plus the session's CSRF token in X-CSRF-Token.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	meta := a.requestMeta(r)
	user, sess, err := a.auth.ValidateSession(r.Context(), sessionToken(r), meta)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := a.auth.ValidateCSRFToken(r.Context(), sess, r.Header.Get("X-CSRF-Token"), meta); err != nil {
		a.mapError(w, r, err)
		return
	}

	req, ok := decodeJSON[ChangePasswordRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if vErr := auth.CheckPasswordPolicy(req.NewPassword); vErr != nil {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "passwords do not match")
		return
	}

	if err := a.auth.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword, meta); err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}
