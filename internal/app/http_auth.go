package app

import (
	"net/http"
)

func sessionPayload(s Session) map[string]any {
	return map[string]any{
		"accessToken":  s.Token,
		"refreshToken": s.RefreshToken,
		"userId":       s.UserID,
		"userName":     s.UserName,
		"expiresAt":    s.ExpiresAt.Unix(),
	}
}

// routeAuth serves the unauthenticated /api/auth/* endpoints. It reports
// false for unknown actions so the caller can fall through to 404.
func (s *HTTPServer) routeAuth(w http.ResponseWriter, r *http.Request, action string) bool {
	switch action {
	case "signup":
		var body struct {
			Email       string `json:"email"`
			Username    string `json:"username"`
			Password    string `json:"password"`
			DisplayName string `json:"displayName"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		payload, err := s.service.SignUp(r.Context(), body.Email, body.Username, body.Password, body.DisplayName)
		respondStatus(w, http.StatusCreated, payload, err)
	case "signin":
		var body struct {
			Identifier string `json:"identifier"`
			Email      string `json:"email"`
			Username   string `json:"username"`
			Password   string `json:"password"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		current, err := s.service.SignIn(r.Context(), firstNonBlank(body.Identifier, body.Email, body.Username), body.Password)
		if err != nil {
			writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, sessionPayload(current))
	case "verify-email":
		var body struct {
			Token string `json:"token"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		if err := s.service.VerifyEmail(r.Context(), body.Token); err != nil {
			writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully"})
	case "resend-verification":
		var body struct {
			Email string `json:"email"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		payload, err := s.service.ResendVerification(r.Context(), body.Email)
		respond(w, payload, err)
	case "reset-password/request":
		var body struct {
			Email string `json:"email"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		payload, err := s.service.RequestPasswordReset(r.Context(), body.Email)
		respond(w, payload, err)
	case "reset-password":
		var body struct {
			Token       string `json:"token"`
			NewPassword string `json:"newPassword"`
		}
		if !decodeOrFail(w, r, &body) {
			return true
		}
		if err := s.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
			writeServiceError(w, err)
			return true
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
	default:
		return false
	}
	return true
}

// handleSessionInfo never fails: a missing or stale token reads as anonymous.
func (s *HTTPServer) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	anonymous := map[string]any{"authenticated": false, "user": nil}
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	current, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusOK, anonymous)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":          current.UserID,
			"displayName": current.UserName,
		},
		"expiresAt": current.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decodeOrFail(w, r, &body) {
		return
	}
	current, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(current))
}

func (s *HTTPServer) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	current := Session{}
	if token := bearerToken(r); token != "" {
		if parsed, err := s.service.SessionFromToken(r.Context(), token); err == nil {
			current = parsed
		}
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), current, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
