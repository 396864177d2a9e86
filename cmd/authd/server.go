package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/lifeflow/authcore"
)

// apiServer exposes the authentication operations as a JSON API.
type apiServer struct {
	service *authcore.Service
	logger  *slog.Logger
}

func newAPIServer(service *authcore.Service, logger *slog.Logger) *apiServer {
	return &apiServer{service: service, logger: logger}
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/verify-otp", s.handleVerifyOTP)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	mux.HandleFunc("POST /v1/logout", s.handleLogout)
	mux.HandleFunc("POST /v1/password/forgot", s.handleForgotPassword)
	mux.HandleFunc("POST /v1/password/reset", s.handleResetPassword)
	return deviceContext(mux)
}

// deviceContext stashes the caller's IP and User-Agent in the request
// context. The service binds sessions to both.
func deviceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ip := clientIP(r); ip != "" {
			ctx = authcore.WithClientIP(ctx, ip)
		}
		if ua := r.UserAgent(); ua != "" {
			ctx = authcore.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type registerRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	AddressID int64  `json:"address_id"`
	Password  string `json:"password"`
}

type verifyOTPRequest struct {
	IdentityID int64  `json:"identity_id"`
	Code       string `json:"code"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	StaySigned bool   `json:"stay_signed"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (s *apiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	info, err := s.service.Register(r.Context(), authcore.RegisterInput{
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.Phone,
		AddressID: req.AddressID,
		Password:  req.Password,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

func (s *apiServer) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok, err := s.service.VerifyOTP(r.Context(), req.IdentityID, req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"verified": ok})
}

func (s *apiServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	pair, err := s.service.Login(r.Context(), req.Email, req.Password, req.StaySigned)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	pair, err := s.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *apiServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.service.ForgotPassword(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	pair, err := s.service.ResetPassword(r.Context(), req.Email, req.OldPassword, req.NewPassword)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, authcore.ErrNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, authcore.ErrAuthenticationFailed):
		status = http.StatusUnauthorized
	case errors.Is(err, authcore.ErrIdentityNotFound),
		errors.Is(err, authcore.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, authcore.ErrDuplicateIdentity):
		status = http.StatusConflict
	case errors.Is(err, authcore.ErrMissingUserAgent):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", "err", err)
	}
}
