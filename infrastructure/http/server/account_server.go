package server

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/services"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

const maxAccountBodySize = 8 << 20

type signupRequest struct {
	Username       string `json:"username" validate:"required"`
	Password       string `json:"password" validate:"required"`
	ProfilePicture string `json:"profilePicture"`
}

type signinRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type lookupRequest struct {
	Username string `json:"username" validate:"required"`
}

type accountUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type signupResponse struct {
	Message string      `json:"message"`
	User    accountUser `json:"user"`
	Token   string      `json:"token"`
}

type signinResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type profileUser struct {
	Username       string  `json:"username"`
	ProfilePicture *string `json:"profilePicture"`
}

type lookupResponse struct {
	User profileUser `json:"user"`
}

// AccountServer exposes signup, signin and profile lookup as JSON endpoints.
type AccountServer struct {
	log         *slog.Logger
	authService services.IAuthService
}

func NewAccountServer(log *slog.Logger, authService services.IAuthService) *AccountServer {
	return &AccountServer{log: log, authService: authService}
}

func (s *AccountServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/signup", s.Signup)
	mux.HandleFunc("POST /api/auth/signin", s.Signin)
	mux.HandleFunc("POST /api/auth/users", s.Lookup)
}

func (s *AccountServer) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !s.decode(w, r, &req, "Username and password are required") {
		return
	}
	profile, token, err := s.authService.Signup(req.Username, req.Password, req.ProfilePicture)
	if err != nil {
		s.fail(w, "Signup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, signupResponse{
		Message: "Signup successful",
		User:    accountUser{ID: profile.ID, Username: profile.Username},
		Token:   token.String(),
	})
}

func (s *AccountServer) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !s.decode(w, r, &req, "Username and password are required") {
		return
	}
	token, err := s.authService.Signin(req.Username, req.Password)
	if err != nil {
		s.fail(w, "Signin failed", err)
		return
	}
	writeJSON(w, http.StatusOK, signinResponse{Message: "Signin successful", Token: token.String()})
}

func (s *AccountServer) Lookup(w http.ResponseWriter, r *http.Request) {
	var req lookupRequest
	if !s.decode(w, r, &req, "Username is required") {
		return
	}
	profile, err := s.authService.Lookup(req.Username)
	if err != nil {
		s.fail(w, "Lookup failed", err)
		return
	}
	var picture *string
	if len(profile.ProfilePicture) > 0 {
		picture = lo.ToPtr(base64.StdEncoding.EncodeToString(profile.ProfilePicture))
	}
	writeJSON(w, http.StatusOK, lookupResponse{User: profileUser{Username: profile.Username, ProfilePicture: picture}})
}

// decode reads a JSON body and checks its required fields, answering 400 on failure.
func (s *AccountServer) decode(w http.ResponseWriter, r *http.Request, req any, missing string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBodySize)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := auth.ValidateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, missing)
		return false
	}
	return true
}

func (s *AccountServer) fail(w http.ResponseWriter, msg string, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error(msg, "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	s.log.Debug(msg, "status", status, "error", err)
	writeError(w, status, capitalize(err.Error()))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
