// Package authapifake is an in-process stand-in for the remote auth service, used by tests.
package authapifake

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-admin-console/authapi"
	"golang.org/x/crypto/bcrypt"
)

type admin struct {
	profile      authapi.AdminUserProfile
	passwordHash []byte
	currentJTI   string
}

type refreshGrant struct {
	email     string
	expiresAt time.Time
}

// Server is an httptest server speaking the auth service protocol.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	admins        map[string]*admin // email -> admin
	refreshTokens map[string]refreshGrant
	calls         map[string]int
	failures      map[string]int // path -> forced status code
	dropped       map[string]bool

	signingKey    []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	omitExpiresAt bool
	rotate        bool
	nowFunc       func() time.Time
}

type Option func(*Server)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = now
	}
}

// WithoutExpiresAt makes responses carry only expiresIn, as older auth service builds do.
func WithoutExpiresAt() Option {
	return func(s *Server) {
		s.omitExpiresAt = true
	}
}

// WithoutRotation keeps the same refresh token across refreshes.
func WithoutRotation() Option {
	return func(s *Server) {
		s.rotate = false
	}
}

func New(options ...Option) *Server {
	s := &Server{
		admins:        make(map[string]*admin),
		refreshTokens: make(map[string]refreshGrant),
		calls:         make(map[string]int),
		failures:      make(map[string]int),
		dropped:       make(map[string]bool),
		signingKey:    []byte(uuid.NewString()),
		accessTTL:     15 * time.Minute,
		refreshTTL:    7 * 24 * time.Hour,
		rotate:        true,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+authapi.PathAdminLogin, s.track(s.login))
	mux.HandleFunc("POST "+authapi.PathTokenRefresh, s.track(s.refresh))
	mux.HandleFunc("GET "+authapi.PathAdminProfile, s.track(s.profile))
	mux.HandleFunc("POST "+authapi.PathAdminLogout, s.track(s.logout))
	s.Server = httptest.NewServer(mux)
	return s
}

// AddAdmin registers an administrator that can log in with email and password.
func (s *Server) AddAdmin(email, password, firstName, lastName string) (authapi.AdminUserProfile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return authapi.AdminUserProfile{}, fmt.Errorf("failed to hash password: %w", err)
	}
	profile := authapi.AdminUserProfile{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Role:      "admin",
		CreatedAt: s.nowFunc().UTC().Truncate(time.Second),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[strings.ToLower(email)] = &admin{profile: profile, passwordHash: hash}
	return profile, nil
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// FailWith makes every subsequent request to path answer status. Zero restores normal behaviour.
func (s *Server) FailWith(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// DropConnections makes requests to path fail at the transport level.
func (s *Server) DropConnections(path string, drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped[path] = drop
}

// MintAccessToken signs an access token for email with an arbitrary expiry.
func (s *Server) MintAccessToken(email string, expiresAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[strings.ToLower(email)]
	if !ok {
		return "", errors.New("unknown admin")
	}
	return s.signAccessToken(a, expiresAt)
}

func (s *Server) track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status := s.failures[r.URL.Path]
		drop := s.dropped[r.URL.Path]
		s.mu.Unlock()

		if drop {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, err := hj.Hijack()
				if err == nil {
					conn.Close()
					return
				}
			}
			status = http.StatusBadGateway
		}
		if status != 0 {
			writeProblem(w, status, http.StatusText(status))
			return
		}
		next(w, r)
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req authapi.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.admins[strings.ToLower(req.Email)]
	if !ok || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		writeProblem(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	tokens, err := s.issue(a, "")
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, authapi.AdminAuthResponse{TokenRefreshResponse: *tokens, User: a.profile})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var req authapi.TokenRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "malformed body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.refreshTokens[req.RefreshToken]
	if !ok || s.nowFunc().After(grant.expiresAt) {
		writeProblem(w, http.StatusUnauthorized, "Refresh token is invalid or expired")
		return
	}
	a, ok := s.admins[grant.email]
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unknown admin")
		return
	}

	previous := req.RefreshToken
	if s.rotate {
		delete(s.refreshTokens, req.RefreshToken)
		previous = ""
	}
	tokens, err := s.issue(a, previous)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorize(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Invalid access token")
		return
	}
	writeJSON(w, http.StatusOK, a.profile)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorize(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Invalid access token")
		return
	}
	a.currentJTI = ""
	for token, grant := range s.refreshTokens {
		if grant.email == strings.ToLower(a.profile.Email) {
			delete(s.refreshTokens, token)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// issue creates a new access token, replacing the admin's previous one. keepRefresh, when set, is returned unchanged.
func (s *Server) issue(a *admin, keepRefresh string) (*authapi.TokenRefreshResponse, error) {
	now := s.nowFunc()
	expiresAt := now.Add(s.accessTTL)
	access, err := s.signAccessToken(a, expiresAt)
	if err != nil {
		return nil, err
	}

	resp := &authapi.TokenRefreshResponse{
		AccessToken: access,
		ExpiresIn:   int(s.accessTTL.Seconds()),
		TokenType:   "Bearer",
	}
	if !s.omitExpiresAt {
		resp.ExpiresAt = expiresAt.UTC()
	}

	if keepRefresh == "" {
		refresh := uuid.NewString()
		s.refreshTokens[refresh] = refreshGrant{email: strings.ToLower(a.profile.Email), expiresAt: now.Add(s.refreshTTL)}
		resp.RefreshToken = refresh
		resp.RefreshExpiresIn = int(s.refreshTTL.Seconds())
	}
	return resp, nil
}

func (s *Server) signAccessToken(a *admin, expiresAt time.Time) (string, error) {
	jti := uuid.NewString()
	claims := jwtlib.MapClaims{
		"sub":   a.profile.ID,
		"email": a.profile.Email,
		"iat":   s.nowFunc().Unix(),
		"exp":   expiresAt.Unix(),
		"jti":   jti,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	a.currentJTI = jti
	return signed, nil
}

// authorize resolves the bearer token to its admin. Only the most recently issued token is accepted.
func (s *Server) authorize(r *http.Request) (*admin, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, false
	}

	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (any, error) {
		return s.signingKey, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(s.nowFunc))
	if err != nil {
		return nil, false
	}

	email, _ := claims["email"].(string)
	jti, _ := claims["jti"].(string)
	a, ok := s.admins[strings.ToLower(email)]
	if !ok || a.currentJTI == "" || a.currentJTI != jti {
		return nil, false
	}
	return a, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
