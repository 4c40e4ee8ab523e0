// Package fakeapi is an in-memory implementation of the remote auth API.
//
// It backs the tests of every package that talks to the API and the server's
// FAKE_API development mode. Accounts live in memory, passwords are bcrypt hashed
// and tokens are HS256 JWTs carrying the same claims as the production API.
package fakeapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/token"
	"golang.org/x/crypto/bcrypt"
)

const DefaultAccessTTL = time.Hour

var ErrEmailExists = errors.New("email already exists")

type userRecord struct {
	principal.UserPrincipal
	PasswordHash string
}

type ownerRecord struct {
	principal.OwnerPrincipal
	PasswordHash string
}

type failure struct {
	status  int
	message string
}

// Server serves the auth API endpoints under the prefix it is mounted at.
type Server struct {
	mux        *http.ServeMux
	secret     []byte
	accessTTL  time.Duration
	bcryptCost int
	nowTime    func() time.Time

	mu       sync.RWMutex
	users    map[string]*userRecord  // keyed by email
	owners   map[string]*ownerRecord // keyed by email
	nextUser uint
	nextOwn  uint
	failures map[string][]failure
	holds    map[string]chan struct{}
	requests map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

// WithBcryptCost sets the password hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// WithNowTime sets the clock used for issuing and validating tokens.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// New creates a fake API signing tokens with secret.
func New(secret string, options ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		secret:     []byte(secret),
		accessTTL:  DefaultAccessTTL,
		bcryptCost: bcrypt.DefaultCost,
		nowTime:    time.Now,
		users:      make(map[string]*userRecord),
		owners:     make(map[string]*ownerRecord),
		failures:   make(map[string][]failure),
		holds:      make(map[string]chan struct{}),
		requests:   make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	s.handle(authapi.PathLogin, s.userLogin)
	s.handle(authapi.PathRegister, s.userRegister)
	s.handle(authapi.PathRefresh, s.refresh(principal.KindUser))
	s.handle(authapi.PathOwnerLogin, s.ownerLogin)
	s.handle(authapi.PathOwnerRegister, s.ownerRegister)
	s.handle(authapi.PathOwnerRefresh, s.refresh(principal.KindOwner))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handle registers path wrapped with request counting, injected failures and holds.
func (s *Server) handle(path string, h http.HandlerFunc) {
	s.mux.HandleFunc("POST "+path, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[path]++
		hold := s.holds[path]
		var fail *failure
		if queued := s.failures[path]; len(queued) > 0 {
			fail = &queued[0]
			s.failures[path] = queued[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeError(w, fail.status, fail.message, "")
			return
		}
		h(w, r)
	})
}

// FailNext makes the next request to path answer with status and message.
func (s *Server) FailNext(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, message: message})
}

// Hold blocks requests to path until the returned release func is called.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[path] == ch {
				delete(s.holds, path)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns how many requests path has received.
func (s *Server) Requests(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[path]
}

// AddUser creates a user account directly.
func (s *Server) AddUser(username, name, email, password string) (*principal.UserPrincipal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	email = normaliseEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, ErrEmailExists
	}
	s.nextUser++
	rec := &userRecord{
		UserPrincipal: principal.UserPrincipal{ID: s.nextUser, Username: username, Name: name, Email: email},
		PasswordHash:  string(hash),
	}
	s.users[email] = rec
	u := rec.UserPrincipal
	return &u, nil
}

// AddOwner creates an owner account directly.
func (s *Server) AddOwner(name, email, phone, password string) (*principal.OwnerPrincipal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	email = normaliseEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[email]; ok {
		return nil, ErrEmailExists
	}
	s.nextOwn++
	rec := &ownerRecord{
		OwnerPrincipal: principal.OwnerPrincipal{
			ID: s.nextOwn, Name: name, Email: email, Phone: phone,
			CreatedAt: s.nowTime().UTC().Truncate(time.Second),
		},
		PasswordHash: string(hash),
	}
	s.owners[email] = rec
	o := rec.OwnerPrincipal
	return &o, nil
}

// IssueToken signs a token for kind that expires after ttl.
func (s *Server) IssueToken(kind principal.Kind, id uint, email string, ttl time.Duration) (string, error) {
	now := s.nowTime()
	claims := &token.Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		PrincipalID: id,
		Email:       email,
		Type:        kind,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verify(raw string, kind principal.Kind) (*token.Claims, error) {
	claims := &token.Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(s.nowTime))
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("token issued for %q, not %q", claims.Type, kind)
	}
	return claims, nil
}

func (s *Server) expiresIn() int64 {
	return int64(s.accessTTL / time.Second)
}

func (s *Server) userLogin(w http.ResponseWriter, r *http.Request) {
	var req authapi.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := validateLogin(req.Email, req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, "Validation failed", msg)
		return
	}

	s.mu.RLock()
	rec, ok := s.users[normaliseEmail(req.Email)]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}
	s.writeUserAuth(w, http.StatusOK, rec.UserPrincipal)
}

func (s *Server) userRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := validateRegister(req); msg != "" {
		writeError(w, http.StatusBadRequest, "Validation failed", msg)
		return
	}
	u, err := s.AddUser(req.Username, req.Name, req.Email, req.Password)
	if errors.Is(err, ErrEmailExists) {
		writeError(w, http.StatusConflict, "Email already exists", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register user", "")
		return
	}
	s.writeUserAuth(w, http.StatusCreated, *u)
}

func (s *Server) ownerLogin(w http.ResponseWriter, r *http.Request) {
	var req authapi.OwnerLoginRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := validateLogin(req.Email, req.Password); msg != "" {
		writeError(w, http.StatusBadRequest, "Validation failed", msg)
		return
	}

	s.mu.RLock()
	rec, ok := s.owners[normaliseEmail(req.Email)]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}
	s.writeOwnerAuth(w, http.StatusOK, rec.OwnerPrincipal)
}

func (s *Server) ownerRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.OwnerRegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if msg := validateOwnerRegister(req); msg != "" {
		writeError(w, http.StatusBadRequest, "Validation failed", msg)
		return
	}
	o, err := s.AddOwner(req.Name, req.Email, req.Phone, req.Password)
	if errors.Is(err, ErrEmailExists) {
		writeError(w, http.StatusConflict, "Email already exists", "")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register owner", "")
		return
	}
	s.writeOwnerAuth(w, http.StatusCreated, *o)
}

func (s *Server) refresh(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing Authorization header", "")
			return
		}
		claims, err := s.verify(raw, kind)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Failed to refresh token", err.Error())
			return
		}
		fresh, err := s.IssueToken(kind, claims.Identifier(), claims.Email, s.accessTTL)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to refresh token", "")
			return
		}
		if kind == principal.KindOwner {
			writeJSON(w, http.StatusOK, map[string]any{"access_token": fresh, "expires_in": s.expiresIn()})
			return
		}
		writeJSON(w, http.StatusOK, authapi.RefreshResponse{AccessToken: fresh, ExpiresIn: s.expiresIn()})
	}
}

func (s *Server) writeUserAuth(w http.ResponseWriter, status int, u principal.UserPrincipal) {
	raw, err := s.IssueToken(principal.KindUser, u.ID, u.Email, s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", "")
		return
	}
	writeJSON(w, status, authapi.AuthResponse{User: &u, AccessToken: raw, ExpiresIn: s.expiresIn()})
}

func (s *Server) writeOwnerAuth(w http.ResponseWriter, status int, o principal.OwnerPrincipal) {
	raw, err := s.IssueToken(principal.KindOwner, o.ID, o.Email, s.accessTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", "")
		return
	}
	writeJSON(w, status, authapi.OwnerAuthResponse{Owner: &o, AccessToken: raw, ExpiresIn: s.expiresIn()})
}

func bearer(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload", "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == strings.TrimSpace(email)
}

func validateLogin(email, password string) string {
	switch {
	case !validEmail(email):
		return "email must be a valid email address"
	case len(password) < 1:
		return "password is required"
	}
	return ""
}

func validateRegister(req authapi.RegisterRequest) string {
	switch {
	case len(req.Username) < 3 || len(req.Username) > 50:
		return "username must be between 3 and 50 characters"
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case !validEmail(req.Email):
		return "email must be a valid email address"
	case len(req.Password) < 6:
		return "password must be at least 6 characters"
	}
	return ""
}

func validateOwnerRegister(req authapi.OwnerRegisterRequest) string {
	switch {
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case !validEmail(req.Email):
		return "email must be a valid email address"
	case strings.TrimSpace(req.Phone) == "":
		return "phone is required"
	case len(req.Password) < 6:
		return "password must be at least 6 characters"
	}
	return ""
}
