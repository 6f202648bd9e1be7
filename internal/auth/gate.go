// Package auth implements username/password sign-in backed by a YAML
// credentials file and a signed session cookie.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/mathpad/internal/apperr"
	"github.com/abhisek/mathpad/internal/logging"
)

// Status is the outcome of an authentication attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// LoginFailedMessage is shown for any unknown user or wrong password.
const LoginFailedMessage = "Username/password is incorrect"

const (
	minPasswordLen = 6
	// maxPasswordLen is the most bcrypt will hash.
	maxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// LoginResult reports a sign-in attempt.
type LoginResult struct {
	Status      Status `json:"status"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"name,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Registration is the sign-up form.
type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Registered is returned after a successful sign-up.
type Registered struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Claims is the session token payload.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Gate checks credentials and issues session tokens.
type Gate struct {
	store  *FileStore
	secret []byte
	log    *logging.Logger
	now    func() time.Time
}

// NewGate returns a Gate over store. secret signs tokens; when empty the
// cookie key from the credentials file is used, and failing that a random
// key that does not survive restarts.
func NewGate(store *FileStore, secret string, log *logging.Logger) (*Gate, error) {
	if log == nil {
		log = logging.Nop()
	}
	if secret == "" {
		secret = store.Cookie().Key
	}
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating token key: %w", err)
		}
		log.Warn("no auth secret configured; sessions will not survive a restart")
	}
	return &Gate{store: store, secret: key, log: log, now: time.Now}, nil
}

// Store returns the credentials store.
func (g *Gate) Store() *FileStore { return g.store }

// Login checks username and password.
func (g *Gate) Login(username, password string) LoginResult {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{Status: StatusPending, Message: "Please enter your username and password"}
	}

	u, ok := g.store.Lookup(username)
	if !ok {
		// Spend the same time as a real comparison.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return LoginResult{Status: StatusFailure, Message: LoginFailedMessage}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return LoginResult{Status: StatusFailure, Message: LoginFailedMessage}
	}
	return LoginResult{Status: StatusSuccess, Username: username, DisplayName: u.DisplayName()}
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mathpad-dummy-password"), bcrypt.MinCost)

// Register validates r, hashes the password and appends the record.
func (g *Gate) Register(r Registration) (*Registered, error) {
	r.Email = strings.TrimSpace(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.Name = strings.TrimSpace(r.Name)

	switch {
	case r.Email == "" || r.Username == "" || r.Name == "" || r.Password == "":
		return nil, apperr.Validation("email, username, name and password are all required")
	case !strings.Contains(r.Email, "@"):
		return nil, apperr.Validation("email is not valid")
	case !usernamePattern.MatchString(r.Username):
		return nil, apperr.Validation("username must be 3-32 letters, digits, '.', '_' or '-'")
	case len(r.Password) < minPasswordLen:
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	case len(r.Password) > maxPasswordLen:
		return nil, apperr.Validation("password must be at most %d bytes", maxPasswordLen)
	}

	hash, err := HashPassword(r.Password)
	if err != nil {
		return nil, err
	}
	err = g.store.Add(r.Username, User{Email: r.Email, Name: r.Name, Password: hash})
	if errors.Is(err, ErrUserExists) {
		return nil, apperr.Validation("username %q is already taken", r.Username)
	}
	if err != nil {
		return nil, err
	}
	g.log.Info("user registered", "user", r.Username)
	return &Registered{Email: r.Email, Username: r.Username, Name: r.Name}, nil
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// TTL is the lifetime of a session token.
func (g *Gate) TTL() time.Duration {
	return time.Duration(g.store.Cookie().ExpiryDays) * 24 * time.Hour
}

// CookieName is the name of the auth cookie.
func (g *Gate) CookieName() string {
	return g.store.Cookie().Name
}

// IssueToken signs a token binding username to sessionID.
func (g *Gate) IssueToken(username, displayName, sessionID string) (string, time.Time, error) {
	now := g.now()
	exp := now.Add(g.TTL())
	claims := Claims{
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, exp, nil
}

// ParseToken verifies a token and returns its claims.
func (g *Gate) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Msg: "invalid or expired session", Err: err}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, &apperr.Error{Kind: apperr.KindAuth, Msg: "invalid or expired session"}
	}
	return claims, nil
}
