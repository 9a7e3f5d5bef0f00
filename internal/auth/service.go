package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Service is the fixed-credential gate in front of the ledger API.
type Service struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewService hashes password once so it is never kept in clear.
func NewService(username, password, secret string, ttl time.Duration) (*Service, error) {
	if username == "" || password == "" {
		return nil, errors.New("admin username and password are required")
	}
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Service{
		username:     username,
		passwordHash: hash,
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}, nil
}

// Login checks the credentials and issues a signed session token.
func (s *Service) Login(username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	exp := now.Add(s.ttl)
	token, err := SignHS256(map[string]any{
		"sub": s.username,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}, s.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Username: s.username, ExpiresAt: exp.UTC()}, nil
}

// Verify checks the token signature and expiry and returns its subject.
func (s *Service) Verify(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	sub, _ := claims["sub"].(string)
	if sub != s.username {
		return "", ErrInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return "", ErrInvalidToken
	}
	if !s.now().Before(time.Unix(int64(exp), 0)) {
		return "", ErrTokenExpired
	}
	return sub, nil
}
