package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	ErrBadCredentials = errors.New("auth: invalid email or password")
	ErrBadToken       = errors.New("auth: invalid token")
)

const roleClaim = "role"

// Querier is the storage surface the service needs. *Store satisfies it.
type Querier interface {
	CreateUser(ctx context.Context, email, passwordHash, fullName, phone string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, string, error)
	GetUserByID(ctx context.Context, id string) (User, error)
}

// Service issues and validates access tokens.
type Service struct {
	Q         Querier
	Secret    []byte
	Issuer    string
	TokenTTL  time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// TokenPair is what login and register hand back.
type TokenPair struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// Register creates an account and signs the first token.
func (s *Service) Register(ctx context.Context, email, password, fullName, phone string) (TokenPair, error) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.Q.CreateUser(ctx, strings.ToLower(strings.TrimSpace(email)), hash, fullName, phone)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issue(u)
}

// Login checks credentials and signs a token.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, hash, err := s.Q.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return TokenPair{}, ErrBadCredentials
	}
	if err != nil {
		return TokenPair{}, err
	}
	ok, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, ErrBadCredentials
	}
	return s.issue(u)
}

// Me loads the caller's profile.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	return s.Q.GetUserByID(ctx, userID)
}

func (s *Service) issue(u User) (TokenPair, error) {
	now := s.now()
	exp := now.Add(s.TokenTTL)
	tok, err := jwt.NewBuilder().
		Subject(u.ID).
		Issuer(s.Issuer).
		IssuedAt(now).
		Expiration(exp).
		Claim(roleClaim, u.Role).
		Build()
	if err != nil {
		return TokenPair{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.Secret))
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: string(signed), ExpiresAt: exp, User: u}, nil
}

// ParseAccessToken validates a token and returns the subject and role.
func (s *Service) ParseAccessToken(token string) (userID, role string, err error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, s.Secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	if s.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(s.ClockSkew))
	}
	tok, err := jwt.ParseString(strings.TrimSpace(token), opts...)
	if err != nil {
		return "", "", ErrBadToken
	}
	sub := tok.Subject()
	if sub == "" {
		return "", "", ErrBadToken
	}
	if v, ok := tok.Get(roleClaim); ok {
		role, _ = v.(string)
	}
	return sub, role, nil
}
