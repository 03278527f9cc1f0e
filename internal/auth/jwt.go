package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in tokens.
const (
	RoleDevice = "device"
	RoleViewer = "viewer"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenKind = errors.New("wrong token kind")
	ErrRevoked        = errors.New("refresh token revoked or unknown")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"-"`
	RefreshExp   time.Time `json:"-"`
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tokens for one issuer.
type Signer struct {
	Issuer     string
	Key        []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	now func() time.Time
}

// NewSigner builds a signer.
func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Issuer: issuer, Key: []byte(key), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

// Issue issues signed access and refresh tokens for subject.
func (s *Signer) Issue(subject, role string) (TokenPair, error) {
	now := s.now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.sign(subject, role, kindAccess, now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, role, kindRefresh, now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *Signer) sign(subject, role, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
}

// ParseAccess validates an access token.
func (s *Signer) ParseAccess(token string) (Claims, error) {
	return s.parse(token, kindAccess)
}

// ParseRefresh validates a refresh token.
func (s *Signer) ParseRefresh(token string) (Claims, error) {
	return s.parse(token, kindRefresh)
}

func (s *Signer) parse(tokenStr, kind string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.Key, nil
	}, opts...)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Kind != kind {
		return Claims{}, ErrWrongTokenKind
	}
	return *claims, nil
}

// RefreshStore persists issued refresh tokens so they can be rotated once.
type RefreshStore interface {
	SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error
	RefreshTokenActive(ctx context.Context, token string) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// IssueStored issues a pair and records its refresh token.
func (s *Signer) IssueStored(ctx context.Context, store RefreshStore, subject, role string) (TokenPair, error) {
	pair, err := s.Issue(subject, role)
	if err != nil {
		return TokenPair{}, err
	}
	if err := store.SaveRefreshToken(ctx, subject, pair.RefreshToken, pair.RefreshExp); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Rotate exchanges an active refresh token for a new pair and revokes the old
// token. A token can be rotated only once.
func (s *Signer) Rotate(ctx context.Context, store RefreshStore, refreshToken string) (TokenPair, error) {
	claims, err := s.ParseRefresh(refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	active, err := store.RefreshTokenActive(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if !active {
		return TokenPair{}, ErrRevoked
	}
	if err := store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return TokenPair{}, err
	}
	return s.IssueStored(ctx, store, claims.Subject, claims.Role)
}
