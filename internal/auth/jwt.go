package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// RoleAdmin may use the admin API.
const RoleAdmin = "admin"

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
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
	now        func() time.Time
}

func NewSigner(issuer, key string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Issuer: issuer, Key: []byte(key), AccessTTL: accessTTL, RefreshTTL: refreshTTL, now: time.Now}
}

func (s *Signer) sign(subject, role, kind string, exp time.Time) (string, error) {
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
}

// Issue issues signed access and refresh tokens.
func (s *Signer) Issue(subject, role string) (TokenPair, error) {
	accessExp := s.now().Add(s.AccessTTL)
	refreshExp := s.now().Add(s.RefreshTTL)

	accessToken, err := s.sign(subject, role, KindAccess, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := s.sign(subject, role, KindRefresh, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token of the given kind and returns its claims.
func (s *Signer) Parse(tokenStr, kind string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.Key, nil
	}, jwt.WithIssuer(s.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Kind != kind {
		return Claims{}, errors.New("wrong token kind")
	}
	return *claims, nil
}
