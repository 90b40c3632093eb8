package session

import (
	"errors"
	"fmt"
	"time"

	"edurumble-service/internal/domain"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer     = "edurumble"
	defaultTTL = 7 * 24 * time.Hour
)

// Claims is the typed payload of a session token.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Credits  int    `json:"credits"`
	jwt.RegisteredClaims
}

// Manager signs and validates HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for user that expires after the configured ttl.
func (m *Manager) Issue(user domain.User) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		ID:       user.ID,
		Username: user.Username,
		Credits:  user.Credits,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates raw and returns the identity it carries. Every failure wraps domain.ErrUnauthorized.
func (m *Manager) Parse(raw string) (*domain.Identity, error) {
	if raw == "" {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Identity{ID: claims.ID, Username: claims.Username, Credits: claims.Credits}, nil
}
