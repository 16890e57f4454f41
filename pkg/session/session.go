package session

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"studentsphere/pkg/domain"
)

const issuer = "studentsphere-portal"

var (
	// ErrInvalidToken covers malformed, mis-signed, and expired tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenRevoked is returned after logout or account deletion.
	ErrTokenRevoked = errors.New("session has ended")
)

// Claims is the verified identity carried by a session token.
type Claims struct {
	ID       string
	Username string
	Role     domain.UserRole
	Expiry   time.Time
}

// Manager issues and verifies HS256 session tokens. Verification also
// consults the revoker so logout takes effect before expiry.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoker Revoker
}

// NewManager builds a session manager. secret must be non-empty.
func NewManager(secret string, ttl time.Duration, revoker Revoker) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("session secret required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, revoker: revoker}, nil
}

// Issue returns a signed token for the user.
func (m *Manager) Issue(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"jti":  uuid.NewString(),
		"iss":  issuer,
		"sub":  user.Username,
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(m.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, expiry, and revocation state.
func (m *Manager) Verify(token string) (Claims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return Claims{}, err
	}
	if m.revoker != nil {
		revoked, err := m.revoker.IsRevoked(claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke invalidates the token for the rest of its lifetime.
func (m *Manager) Revoke(token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if m.revoker == nil {
		return nil
	}
	return m.revoker.Revoke(claims.ID, time.Until(claims.Expiry))
}

func (m *Manager) parse(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	jti, _ := mapClaims["jti"].(string)
	role, _ := mapClaims["role"].(string)
	if sub == "" || jti == "" {
		return Claims{}, ErrInvalidToken
	}
	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		ID:       jti,
		Username: sub,
		Role:     domain.UserRole(role),
		Expiry:   exp.Time,
	}, nil
}
