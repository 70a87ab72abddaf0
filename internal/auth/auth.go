// Package auth validates session tokens and maps user roles to capabilities.
// Login and token issuance belong to the identity service; the radar only
// needs to know who is asking and what their role allows.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is a subscription tier.
type Role string

// User roles
const (
	RoleFree    Role = "FREE"
	RolePremium Role = "PREMIUM"
	RoleAdmin   Role = "ADMIN"
)

var (
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrNoToken is returned when a request carries no bearer token
	ErrNoToken = errors.New("no bearer token")
	// ErrDisabled is returned when no signing secret is configured
	ErrDisabled = errors.New("token validation disabled")
)

// Claims represents the JWT claims for a user session
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string        // Secret key for verifying JWTs; empty disables validation
	TokenDuration time.Duration // Lifetime of tokens issued by GenerateToken
	Issuer        string        // Expected issuer (default: "atc-radar")
}

// Service provides token operations
type Service struct {
	config Config
}

// NewService creates a new authentication service
func NewService(cfg Config) *Service {
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "atc-radar"
	}
	return &Service{config: cfg}
}

// Enabled reports whether a signing secret is configured.
func (s *Service) Enabled() bool {
	return s.config.JWTSecret != ""
}

// GenerateToken generates a JWT token for a user. The identity service
// issues production tokens; this exists for tools and tests.
func (s *Service) GenerateToken(userID int, username string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}

	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// FromRequest validates the bearer token on r.
func (s *Service) FromRequest(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	return s.ValidateToken(strings.TrimSpace(token))
}

// ParseRole normalizes a stored role name. Unknown roles are FREE.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RolePremium:
		return RolePremium
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleFree
	}
}

// HasPremium reports whether role unlocks premium features. Only the
// PREMIUM tier does; ADMIN accounts are operators, not subscribers.
func HasPremium(role Role) bool {
	return role == RolePremium
}

// Capabilities is what the client may show for a role.
type Capabilities struct {
	Role              Role `json:"role"`
	IsPremium         bool `json:"isPremium"`
	CanViewTaxiCharts bool `json:"canViewTaxiCharts"`
}

// CapabilitiesFor derives the capability set for role.
func CapabilitiesFor(role Role) Capabilities {
	premium := HasPremium(role)
	return Capabilities{
		Role:              role,
		IsPremium:         premium,
		CanViewTaxiCharts: premium,
	}
}
