package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerdesk/platform-auth/internal/core/domain"
)

var (
	// ErrInvalidToken indicates a malformed token or a failed signature check.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates the token's validity window has passed.
	ErrExpiredToken = errors.New("token expired")
)

// AccessClaims carries the payload of a full session token. The pending-MFA
// markers are captured here so ParseAccess can reject a pending token
// outright; IssueAccess never sets them.
type AccessClaims struct {
	UserID      string      `json:"uid"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	SessionID   string      `json:"sid,omitempty"`
	MFARequired bool        `json:"mfa_required,omitempty"`
	Temp        bool        `json:"temp,omitempty"`
	jwt.RegisteredClaims
}

// PendingMFAClaims carries the payload of a short-lived pending-MFA token.
// Temp and MFARequired distinguish it from a full session token; a pending
// token is never valid for authenticated requests.
type PendingMFAClaims struct {
	UserID      string      `json:"uid"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	MFARequired bool        `json:"mfa_required"`
	Temp        bool        `json:"temp"`
	jwt.RegisteredClaims
}

// TokenService signs and validates session and pending-MFA tokens with a
// shared HMAC secret. Pending tokens are stateless: signature plus expiry is
// the entire validation surface, nothing is stored server-side.
type TokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	pendingTTL time.Duration
	now        func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret, issuer string, accessTTL, pendingTTL time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	if pendingTTL <= 0 {
		pendingTTL = 5 * time.Minute
	}

	return &TokenService{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		pendingTTL: pendingTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the internal clock, used in tests.
func (t *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// IssueAccess signs a full session token for the user.
func (t *TokenService) IssueAccess(user domain.UserAccount, sessionID string) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := t.now().UTC()
	claims := AccessClaims{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// IssuePendingMFA signs a temporary token carried between the password step
// and the second-factor step of login.
func (t *TokenService) IssuePendingMFA(user domain.UserAccount) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("user id is required")
	}

	now := t.now().UTC()
	claims := PendingMFAClaims{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		MFARequired: true,
		Temp:        true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.pendingTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign pending mfa token: %w", err)
	}

	return signed, nil
}

// ParseAccess validates a full session token and returns its claims. A token
// carrying the temp or mfa_required markers is a pending-MFA token: it is
// only good for the second-factor step and never authenticates a request.
func (t *TokenService) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" || claims.Temp || claims.MFARequired {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParsePendingMFA validates a pending-MFA token and returns its claims. A
// token missing the temp or mfa_required markers is rejected outright.
func (t *TokenService) ParsePendingMFA(token string) (*PendingMFAClaims, error) {
	claims := &PendingMFAClaims{}
	if err := t.parse(token, claims); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" || !claims.Temp || !claims.MFARequired {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (t *TokenService) parse(token string, claims jwt.Claims) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	if parsed == nil || !parsed.Valid {
		return ErrInvalidToken
	}

	return nil
}
