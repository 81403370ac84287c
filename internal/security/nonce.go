// Package security issues and checks the short-lived nonces that protect
// admin order actions from cross-site request forgery.
package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NonceAction is the action every order-action nonce is bound to.
const NonceAction = "amazon_order_action"

// ErrInvalidNonce is returned for missing, expired, forged or mismatched
// nonces.
var ErrInvalidNonce = errors.New("security: invalid nonce")

// NonceClaims are the claims carried by an order-action nonce.
type NonceClaims struct {
	jwt.RegisteredClaims
	Action string `json:"act"`
}

// NonceConfig configures a NonceManager.
type NonceConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// DefaultNonceConfig returns the default nonce lifetime of 12 hours.
func DefaultNonceConfig() NonceConfig {
	return NonceConfig{TTL: 12 * time.Hour, Issuer: "amazonpay-order-admin"}
}

// NonceManager signs nonces with HS256.
type NonceManager struct {
	config NonceConfig
	now    func() time.Time
}

// NewNonceManager creates a NonceManager. An empty secret is rejected.
func NewNonceManager(config NonceConfig) (*NonceManager, error) {
	if config.Secret == "" {
		return nil, errors.New("security: nonce secret is required")
	}
	defaults := DefaultNonceConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.Issuer == "" {
		config.Issuer = defaults.Issuer
	}
	return &NonceManager{config: config, now: time.Now}, nil
}

// Issue returns a nonce that authorizes order actions on orderID.
func (m *NonceManager) Issue(orderID int64) (string, error) {
	now := m.now()
	claims := &NonceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   strconv.FormatInt(orderID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Action: NonceAction,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", fmt.Errorf("security: sign nonce: %w", err)
	}
	return signed, nil
}

// Verify checks that token is a valid, unexpired nonce for orderID.
func (m *NonceManager) Verify(token string, orderID int64) error {
	if token == "" {
		return fmt.Errorf("%w: missing", ErrInvalidNonce)
	}
	parsed, err := jwt.ParseWithClaims(token, &NonceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithSubject(strconv.FormatInt(orderID, 10)),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	claims, ok := parsed.Claims.(*NonceClaims)
	if !ok || !parsed.Valid || claims.Action != NonceAction {
		return fmt.Errorf("%w: wrong action", ErrInvalidNonce)
	}
	return nil
}
