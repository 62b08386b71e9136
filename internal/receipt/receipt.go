// Package receipt mints the opaque verification token handed out with every
// appointment. The token is a signed snapshot of the appointment state, so a
// front desk can verify it offline without a database lookup.
package receipt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/pkg/clock"
)

// ErrInvalidToken is returned when a token fails signature or shape checks
var ErrInvalidToken = errors.New("invalid receipt token")

// Party identifies one side of an appointment inside a snapshot.
type Party struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Specialty string    `json:"specialty,omitempty"`
	Hospital  string    `json:"hospital,omitempty"`
}

// Snapshot is the appointment state encoded into the token.
type Snapshot struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Patient       Party     `json:"patient"`
	Doctor        Party     `json:"doctor"`
	Date          string    `json:"date"`
	Start         string    `json:"start_time"`
	End           string    `json:"end_time"`
	Status        string    `json:"status"`
}

// TokenProvider mints receipt tokens. Minting happens on create, reschedule
// and every status change so the token always reflects current state.
type TokenProvider interface {
	Mint(snapshot Snapshot) (string, error)
}

type receiptClaims struct {
	jwt.RegisteredClaims
	Receipt Snapshot `json:"receipt"`
}

// JWTProvider signs snapshots as HS256 JWTs.
type JWTProvider struct {
	key   []byte
	clock clock.Clock
}

// NewJWTProvider creates a provider with the given signing key.
func NewJWTProvider(key string, c clock.Clock) *JWTProvider {
	if key == "" {
		panic("receipt: signing key required")
	}
	if c == nil {
		c = clock.Real{}
	}
	return &JWTProvider{key: []byte(key), clock: c}
}

// Mint signs the snapshot.
func (p *JWTProvider) Mint(snapshot Snapshot) (string, error) {
	now := p.clock.Now()
	claims := receiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  snapshot.AppointmentID.String(),
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.NewString(),
		},
		Receipt: snapshot,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("receipt: sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and returns the embedded snapshot.
func (p *JWTProvider) Verify(tokenString string) (*Snapshot, error) {
	claims := &receiptClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Receipt.AppointmentID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return &claims.Receipt, nil
}

var _ TokenProvider = (*JWTProvider)(nil)

// Static is a fixed-output provider for tests.
type Static struct {
	Token string
	Err   error
}

func (s Static) Mint(Snapshot) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.Token != "" {
		return s.Token, nil
	}
	return "receipt-" + uuid.NewString(), nil
}
