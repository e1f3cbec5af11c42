// Package voice issues short-lived credentials for the voice chat channel
// that accompanies each room. It knows nothing about games.
package voice

import (
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured   = errors.New("voice credentials are not configured")
	ErrChannelRequired = errors.New("channel name is required")
	ErrInvalidUID      = errors.New("uid must be a non-negative integer")
	ErrInvalidToken    = errors.New("invalid voice token")
)

// DefaultTTL is how long a token stays valid when no TTL is configured.
const DefaultTTL = time.Hour

// Config holds the voice provider credentials.
type Config struct {
	AppID  string
	Secret string
	Issuer string
	TTL    time.Duration
}

// Token is a signed credential for one channel slot.
type Token struct {
	Token     string    `json:"token"`
	Channel   string    `json:"channel"`
	UID       int       `json:"uid"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims are the decoded contents of a token.
type Claims struct {
	AppID     string
	Channel   string
	UID       int
	ExpiresAt time.Time
}

// Issuer signs channel tokens with HS256.
type Issuer struct {
	config Config
	clock  quartz.Clock
}

// NewIssuer returns an issuer for config. A nil clock means wall time.
func NewIssuer(config Config, clock quartz.Clock) *Issuer {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Issuer{config: config, clock: clock}
}

// Enabled reports whether the issuer has a secret to sign with.
func (i *Issuer) Enabled() bool {
	return i != nil && i.config.Secret != "" && i.config.AppID != ""
}

// Issue returns a token granting uid access to channel.
func (i *Issuer) Issue(channel string, uid int) (Token, error) {
	if !i.Enabled() {
		return Token{}, ErrNotConfigured
	}
	if channel == "" {
		return Token{}, ErrChannelRequired
	}
	if uid < 0 {
		return Token{}, ErrInvalidUID
	}

	now := i.clock.Now()
	expires := now.Add(i.config.TTL)
	claims := jwt.MapClaims{
		"iss":     i.config.Issuer,
		"sub":     fmt.Sprintf("%s:%d", channel, uid),
		"iat":     now.Unix(),
		"exp":     expires.Unix(),
		"jti":     uuid.NewString(),
		"app":     i.config.AppID,
		"channel": channel,
		"uid":     uid,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.config.Secret))
	if err != nil {
		return Token{}, fmt.Errorf("sign voice token: %w", err)
	}
	return Token{
		Token:     signed,
		Channel:   channel,
		UID:       uid,
		ExpiresAt: time.Unix(expires.Unix(), 0).UTC(),
	}, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
func (i *Issuer) Verify(token string) (Claims, error) {
	if !i.Enabled() {
		return Claims{}, ErrNotConfigured
	}

	parser := &jwt.Parser{SkipClaimsValidation: true}
	parsed, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(i.config.Secret), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	if !claims.VerifyExpiresAt(i.clock.Now().Unix(), true) {
		return Claims{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	if !claims.VerifyIssuer(i.config.Issuer, i.config.Issuer != "") {
		return Claims{}, fmt.Errorf("%w: wrong issuer", ErrInvalidToken)
	}

	channel, _ := claims["channel"].(string)
	app, _ := claims["app"].(string)
	uid, _ := claims["uid"].(float64)
	exp, _ := claims["exp"].(float64)
	return Claims{
		AppID:     app,
		Channel:   channel,
		UID:       int(uid),
		ExpiresAt: time.Unix(int64(exp), 0).UTC(),
	}, nil
}
