package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	appErrors "github.com/YathuPiraba/lead-management-system-sub000/pkg/errors"
)

// TokenConfig defines signing material and lifetimes for issued tokens.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      []string
}

// VerifiedToken is the decoded content of a token whose signature checked out.
type VerifiedToken struct {
	Identity  models.Identity
	SessionID string
	ExpiresAt time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces the wall clock used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// TokenService signs and verifies access and refresh tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService constructs a TokenService. The two secrets must be set and
// must differ so a refresh token can never pass as an access token.
func NewTokenService(config TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if config.AccessSecret == "" || config.RefreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if config.AccessSecret == config.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if config.AccessTTL <= 0 || config.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	s := &TokenService{config: config, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.config.RefreshTTL }

// IssueAccessToken signs a short-lived access token bound to sessionID.
func (s *TokenService) IssueAccessToken(id models.Identity, sessionID string) (string, time.Time, error) {
	claims, expiresAt := s.claims(id, models.TokenTypeAccess, s.config.AccessTTL)
	claims.SessionID = sessionID
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken signs a refresh token for a freshly generated session id.
func (s *TokenService) IssueRefreshToken(id models.Identity) (string, string, time.Time, error) {
	sessionID := uuid.NewString()
	claims, expiresAt := s.claims(id, models.TokenTypeRefresh, s.config.RefreshTTL)
	claims.SessionID = sessionID
	claims.TokenID = sessionID
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.RefreshSecret))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, sessionID, expiresAt, nil
}

// VerifyAccessToken validates an access token.
func (s *TokenService) VerifyAccessToken(token string) (*VerifiedToken, error) {
	return s.verify(token, s.config.AccessSecret, models.TokenTypeAccess)
}

// VerifyRefreshToken validates a refresh token. When the only problem is
// expiry, the decoded token is returned alongside ErrTokenExpired so callers
// can clean up the session it names.
func (s *TokenService) VerifyRefreshToken(token string) (*VerifiedToken, error) {
	return s.verify(token, s.config.RefreshSecret, models.TokenTypeRefresh)
}

func (s *TokenService) claims(id models.Identity, typ string, ttl time.Duration) (*models.TokenClaims, time.Time) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	sub := id.Subject()
	org, _ := models.OrganizationOf(id)
	return &models.TokenClaims{
		UserID:         sub.UserID,
		Username:       sub.Username,
		Email:          sub.Email,
		Role:           sub.Role,
		OrganizationID: org,
		Type:           typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   sub.UserID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}, expiresAt
}

func (s *TokenService) parser() *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if len(s.config.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(s.config.Audience[0]))
	}
	return jwt.NewParser(opts...)
}

func (s *TokenService) verify(tokenString, secret, typ string) (*VerifiedToken, error) {
	claims := &models.TokenClaims{}
	_, err := s.parser().ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})

	var expired bool
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			expired = true
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, appErrors.Wrap(err, appErrors.ErrTokenSignatureInvalid.Code, appErrors.ErrTokenSignatureInvalid.Status, appErrors.ErrTokenSignatureInvalid.Message)
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, appErrors.ErrTokenMalformed.Message)
		}
	}

	verified, shapeErr := s.decode(claims, typ)
	if shapeErr != nil {
		return nil, appErrors.Wrap(shapeErr, appErrors.ErrTokenMalformed.Code, appErrors.ErrTokenMalformed.Status, appErrors.ErrTokenMalformed.Message)
	}
	if expired {
		return verified, appErrors.Wrap(err, appErrors.ErrTokenExpired.Code, appErrors.ErrTokenExpired.Status, appErrors.ErrTokenExpired.Message)
	}
	return verified, nil
}

func (s *TokenService) decode(claims *models.TokenClaims, typ string) (*VerifiedToken, error) {
	if claims.Type != typ {
		return nil, errors.New("unexpected token type")
	}
	if claims.SessionID == "" {
		return nil, errors.New("missing session id")
	}
	if typ == models.TokenTypeRefresh && claims.TokenID != claims.SessionID {
		return nil, errors.New("refresh token id does not match session")
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return nil, errors.New("subject does not match user id")
	}
	id, err := claims.Identity()
	if err != nil {
		return nil, err
	}
	verified := &VerifiedToken{Identity: id, SessionID: claims.SessionID}
	if claims.ExpiresAt != nil {
		verified.ExpiresAt = claims.ExpiresAt.Time
	}
	return verified, nil
}
