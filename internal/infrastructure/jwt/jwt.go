package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/apascualco/cinemesh/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenIssuer           = errors.New("token issuer not allowed")
	ErrKeyNotConfigured      = errors.New("key not configured")
)

// Service signs and checks the short-lived tokens services present to the
// registry. The subject is always the calling service name.
type Service struct {
	publicKey      *rsa.PublicKey
	privateKey     *rsa.PrivateKey
	issuer         string
	audience       string
	ttl            time.Duration
	allowedIssuers []string
}

func NewService(cfg *config.Config) (*Service, error) {
	s := &Service{
		issuer:         cfg.ServiceName,
		audience:       cfg.JWTAudience,
		ttl:            cfg.JWTTokenTTL,
		allowedIssuers: cfg.JWTAllowedIssuers,
	}

	if cfg.JWTPublicKey != "" {
		pubKey, err := parseRSAPublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		s.publicKey = pubKey
	}

	if cfg.JWTPrivateKey != "" {
		privKey, err := parseRSAPrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		s.privateKey = privKey

		if s.publicKey == nil {
			s.publicKey = &privKey.PublicKey
		}
	}

	return s, nil
}

func NewServiceWithKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, issuer, audience string, ttl time.Duration, allowedIssuers []string) *Service {
	return &Service{
		privateKey:     privateKey,
		publicKey:      publicKey,
		issuer:         issuer,
		audience:       audience,
		ttl:            ttl,
		allowedIssuers: allowedIssuers,
	}
}

func (s *Service) CanSign() bool {
	return s != nil && s.privateKey != nil
}

func (s *Service) CanVerify() bool {
	return s != nil && s.publicKey != nil
}

// GenerateServiceToken issues a token for this process addressed to the
// configured audience.
func (s *Service) GenerateServiceToken() (string, error) {
	if s.privateKey == nil {
		return "", fmt.Errorf("private %w", ErrKeyNotConfigured)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": s.issuer,
		"iss": s.issuer,
		"aud": s.audience,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

// ValidateServiceToken returns the calling service name.
func (s *Service) ValidateServiceToken(tokenString string) (string, error) {
	if s.publicKey == nil {
		return "", fmt.Errorf("public %w", ErrKeyNotConfigured)
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenMalformed, token.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", ErrTokenInvalidSignature
		}
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if !token.Valid {
		return "", ErrTokenMalformed
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrTokenMalformed
	}

	aud := getStringClaim(mapClaims, "aud")
	if aud != s.audience {
		return "", fmt.Errorf("%w: invalid audience %q", ErrTokenMalformed, aud)
	}

	if len(s.allowedIssuers) > 0 {
		iss := getStringClaim(mapClaims, "iss")
		if !slices.Contains(s.allowedIssuers, iss) {
			return "", fmt.Errorf("%w: %q", ErrTokenIssuer, iss)
		}
	}

	sub := getStringClaim(mapClaims, "sub")
	if sub == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrTokenMalformed)
	}

	return sub, nil
}

func parseRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}

	return rsaPub, nil
}

func parseRSAPrivateKey(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(normalizePEM(pemStr)))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rsaKey, nil
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// aud may be a string or a list; a list matches on its first entry.
func getStringClaim(claims jwt.MapClaims, key string) string {
	switch val := claims[key].(type) {
	case string:
		return val
	case []interface{}:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

var pemHeaderRe = regexp.MustCompile(`(?i)(-----BEGIN [A-Z ]+-----)`)
var pemFooterRe = regexp.MustCompile(`(?i)(-----END [A-Z ]+-----)`)

// normalizePEM restores line breaks in keys passed through single-line
// environment variables.
func normalizePEM(s string) string {
	if strings.Contains(s, "\n") {
		return s
	}
	s = pemHeaderRe.ReplaceAllString(s, "$1\n")
	s = pemFooterRe.ReplaceAllString(s, "\n$1")
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, "\n", 2)
	if len(parts) != 2 {
		return s
	}
	header := parts[0]
	rest := parts[1]
	parts = strings.SplitN(rest, "\n", 2)
	if len(parts) != 2 {
		return s
	}
	body := strings.ReplaceAll(parts[0], " ", "\n")
	return header + "\n" + body + "\n" + parts[1] + "\n"
}
