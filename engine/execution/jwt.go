package execution

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/hookflow/hookflow/engine/core"
)

const (
	workflowJWTAudience = "floww-workflow"
	workflowJWTIssuer   = "floww-backend"
)

// JWTSigner mints and verifies workflow invocation JWTs (spec.md §4.8
// step 1, §6).
type JWTSigner struct {
	secret   []byte
	ttl      time.Duration
	audience string
	issuer   string
}

// NewJWTSigner builds a signer with the configured secret and TTL.
func NewJWTSigner(secret string, ttl time.Duration) *JWTSigner {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	return &JWTSigner{secret: []byte(secret), ttl: ttl, audience: workflowJWTAudience, issuer: workflowJWTIssuer}
}

// Mint signs a short-lived HS256 token with the claims spec.md §4.8 step 1
// requires.
func (s *JWTSigner) Mint(deploymentID, workflowID, namespaceID core.ID) (string, error) {
	invocationID := core.MustNewID()
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":           "deployment:" + deploymentID.String(),
		"deployment_id": deploymentID.String(),
		"workflow_id":   workflowID.String(),
		"namespace_id":  namespaceID.String(),
		"invocation_id": invocationID.String(),
		"iat":           now.Unix(),
		"exp":           now.Add(s.ttl).Unix(),
		"aud":           s.audience,
		"iss":           s.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign workflow jwt: %w", err)
	}
	return signed, nil
}

// Verify validates a workflow invocation JWT's signature, audience, issuer
// and expiry (spec.md §6), returning its claims.
func (s *JWTSigner) Verify(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse workflow jwt: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid workflow jwt")
	}
	if aud, _ := claims["aud"].(string); aud != s.audience {
		return nil, fmt.Errorf("unexpected audience %q", aud)
	}
	if iss, _ := claims["iss"].(string); iss != s.issuer {
		return nil, fmt.Errorf("unexpected issuer %q", iss)
	}
	return claims, nil
}
