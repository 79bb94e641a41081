// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package sec

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyTenantToken validates an HS256-signed bearer token against a
// tenant's shared secret.
//
// # Claims
//
// The expiry (exp) and not-before (nbf) claims are always enforced when
// present. Issuer and audience are enforced only when the tenant configures
// them, because many provisioning IdPs do not emit both.
func VerifyTenantToken(tokenString, secret, issuer, audience string) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if issuer != "" {
		options = append(options, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		options = append(options, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, options...)

	if err != nil {
		return fmt.Errorf("sec: invalid tenant token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("sec: tenant token failed validation")
	}

	return nil
}
