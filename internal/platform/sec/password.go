// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

// Package sec provides cryptographic primitives for the SCIM server.
//
// # Architecture
//
// This package isolates security-sensitive code (password hashing, token
// verification) from the domain logic. The password manager understands three
// hash formats so that identity providers can sync pre-hashed credentials:
//
//   - argon2id (PHC string format) — the default for new plain-text passwords
//   - bcrypt ($2a$/$2b$/$2y$) — interop with legacy directories
//   - SSHA ({SSHA}base64) — interop with LDAP exports
package sec

import (
	"strings"

	"github.com/hiromu-dev/torii/internal/platform/apperr"
)

// # Strength Policy

const (
	// MinPasswordLength is the minimum accepted plain-text password length.
	MinPasswordLength = 8
	// MaxPasswordLength bounds input size to keep hashing cost predictable.
	MaxPasswordLength = 128
)

// passwordSpecials is the accepted set of special characters.
const passwordSpecials = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// PasswordManager hashes, verifies, and recognizes password values.
//
// A zero-value PasswordManager is ready to use.
type PasswordManager struct{}

// NewPasswordManager constructs the default password manager.
func NewPasswordManager() *PasswordManager {
	return &PasswordManager{}
}

// IsHashed reports whether the value is already in a recognized hash format.
//
// Recognized values are stored verbatim; everything else is treated as a
// plain-text password subject to the strength policy.
func (m *PasswordManager) IsHashed(value string) bool {
	return isArgon2Hash(value) || isBcryptHash(value) || isSSHAHash(value)
}

// Hash validates the plain-text password against the strength policy and
// returns its argon2id PHC hash.
//
// Values that are already recognized hashes are returned unchanged.
func (m *PasswordManager) Hash(value string) (string, error) {
	if m.IsHashed(value) {
		return value, nil
	}

	if err := m.ValidateStrength(value); err != nil {
		return "", err
	}

	return hashArgon2(value)
}

// Verify checks a plain-text candidate against a stored hash of any
// recognized format. Unrecognized stored values never verify.
func (m *PasswordManager) Verify(candidate, stored string) bool {
	switch {
	case isArgon2Hash(stored):
		return verifyArgon2(candidate, stored)
	case isBcryptHash(stored):
		return verifyBcrypt(candidate, stored)
	case isSSHAHash(stored):
		return verifySSHA(candidate, stored)
	default:
		return false
	}
}

// ValidateStrength enforces the plain-text password policy:
// 8..128 characters with at least one lowercase letter, one uppercase
// letter, one digit, and one special character.
func (m *PasswordManager) ValidateStrength(value string) error {
	if len(value) < MinPasswordLength {
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must be at least 8 characters long")
	}
	if len(value) > MaxPasswordLength {
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must be at most 128 characters long")
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, r):
			hasSpecial = true
		}
	}

	switch {
	case !hasLower:
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must contain at least one lowercase letter")
	case !hasUpper:
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must contain at least one uppercase letter")
	case !hasDigit:
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must contain at least one digit")
	case !hasSpecial:
		return apperr.BadRequest(apperr.ScimTypeInvalidValue, "Password must contain at least one special character")
	}

	return nil
}
