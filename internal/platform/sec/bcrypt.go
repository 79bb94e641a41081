// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package sec

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// isBcryptHash recognizes the modular crypt prefixes used by bcrypt.
func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") ||
		strings.HasPrefix(value, "$2b$") ||
		strings.HasPrefix(value, "$2y$")
}

// verifyBcrypt checks a candidate password against a bcrypt hash.
func verifyBcrypt(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
