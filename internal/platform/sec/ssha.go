// Copyright (c) 2026 Torii. All rights reserved.
// Author: hiromu.dev.jp@gmail.com

package sec

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// sshaDigestLength is the SHA-1 digest size; the remainder of the decoded
// payload is the salt.
const sshaDigestLength = 20

// isSSHAHash recognizes the LDAP salted SHA-1 scheme prefix.
func isSSHAHash(value string) bool {
	return strings.HasPrefix(value, "{SSHA}") || strings.HasPrefix(value, "{ssha}")
}

// verifySSHA checks a candidate password against an {SSHA} hash.
//
// The payload layout is base64(sha1(password || salt) || salt).
func verifySSHA(candidate, hash string) bool {
	payload := hash[len("{SSHA}"):]

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(decoded) <= sshaDigestLength {
		return false
	}

	digest := decoded[:sshaDigestLength]
	salt := decoded[sshaDigestLength:]

	hasher := sha1.New()
	hasher.Write([]byte(candidate))
	hasher.Write(salt)

	return subtle.ConstantTimeCompare(hasher.Sum(nil), digest) == 1
}
