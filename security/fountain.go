package security

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

const (
	// grantCodeBytes is the entropy of a grant code. 20 bytes encode to
	// exactly 32 base32 characters with no padding.
	grantCodeBytes = 20

	// GrantCodeLength is the length of a code returned by NextGrantCode
	GrantCodeLength = 32

	// AccessTokenLength is the length of a token returned by NextAccessToken
	AccessTokenLength = 43
)

var grantCodeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TokenFountain produces unpredictable grant codes and access tokens.
// It is safe for concurrent use.
type TokenFountain struct{}

// NewTokenFountain creates a token fountain backed by crypto/rand
func NewTokenFountain() *TokenFountain {
	return &TokenFountain{}
}

// NextGrantCode returns a fresh 160-bit grant code as 32 lowercase
// base32 characters. The alphabet contains no URL-reserved characters.
//
// The function panics if the system's random number generator fails.
func (f *TokenFountain) NextGrantCode() string {
	b := make([]byte, grantCodeBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand.Read failed: %v", err))
	}
	return strings.ToLower(grantCodeEncoding.EncodeToString(b))
}

// NextAccessToken returns a fresh 256-bit access token encoded as 43
// base64url characters.
func (f *TokenFountain) NextAccessToken() string {
	return oauth2.GenerateVerifier()
}
