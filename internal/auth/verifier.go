package auth

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// Verifier checks a presented bearer token against either a plaintext secret
// or a bcrypt hash of it. The hash wins when both are set.
type Verifier struct {
	token []byte
	hash  []byte
}

func NewVerifier(token, bcryptHash string) *Verifier {
	v := &Verifier{}
	if token != "" {
		v.token = []byte(token)
	}
	if bcryptHash != "" {
		v.hash = []byte(bcryptHash)
	}
	return v
}

func (v *Verifier) Configured() bool {
	return v != nil && (len(v.token) > 0 || len(v.hash) > 0)
}

func (v *Verifier) Verify(presented string) bool {
	if !v.Configured() || presented == "" {
		return false
	}
	if len(v.hash) > 0 {
		return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare(v.token, []byte(presented)) == 1
}

// HashToken is used by operators to produce API_BEARER_TOKEN_BCRYPT.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
