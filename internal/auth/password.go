package auth

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt hashing with a tunable work factor.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher. A non-positive cost falls back to the bcrypt
// default.
func NewHasher(cost int) Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash produces a salted one-way digest of the plaintext.
func (h Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether the plaintext matches the digest. The comparison is
// constant-time inside bcrypt; neither value is ever logged.
func (h Hasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
