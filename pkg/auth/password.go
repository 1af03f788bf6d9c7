package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost matches bcrypt's recommended default; raising it
// trades login latency for resistance to offline cracking.
const passwordHashCost = bcrypt.DefaultCost

// HashPassword bcrypt-hashes a plaintext password for storage in
// identity.User.PasswordHash.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
