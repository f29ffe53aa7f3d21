package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	pinDigits  = 6
	pinSpace   = 1000000
	tokenBytes = 32
)

// GeneratePin returns a uniformly random 6-digit code. Leading zeros
// are preserved ("004291" is a valid PIN).
func GeneratePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(pinSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}

// DeriveCertificate produces the opaque trust token bound to a pairing
// event: sha256(public_key || server_time || 32 random bytes), hex.
// It is a shared secret, not a verifiable signature.
func DeriveCertificate(publicKey string) (string, error) {
	nonce := make([]byte, tokenBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(publicKey))
	h.Write([]byte(strconv.FormatInt(time.Now().UnixNano(), 10)))
	h.Write(nonce)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func HmacSHA256(secret, data string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// ConstantTimeEqual compares two secrets without leaking the position
// of the first mismatch. Unequal lengths compare false immediately,
// which reveals only the length.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func MaskPin(pin string) string {
	if len(pin) <= 2 {
		return "******"
	}
	return pin[:2] + "****"
}
