package util

import (
	"regexp"

	"github.com/google/uuid"
)

var pinRegex = regexp.MustCompile(`^[0-9]{6}$`)

func IsValidUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func IsValidPin(s string) bool {
	return pinRegex.MatchString(s)
}
