package utils

import (
	"strings"
	"unicode"
)

// MaxParticipantIDLength bounds ids typed in by participants or passed by a panel provider.
const MaxParticipantIDLength = 64

// IsValidParticipantID accepts letters, digits, '-', '_' and '.'. An empty id
// is allowed and recorded as "unknown".
func IsValidParticipantID(id string) bool {
	if len(id) > MaxParticipantIDLength {
		return false
	}
	for _, char := range id {
		switch {
		case unicode.IsLetter(char), unicode.IsDigit(char):
		case strings.ContainsRune("-_.", char):
		default:
			return false
		}
	}
	return true
}
