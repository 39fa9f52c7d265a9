package utils

import (
	"fmt"
	"math"
	"regexp"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateMarkup validates a partner markup percentage
func ValidateMarkup(pct float64) error {
	if pct < 0 {
		return fmt.Errorf("markup percentage must not be negative: %.2f", pct)
	}

	if pct > 100 {
		return fmt.Errorf("markup percentage exceeds maximum limit: %.2f", pct)
	}

	return nil
}

// RoundCents rounds a monetary amount to two decimal places
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// SanitizeString removes potentially harmful characters
func SanitizeString(s string) string {
	// Remove control characters and potential SQL injection patterns
	sanitized := regexp.MustCompile(`[\x00-\x1f\x7f]`).ReplaceAllString(s, "")
	return sanitized
}
