package middleware

import (
	"fmt"
	"strings"
	"time"
)

// Input validation for run trigger requests

// ValidateRegion checks the region against the supported set
func ValidateRegion(region string) error {
	allowed := map[string]bool{
		"us":     true,
		"il":     true,
		"uk":     true,
		"eu":     true,
		"crypto": true,
	}
	if region == "" {
		return nil
	}
	if !allowed[strings.ToLower(region)] {
		return fmt.Errorf("invalid region: %s (allowed: us, il, uk, eu, crypto)", region)
	}
	return nil
}

// ValidateMode checks the ingestion mode
func ValidateMode(mode string) error {
	if mode == "" {
		return nil
	}
	switch strings.ToLower(mode) {
	case "movers", "watchlist":
		return nil
	default:
		return fmt.Errorf("invalid mode: %s (allowed: movers, watchlist)", mode)
	}
}

// ValidateTop bounds the requested batch size
func ValidateTop(top int) error {
	if top < 0 || top > 100 {
		return fmt.Errorf("invalid top: %d (must be between 0 and 100)", top)
	}
	return nil
}

// ValidateDate checks the run date format when provided
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date: %s (expected YYYY-MM-DD)", date)
	}
	return nil
}
