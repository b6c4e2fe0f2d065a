package util

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// SanitizeHTML escapes markup so user content is safe to render verbatim.
func SanitizeHTML(s string) string {
	return html.EscapeString(s)
}

// SanitizeURL returns the URL unchanged when it uses http/https, otherwise "".
func SanitizeURL(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

// SanitizeInput trims whitespace and truncates to maxLength runes.
func SanitizeInput(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > maxLength {
		return string(runes[:maxLength])
	}
	return s
}

// IsValidPhone accepts E.164-style numbers, ignoring separators.
func IsValidPhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	return phoneRe.MatchString(cleaned)
}
