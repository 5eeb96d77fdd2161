package ratelimit

import "strings"

// LoginKey builds the limiter key for a login attempt. Attempts are
// bucketed per client address and target account so one noisy source
// cannot lock out unrelated users.
func LoginKey(clientIP, email string) string {
	ip := strings.TrimSpace(clientIP)
	account := strings.ToLower(strings.TrimSpace(email))
	if ip == "" && account == "" {
		return ""
	}
	return "login:" + ip + ":" + account
}
