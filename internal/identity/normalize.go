package identity

import (
	"errors"
	"strings"
)

var ErrMalformedEmail = errors.New("email must have the form local@domain with a single @")

// Normalize derives the user id shared by the chat directory and the database:
// the local part followed by the domain with every '.' removed.
//
// The mapping is not injective. "ab@cd.com" and "a@bcd.com" both become
// "abcdcom", and "a@b.c" collides with "a@bc". Callers that need a collision
// free key must not rely on this value alone.
func Normalize(email string) (string, error) {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", ErrMalformedEmail
	}
	return local + strings.ReplaceAll(domain, ".", ""), nil
}

// ChannelID is the per-user conversation channel id.
func ChannelID(userID string) string {
	return "chat-" + userID
}
