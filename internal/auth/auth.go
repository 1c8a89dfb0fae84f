// Package auth resolves connection credentials to user identities.
package auth

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidCredential = errors.New("invalid credential")

// Verifier maps an opaque credential to the user it identifies.
type Verifier interface {
	Verify(ctx context.Context, credential string) (string, error)
}

// StaticVerifier accepts a fixed set of tokens. It serves local runs and
// tests where no session store is available.
type StaticVerifier struct {
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	clean := make(map[string]string, len(tokens))
	for token, userID := range tokens {
		token, userID = strings.TrimSpace(token), strings.TrimSpace(userID)
		if token == "" || userID == "" {
			continue
		}
		clean[token] = userID
	}
	return &StaticVerifier{tokens: clean}
}

func (v *StaticVerifier) Verify(_ context.Context, credential string) (string, error) {
	userID, ok := v.tokens[credential]
	if !ok || credential == "" {
		return "", ErrInvalidCredential
	}
	return userID, nil
}
