package security

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// googleIssuer is the OIDC issuer for Google ID tokens.
const googleIssuer = "https://accounts.google.com"

// GoogleUserInfo holds the identity claims extracted from a Google ID token.
type GoogleUserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleVerifier validates Google ID tokens against a fixed OAuth client ID.
// Provider discovery is deferred to the first Verify call so the process can
// start without outbound network access.
type GoogleVerifier struct {
	clientID string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier builds a verifier for the given OAuth client ID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

// ensureVerifier lazily runs OIDC discovery against the Google issuer.
func (v *GoogleVerifier) ensureVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	if v.clientID == "" {
		return nil, fmt.Errorf("security: google client id not configured")
	}

	provider, errDiscover := oidc.NewProvider(ctx, googleIssuer)
	if errDiscover != nil {
		return nil, fmt.Errorf("security: discover google issuer: %w", errDiscover)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	return v.verifier, nil
}

// Verify validates a raw Google ID token and returns its identity claims.
func (v *GoogleVerifier) Verify(ctx context.Context, rawToken string) (*GoogleUserInfo, error) {
	verifier, errEnsure := v.ensureVerifier(ctx)
	if errEnsure != nil {
		return nil, errEnsure
	}

	idToken, errVerify := verifier.Verify(ctx, rawToken)
	if errVerify != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errVerify)
	}

	var info GoogleUserInfo
	if errClaims := idToken.Claims(&info); errClaims != nil {
		return nil, fmt.Errorf("security: parse google claims: %w", errClaims)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	return &info, nil
}
