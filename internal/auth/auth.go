// Package auth acquires and persists Quora Ads API credentials. The rest
// of the pipeline treats it as opaque: it asks a Provider for a bearer
// token and an account ID once per run.
package auth

import "context"

// Credentials is the read-only credential value handed to fetch calls.
type Credentials struct {
	AccessToken string
	AccountID   string
}

// Provider exchanges stored secrets for fresh run credentials.
type Provider interface {
	Refresh(ctx context.Context) (Credentials, error)
}
