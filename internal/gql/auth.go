package gql

import (
	"context"
	"fmt"
)

type currentUser struct {
	IsSignedIn    bool `json:"isSignedIn"`
	IsAmazonPrime bool `json:"isAmazonPrime"`
	IsTwitchPrime bool `json:"isTwitchPrime"`
}

// AuthGate checks that the session can claim at all.
type AuthGate struct {
	client *Client
}

// NewAuthGate returns an AuthGate using c.
func NewAuthGate(c *Client) *AuthGate {
	return &AuthGate{client: c}
}

// Verify refreshes the csrf token and issues one currentUser query. It
// returns an *AuthError for the first unmet prerequisite.
func (g *AuthGate) Verify(ctx context.Context) error {
	if err := g.client.Bootstrap(ctx); err != nil {
		return err
	}

	var data struct {
		CurrentUser *currentUser `json:"currentUser"`
	}
	if err := g.client.Do(ctx, currentUserRequest(), &data); err != nil {
		return fmt.Errorf("gql: verify session: %w", err)
	}
	if data.CurrentUser == nil {
		return &ProtocolError{Op: "currentUser", Msg: "response lacks data.currentUser"}
	}
	return checkUser(*data.CurrentUser)
}

func checkUser(u currentUser) error {
	switch {
	case !u.IsSignedIn:
		return &AuthError{Reason: NotSignedIn}
	case !u.IsAmazonPrime:
		return &AuthError{Reason: NotPrimeMember}
	case !u.IsTwitchPrime:
		return &AuthError{Reason: PrimeAccountNotLinked}
	}
	return nil
}
