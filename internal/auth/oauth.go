package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Scopes requested during Google login.
var Scopes = []string{
	drive.DriveReadonlyScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// OAuth performs the Google authorization code flow.
type OAuth struct {
	config *oauth2.Config
	opts   []option.ClientOption
}

// NewOAuth creates a Google login flow. Extra client options are passed to
// the userinfo service.
func NewOAuth(clientID, clientSecret, redirectURL string, opts ...option.ClientOption) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		opts: opts,
	}
}

// WithEndpoint replaces the Google token endpoints.
func (o *OAuth) WithEndpoint(ep oauth2.Endpoint) *OAuth {
	o.config.Endpoint = ep
	return o
}

// AuthCodeURL returns the consent page URL carrying state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades the authorization code for a token and resolves the
// account email.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, string, error) {
	if code == "" {
		return nil, "", errors.New("missing authorization code")
	}
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(o.config.TokenSource(ctx, token))}, o.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Email == "" {
		return nil, "", ErrInvalidEmail
	}
	return token, info.Email, nil
}

// TokenSource returns a refreshing token source for a session token.
func (o *OAuth) TokenSource(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
	return o.config.TokenSource(ctx, token)
}
