package platform

import (
	"context"
	"fmt"
	"strings"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
)

type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AccountIdentity struct {
	ExternalID      string
	DisplayName     string
	PageID          string
	PageAccessToken string
}

// Credentials are the decrypted tokens handed to Publish. PageID and
// PageAccessToken are set only for page-scoped accounts.
type Credentials struct {
	AccountID       string
	AccessToken     string
	PageID          string
	PageAccessToken string
}

type PostContent struct {
	Caption      string
	Title        string
	Hashtags     string
	CallToAction string
	MediaURLs    []string
}

// Adapter encapsulates one platform's OAuth endpoints, identity model and
// publish call. Implementations must never embed the client secret in the
// authorization URL.
type Adapter interface {
	Platform() models.Platform
	Configured() bool
	AuthorizationURL(state string) (authURL string, codeVerifier string, err error)
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error)
	ResolveIdentity(ctx context.Context, token *TokenResult) (*AccountIdentity, error)
	RefreshToken(ctx context.Context, token string) (*TokenResult, error)
	Publish(ctx context.Context, creds Credentials, content PostContent) (string, error)
}

type Registry map[models.Platform]Adapter

func NewRegistry(cfg config.Config) Registry {
	return Registry{
		models.PlatformFacebook:  NewFacebookAdapter(cfg),
		models.PlatformInstagram: NewInstagramAdapter(cfg),
		models.PlatformLinkedIn:  NewLinkedInAdapter(cfg),
		models.PlatformTwitter:   NewTwitterAdapter(cfg),
	}
}

func (r Registry) Get(p models.Platform) (Adapter, bool) {
	a, ok := r[p]
	return a, ok
}

func callbackURL(base string, p models.Platform) string {
	return fmt.Sprintf("%s/oauth/%s/callback", base, p)
}

// ComposeMessage flattens post content into the plain-text body used by
// platforms without structured fields.
func ComposeMessage(content PostContent) string {
	parts := make([]string, 0, 3)
	if content.Caption != "" {
		parts = append(parts, content.Caption)
	}
	if content.Hashtags != "" {
		parts = append(parts, content.Hashtags)
	}
	if content.CallToAction != "" {
		parts = append(parts, content.CallToAction)
	}
	return strings.Join(parts, "\n\n")
}
