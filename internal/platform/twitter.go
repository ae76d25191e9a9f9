package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
	"golang.org/x/oauth2"
)

const twitterAPIURL = "https://api.twitter.com"

// Twitter uses OAuth 2.0 with PKCE; the code verifier is generated per
// authorization request and persisted alongside the state record.
type twitterAdapter struct {
	conf   *oauth2.Config
	apiURL string
	client *http.Client
}

func NewTwitterAdapter(cfg config.Config) Adapter {
	return &twitterAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.Twitter.ClientID,
			ClientSecret: cfg.Twitter.ClientSecret,
			RedirectURL:  callbackURL(cfg.CallbackBaseURL, models.PlatformTwitter),
			Scopes:       []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://twitter.com/i/oauth2/authorize",
				TokenURL:  "https://api.twitter.com/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		apiURL: twitterAPIURL,
		client: http.DefaultClient,
	}
}

func (a *twitterAdapter) Platform() models.Platform { return models.PlatformTwitter }

func (a *twitterAdapter) Configured() bool {
	return a.conf.ClientID != "" && a.conf.ClientSecret != ""
}

func (a *twitterAdapter) AuthorizationURL(state string) (string, string, error) {
	verifier := oauth2.GenerateVerifier()
	authURL := a.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authURL, verifier, nil
}

func (a *twitterAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	tok, err := a.conf.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, &TokenExchangeError{Platform: a.Platform(), Message: retrieveErrorMessage(err)}
	}
	return oauth2TokenResult(tok), nil
}

func (a *twitterAdapter) ResolveIdentity(ctx context.Context, token *TokenResult) (*AccountIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/2/users/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter profile lookup failed: status %d: %s", resp.StatusCode, body)
	}

	var user transfer.TwitterUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}

	return &AccountIdentity{ExternalID: user.Data.ID, DisplayName: user.Data.Name}, nil
}

func (a *twitterAdapter) RefreshToken(ctx context.Context, token string) (*TokenResult, error) {
	src := a.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token})
	tok, err := src.Token()
	if err != nil {
		return nil, &TokenExchangeError{Platform: a.Platform(), Message: retrieveErrorMessage(err)}
	}
	return oauth2TokenResult(tok), nil
}

func (a *twitterAdapter) Publish(ctx context.Context, creds Credentials, content PostContent) (string, error) {
	payload := map[string]string{"text": ComposeMessage(content)}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/2/tweets", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", &PublishError{Platform: a.Platform(), Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", classifyResponse(a.Platform(), resp.StatusCode, respBody)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", &PublishError{Platform: a.Platform(), Message: "no tweet id returned"}
	}

	return result.Data.ID, nil
}
