package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

const (
	facebookDialogURL = "https://www.facebook.com/v18.0/dialog/oauth"
	facebookGraphURL  = "https://graph.facebook.com/v18.0"
	facebookScopes    = "pages_manage_posts,pages_read_engagement,pages_manage_metadata,pages_show_list"
)

type facebookAdapter struct {
	app         config.FacebookApp
	redirectURI string
	dialogURL   string
	graphURL    string
	client      *http.Client
}

func NewFacebookAdapter(cfg config.Config) Adapter {
	return &facebookAdapter{
		app:         cfg.Facebook,
		redirectURI: callbackURL(cfg.CallbackBaseURL, models.PlatformFacebook),
		dialogURL:   facebookDialogURL,
		graphURL:    facebookGraphURL,
		client:      http.DefaultClient,
	}
}

func (a *facebookAdapter) Platform() models.Platform { return models.PlatformFacebook }

func (a *facebookAdapter) Configured() bool {
	return a.app.ClientID != "" && a.app.ClientSecret != ""
}

func (a *facebookAdapter) AuthorizationURL(state string) (string, string, error) {
	params := url.Values{}
	params.Add("client_id", a.app.ClientID)
	params.Add("redirect_uri", a.redirectURI)
	params.Add("scope", facebookScopes)
	params.Add("state", state)
	params.Add("response_type", "code")

	return fmt.Sprintf("%s?%s", a.dialogURL, params.Encode()), "", nil
}

func (a *facebookAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	data := url.Values{}
	data.Set("client_id", a.app.ClientID)
	data.Set("client_secret", a.app.ClientSecret)
	data.Set("redirect_uri", a.redirectURI)
	data.Set("code", code)

	return graphTokenRequest(ctx, a.client, a.graphURL+"/oauth/access_token", data, a.Platform())
}

// ResolveIdentity prefers a managed page over the personal profile because
// page posting requires a page-scoped token. Zero managed pages falls back
// to the personal profile.
func (a *facebookAdapter) ResolveIdentity(ctx context.Context, token *TokenResult) (*AccountIdentity, error) {
	var user transfer.FacebookUser
	userURL := fmt.Sprintf("%s/me?fields=id,name&access_token=%s", a.graphURL, url.QueryEscape(token.AccessToken))
	if err := graphGet(ctx, a.client, userURL, a.Platform(), &user); err != nil {
		return nil, err
	}

	var pages transfer.FacebookPageList
	pagesURL := fmt.Sprintf("%s/me/accounts?access_token=%s", a.graphURL, url.QueryEscape(token.AccessToken))
	if err := graphGet(ctx, a.client, pagesURL, a.Platform(), &pages); err != nil {
		return nil, err
	}

	if len(pages.Data) == 0 {
		return &AccountIdentity{ExternalID: user.ID, DisplayName: user.Name}, nil
	}

	page := pages.Data[0]
	if a.app.DefaultPageID != "" {
		for _, p := range pages.Data {
			if p.ID == a.app.DefaultPageID {
				page = p
				break
			}
		}
	}

	return &AccountIdentity{
		ExternalID:      page.ID,
		DisplayName:     page.Name,
		PageID:          page.ID,
		PageAccessToken: page.AccessToken,
	}, nil
}

// RefreshToken exchanges a long-lived user token for a fresh one.
func (a *facebookAdapter) RefreshToken(ctx context.Context, token string) (*TokenResult, error) {
	data := url.Values{}
	data.Set("grant_type", "fb_exchange_token")
	data.Set("client_id", a.app.ClientID)
	data.Set("client_secret", a.app.ClientSecret)
	data.Set("fb_exchange_token", token)

	return graphTokenRequest(ctx, a.client, a.graphURL+"/oauth/access_token", data, a.Platform())
}

func (a *facebookAdapter) Publish(ctx context.Context, creds Credentials, content PostContent) (string, error) {
	if creds.PageID == "" || creds.PageAccessToken == "" {
		return "", notImplemented(a.Platform(), "publishing to a personal profile")
	}

	data := url.Values{}
	data.Set("message", ComposeMessage(content))
	data.Set("access_token", creds.PageAccessToken)
	if len(content.MediaURLs) > 0 {
		data.Set("link", content.MediaURLs[0])
	}

	feedURL := fmt.Sprintf("%s/%s/feed", a.graphURL, creds.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, feedURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", &PublishError{Platform: a.Platform(), Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(a.Platform(), resp.StatusCode, body)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", &PublishError{Platform: a.Platform(), Message: "no post id returned"}
	}

	return result.ID, nil
}

func graphTokenRequest(ctx context.Context, client *http.Client, endpoint string, data url.Values, p models.Platform) (*TokenResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to reach token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiErr transfer.FacebookErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return nil, &TokenExchangeError{Platform: p, Message: apiErr.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Platform: p, Message: string(body)}
	}

	var token transfer.FacebookToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &TokenResult{AccessToken: token.AccessToken, ExpiresIn: token.ExpiresIn}, nil
}

func graphGet(ctx context.Context, client *http.Client, reqURL string, p models.Platform, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.FacebookErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s api error: %s", p, apiErr.Error.Message)
		}
		return fmt.Errorf("%s api error: status %d: %s", p, resp.StatusCode, body)
	}

	return json.Unmarshal(body, out)
}
