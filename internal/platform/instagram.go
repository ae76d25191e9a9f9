package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
)

const instagramScopes = "instagram_basic,instagram_content_publish"

// Instagram connects through the Facebook dialog with Instagram scopes and
// publishes through the Graph media container flow.
type instagramAdapter struct {
	app         config.OAuthApp
	redirectURI string
	dialogURL   string
	graphURL    string
	client      *http.Client
}

func NewInstagramAdapter(cfg config.Config) Adapter {
	return &instagramAdapter{
		app:         cfg.Facebook.OAuthApp,
		redirectURI: callbackURL(cfg.CallbackBaseURL, models.PlatformInstagram),
		dialogURL:   facebookDialogURL,
		graphURL:    facebookGraphURL,
		client:      http.DefaultClient,
	}
}

func (a *instagramAdapter) Platform() models.Platform { return models.PlatformInstagram }

func (a *instagramAdapter) Configured() bool {
	return a.app.ClientID != "" && a.app.ClientSecret != ""
}

func (a *instagramAdapter) AuthorizationURL(state string) (string, string, error) {
	params := url.Values{}
	params.Add("client_id", a.app.ClientID)
	params.Add("redirect_uri", a.redirectURI)
	params.Add("scope", instagramScopes)
	params.Add("state", state)
	params.Add("response_type", "code")

	return fmt.Sprintf("%s?%s", a.dialogURL, params.Encode()), "", nil
}

func (a *instagramAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	data := url.Values{}
	data.Set("client_id", a.app.ClientID)
	data.Set("client_secret", a.app.ClientSecret)
	data.Set("redirect_uri", a.redirectURI)
	data.Set("code", code)

	return graphTokenRequest(ctx, a.client, a.graphURL+"/oauth/access_token", data, a.Platform())
}

// ResolveIdentity returns the single business identity. There is no
// organization-page selection step for Instagram.
func (a *instagramAdapter) ResolveIdentity(ctx context.Context, token *TokenResult) (*AccountIdentity, error) {
	var user transfer.FacebookUser
	userURL := fmt.Sprintf("%s/me?fields=id,name&access_token=%s", a.graphURL, url.QueryEscape(token.AccessToken))
	if err := graphGet(ctx, a.client, userURL, a.Platform(), &user); err != nil {
		return nil, err
	}

	return &AccountIdentity{ExternalID: user.ID, DisplayName: user.Name}, nil
}

func (a *instagramAdapter) RefreshToken(ctx context.Context, token string) (*TokenResult, error) {
	data := url.Values{}
	data.Set("grant_type", "fb_exchange_token")
	data.Set("client_id", a.app.ClientID)
	data.Set("client_secret", a.app.ClientSecret)
	data.Set("fb_exchange_token", token)

	return graphTokenRequest(ctx, a.client, a.graphURL+"/oauth/access_token", data, a.Platform())
}

// Publish creates a media container and then publishes it. Instagram has
// no text-only posts, so content without media fails permanently.
func (a *instagramAdapter) Publish(ctx context.Context, creds Credentials, content PostContent) (string, error) {
	if len(content.MediaURLs) == 0 {
		return "", notImplemented(a.Platform(), "publishing without media")
	}

	containerID, err := a.createContainer(ctx, creds, content)
	if err != nil {
		return "", err
	}

	publishURL := fmt.Sprintf("%s/%s/media_publish", a.graphURL, creds.AccountID)
	payload := map[string]string{
		"creation_id":  containerID,
		"access_token": creds.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := a.postJSON(ctx, publishURL, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PublishError{Platform: a.Platform(), Message: "no media id returned"}
	}

	return result.ID, nil
}

func (a *instagramAdapter) createContainer(ctx context.Context, creds Credentials, content PostContent) (string, error) {
	containerURL := fmt.Sprintf("%s/%s/media", a.graphURL, creds.AccountID)
	payload := map[string]interface{}{
		"image_url":    content.MediaURLs[0],
		"caption":      ComposeMessage(content),
		"access_token": creds.AccessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := a.postJSON(ctx, containerURL, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &PublishError{Platform: a.Platform(), Message: "no container id returned"}
	}

	return result.ID, nil
}

func (a *instagramAdapter) postJSON(ctx context.Context, reqURL string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return &PublishError{Platform: a.Platform(), Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyResponse(a.Platform(), resp.StatusCode, respBody)
	}

	return json.Unmarshal(respBody, out)
}
