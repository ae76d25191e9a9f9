package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
	"golang.org/x/oauth2"
)

const linkedinAPIURL = "https://api.linkedin.com"

type linkedinAdapter struct {
	conf   *oauth2.Config
	apiURL string
	client *http.Client
}

func NewLinkedInAdapter(cfg config.Config) Adapter {
	return &linkedinAdapter{
		conf: &oauth2.Config{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURL:  callbackURL(cfg.CallbackBaseURL, models.PlatformLinkedIn),
			Scopes:       []string{"w_member_social", "r_liteprofile", "r_emailaddress"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
				TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiURL: linkedinAPIURL,
		client: http.DefaultClient,
	}
}

func (a *linkedinAdapter) Platform() models.Platform { return models.PlatformLinkedIn }

func (a *linkedinAdapter) Configured() bool {
	return a.conf.ClientID != "" && a.conf.ClientSecret != ""
}

func (a *linkedinAdapter) AuthorizationURL(state string) (string, string, error) {
	return a.conf.AuthCodeURL(state), "", nil
}

func (a *linkedinAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResult, error) {
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return nil, &TokenExchangeError{Platform: a.Platform(), Message: retrieveErrorMessage(err)}
	}
	return oauth2TokenResult(tok), nil
}

// ResolveIdentity resolves the member profile. The company-page scope is
// requested by the dialog but identity resolution stays on /v2/me.
func (a *linkedinAdapter) ResolveIdentity(ctx context.Context, token *TokenResult) (*AccountIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+"/v2/me", nil)
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
		return nil, fmt.Errorf("linkedin profile lookup failed: status %d: %s", resp.StatusCode, body)
	}

	var profile transfer.LinkedInProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, err
	}

	return &AccountIdentity{
		ExternalID:  profile.ID,
		DisplayName: fmt.Sprintf("%s %s", profile.LocalizedFirstName, profile.LocalizedLastName),
	}, nil
}

func (a *linkedinAdapter) RefreshToken(ctx context.Context, token string) (*TokenResult, error) {
	src := a.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token})
	tok, err := src.Token()
	if err != nil {
		return nil, &TokenExchangeError{Platform: a.Platform(), Message: retrieveErrorMessage(err)}
	}
	return oauth2TokenResult(tok), nil
}

func (a *linkedinAdapter) Publish(ctx context.Context, creds Credentials, content PostContent) (string, error) {
	payload := map[string]interface{}{
		"author":         "urn:li:person:" + creds.AccountID,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary": map[string]string{
					"text": ComposeMessage(content),
				},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.apiURL+"/v2/ugcPosts", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

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
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		result.ID = resp.Header.Get("X-Restli-Id")
	}
	if result.ID == "" {
		return "", &PublishError{Platform: a.Platform(), Message: "no post id returned"}
	}

	return result.ID, nil
}

func oauth2TokenResult(tok *oauth2.Token) *TokenResult {
	result := &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		result.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return result
}

// retrieveErrorMessage surfaces the platform's rejection body verbatim.
func retrieveErrorMessage(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && len(re.Body) > 0 {
		return string(re.Body)
	}
	return err.Error()
}
