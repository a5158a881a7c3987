// Package riot talks to the Riot Games auth server and ranked API.
package riot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"joinus/partyboard/internal/config"
	"joinus/partyboard/internal/service"
)

const maxBodyBytes = 1 << 20

// RankClient reads ranked data with the server API key.
type RankClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ service.RankClient = (*RankClient)(nil)

// NewRankClient returns a RankClient. A nil httpClient uses a client with a
// 10s timeout.
func NewRankClient(cfg config.RiotConfig, httpClient *http.Client) *RankClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RankClient{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
	}
}

// FetchRank returns the raw ranked payload. 404 maps to service.ErrNoRankData.
func (c *RankClient) FetchRank(ctx context.Context, puuid string) ([]byte, error) {
	endpoint := c.baseURL + "/val/ranked/v1/by-puuid/" + url.PathEscape(puuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("riot ranked api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("riot ranked api: read body: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, service.ErrNoRankData
	default:
		return nil, fmt.Errorf("riot ranked api: status %d: %s", resp.StatusCode, truncate(body))
	}
}

// AuthClient runs the authorization code flow against auth.riotgames.com.
type AuthClient struct {
	oauth   *oauth2.Config
	baseURL string
	http    *http.Client
}

var _ service.RiotAuthClient = (*AuthClient)(nil)

// NewAuthClient returns nil when client credentials are not configured.
func NewAuthClient(cfg config.RiotConfig, httpClient *http.Client) *AuthClient {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	base := strings.TrimRight(cfg.AuthBaseURL, "/")
	return &AuthClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/api/oauth/authorize",
				TokenURL:  base + "/api/oauth/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL: base,
		http:    httpClient,
	}
}

func (c *AuthClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

func (c *AuthClient) Exchange(ctx context.Context, code string) (service.RiotTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return service.RiotTokens{}, err
	}
	return service.RiotTokens{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// FetchPUUID reads the account id from userinfo, preferring "puuid" over "sub".
func (c *AuthClient) FetchPUUID(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("riot userinfo: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("riot userinfo: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("riot userinfo: status %d: %s", resp.StatusCode, truncate(body))
	}

	var info struct {
		PUUID string `json:"puuid"`
		Sub   string `json:"sub"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("riot userinfo: %w", err)
	}
	if info.PUUID != "" {
		return info.PUUID, nil
	}
	if info.Sub != "" {
		return info.Sub, nil
	}
	return "", errors.New("riot userinfo: no account id in response")
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
