// Package github is a minimal GitHub App client covering the API surface
// the ingestion pipeline needs: installation-scoped listing of repository
// resources, file content fetch and webhook signature verification.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// appJWTTTL stays under GitHub's ten minute maximum.
const appJWTTTL = 9 * time.Minute

// Config carries the GitHub App credentials.
type Config struct {
	APIURL        string
	AppID         string
	PrivateKey    []byte
	WebhookSecret string
	PageSize      int
}

// App authenticates as a GitHub App and hands out installation-scoped
// clients.
type App struct {
	log           *log.Logger
	apiURL        string
	appID         string
	privateKey    *rsa.PrivateKey
	webhookSecret string
	pageSize      int
	httpClient    *http.Client
}

func NewApp(config Config, logger *log.Logger) (*App, error) {
	if config.AppID == "" {
		return nil, fmt.Errorf("missing github app ID")
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid github app private key: %s", err)
	}

	apiURL := config.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &App{
		log:           logger,
		apiURL:        apiURL,
		appID:         config.AppID,
		privateKey:    key,
		webhookSecret: config.WebhookSecret,
		pageSize:      pageSize,
		httpClient:    retryClient.StandardClient(),
	}, nil
}

// appJWT signs a short-lived JWT identifying the app itself, used only to
// mint installation tokens.
func (a *App) appJWT() (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-30 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTTTL)),
	})

	return token.SignedString(a.privateKey)
}

// installationTokenSource mints installation access tokens on demand.
// Wrapped in oauth2.ReuseTokenSource, tokens are cached until they expire.
type installationTokenSource struct {
	app            *App
	installationID string
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	appJWT, err := s.app.appJWT()
	if err != nil {
		return nil, fmt.Errorf("signing app JWT failed: %s", err)
	}

	url := fmt.Sprintf(
		"%s/app/installations/%s/access_tokens",
		s.app.apiURL,
		s.installationID,
	)

	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Accept", "application/vnd.github+json")
	req.Header.Add("Authorization", "Bearer "+appJWT)

	resp, err := s.app.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf(
			"creating installation token failed: %s: %s",
			resp.Status,
			string(msg),
		)
	}

	var tokenResp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: tokenResp.Token,
		TokenType:   "token",
		Expiry:      tokenResp.ExpiresAt,
	}, nil
}

// InstallationClient is an API client scoped to one installation of the
// app. All repository-level calls go through it.
type InstallationClient struct {
	log            *log.Logger
	apiURL         string
	installationID string
	pageSize       int
	httpClient     *http.Client
}

// InstallationClient returns a client authenticating with that
// installation's access token, minted lazily and refreshed on expiry.
func (a *App) InstallationClient(
	ctx context.Context,
	installationID string,
) *InstallationClient {
	source := oauth2.ReuseTokenSource(nil, &installationTokenSource{
		app:            a,
		installationID: installationID,
	})

	return &InstallationClient{
		log:            a.log,
		apiURL:         a.apiURL,
		installationID: installationID,
		pageSize:       a.pageSize,
		httpClient:     oauth2.NewClient(ctx, source),
	}
}
