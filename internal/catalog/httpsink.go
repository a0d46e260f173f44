package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPSink posts entity upserts to the catalog API.
type HTTPSink struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewHTTPSink(apiURL string, apiKey string) *HTTPSink {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	return &HTTPSink{
		apiURL: apiURL,
		apiKey: apiKey,
		client: retryClient.StandardClient(),
	}
}

func (s *HTTPSink) Create(ctx context.Context, input *EntityInput) error {
	body, err := json.Marshal(input)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/entities", s.apiURL)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}

	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf(
			"entity upsert failed: %s: %s",
			resp.Status,
			string(msg),
		)
	}

	return nil
}
