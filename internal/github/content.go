package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrNotFound marks a 404 from the provider, which callers generally treat
// as "no content" rather than a failure.
var ErrNotFound = errors.New("not found")

// GetFileContent fetches and decodes one file from a repository. Ref may be
// empty, in which case the repository's default branch is used by the API.
func (c *InstallationClient) GetFileContent(
	ctx context.Context,
	owner string,
	repo string,
	path string,
	ref string,
) (string, error) {
	requestURL := fmt.Sprintf(
		"%s/repos/%s/%s/contents/%s",
		c.apiURL,
		owner,
		repo,
		strings.TrimPrefix(path, "/"),
	)

	if ref != "" {
		requestURL += "?ref=" + url.QueryEscape(ref)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}

	req.Header.Add("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf(
			"fetch file content failed: %s: %s",
			resp.Status,
			string(msg),
		)
	}

	var content struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return "", err
	}

	if content.Encoding != "base64" {
		return content.Content, nil
	}

	// GitHub wraps base64 content at 60 columns.
	decoded, err := base64.StdEncoding.DecodeString(
		strings.ReplaceAll(content.Content, "\n", ""),
	)
	if err != nil {
		return "", fmt.Errorf("decoding file content failed: %s", err)
	}

	return string(decoded), nil
}
