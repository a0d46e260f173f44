package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

var linkRE *regexp.Regexp

func init() {
	linkRE = regexp.MustCompile(`<([^>]+)>\s*;\s*rel\s*=\s*"([^"]+)"`)
}

// getPaginatedResults fetches one page into result and returns the URL of
// the next page, or "" on the last one.
func (c *InstallationClient) getPaginatedResults(
	ctx context.Context,
	url string,
	result interface{},
) (string, error) {
	c.log.Debugf("making github request using URL %s...", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
		return "", fmt.Errorf("fetch results failed: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	c.log.Debugf("read %d bytes, unmarshaling JSON...", len(body))

	err = json.Unmarshal(body, result)
	if err != nil {
		return "", err
	}

	linkHeader := resp.Header.Get("Link")
	if linkHeader != "" {
		all := linkRE.FindAllStringSubmatch(linkHeader, -1)
		for _, tag := range all {
			if tag[2] == "next" {
				return tag[1], nil
			}
		}
	}

	return "", nil
}

// listItems pages through an endpoint returning a bare JSON array.
func (c *InstallationClient) listItems(
	ctx context.Context,
	path string,
	query string,
) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	url := fmt.Sprintf(
		"%s%s?per_page=%d%s",
		c.apiURL,
		path,
		c.pageSize,
		query,
	)

	for done := false; !done; {
		var page []map[string]interface{}

		nextUrl, err := c.getPaginatedResults(ctx, url, &page)
		if err != nil {
			return nil, err
		}

		results = append(results, page...)

		if nextUrl == "" {
			done = true
			continue
		}

		url = nextUrl
	}

	return results, nil
}

// listWrappedItems pages through an endpoint that wraps its items in an
// envelope object under the given key, e.g. {"repositories": [...]}.
func (c *InstallationClient) listWrappedItems(
	ctx context.Context,
	path string,
	key string,
) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	url := fmt.Sprintf("%s%s?per_page=%d", c.apiURL, path, c.pageSize)

	for done := false; !done; {
		page := map[string]json.RawMessage{}

		nextUrl, err := c.getPaginatedResults(ctx, url, &page)
		if err != nil {
			return nil, err
		}

		raw, ok := page[key]
		if !ok {
			return nil, fmt.Errorf("response missing %q list", key)
		}

		var items []map[string]interface{}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}

		results = append(results, items...)

		if nextUrl == "" {
			done = true
			continue
		}

		url = nextUrl
	}

	return results, nil
}

// ListRepositories returns every repository the installation grants access
// to.
func (c *InstallationClient) ListRepositories(
	ctx context.Context,
) ([]map[string]interface{}, error) {
	return c.listWrappedItems(ctx, "/installation/repositories", "repositories")
}

// ListIssues returns a repository's issues in every state. GitHub reports
// pull requests through the issues endpoint too; those are filtered out
// here so issue rules never see them.
func (c *InstallationClient) ListIssues(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	items, err := c.listItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/issues", owner, repo),
		"&state=all",
	)
	if err != nil {
		return nil, err
	}

	issues := []map[string]interface{}{}

	for _, item := range items {
		if _, isPull := item["pull_request"]; isPull {
			continue
		}
		issues = append(issues, item)
	}

	return issues, nil
}

func (c *InstallationClient) ListPullRequests(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/pulls", owner, repo),
		"&state=all",
	)
}

func (c *InstallationClient) ListWorkflowRuns(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listWrappedItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/actions/runs", owner, repo),
		"workflow_runs",
	)
}

func (c *InstallationClient) ListBranches(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(ctx, fmt.Sprintf("/repos/%s/%s/branches", owner, repo), "")
}

func (c *InstallationClient) ListTags(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(ctx, fmt.Sprintf("/repos/%s/%s/tags", owner, repo), "")
}

func (c *InstallationClient) ListReleases(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(ctx, fmt.Sprintf("/repos/%s/%s/releases", owner, repo), "")
}

func (c *InstallationClient) ListDeployments(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/deployments", owner, repo),
		"",
	)
}

func (c *InstallationClient) ListEnvironments(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listWrappedItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/environments", owner, repo),
		"environments",
	)
}

func (c *InstallationClient) ListDependabotAlerts(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/dependabot/alerts", owner, repo),
		"",
	)
}

func (c *InstallationClient) ListCodeScanningAlerts(
	ctx context.Context,
	owner string,
	repo string,
) ([]map[string]interface{}, error) {
	return c.listItems(
		ctx,
		fmt.Sprintf("/repos/%s/%s/code-scanning/alerts", owner, repo),
		"",
	)
}
