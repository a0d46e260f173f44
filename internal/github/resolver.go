package github

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cast"
	log "github.com/sirupsen/logrus"
)

// ContentResolver fills file-content mapping properties from repository
// files. Every failure path maps to nil: file content is optional
// enrichment and must never invalidate an entity.
type ContentResolver struct {
	log *log.Logger
	app *App
}

func NewContentResolver(app *App, logger *log.Logger) *ContentResolver {
	return &ContentResolver{log: logger, app: app}
}

func (r *ContentResolver) Resolve(
	ctx context.Context,
	path string,
	payload interface{},
	installationID string,
) interface{} {
	if installationID == "" {
		r.log.Warnf(
			"cannot resolve file content for %s: no installation ID in context",
			path,
		)
		return nil
	}

	owner, repo, ref, ok := repositoryIdentity(payload)
	if !ok {
		r.log.Warnf(
			"cannot resolve file content for %s: no repository identity in payload",
			path,
		)
		return nil
	}

	client := r.app.InstallationClient(ctx, installationID)

	content, err := client.GetFileContent(ctx, owner, repo, path, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.log.Debugf("file %s not found in %s/%s", path, owner, repo)
		} else {
			r.log.Warnf(
				"fetching file %s from %s/%s failed: %s",
				path,
				owner,
				repo,
				err,
			)
		}
		return nil
	}

	return content
}

// repositoryIdentity digs the owning repository out of a payload: an
// embedded repository object first, then a PR-style head.repo, then the
// payload root itself.
func repositoryIdentity(payload interface{}) (string, string, string, bool) {
	root, ok := payload.(map[string]interface{})
	if !ok {
		return "", "", "", false
	}

	candidates := []map[string]interface{}{}

	if m, ok := root["repository"].(map[string]interface{}); ok {
		candidates = append(candidates, m)
	}

	if head, ok := root["head"].(map[string]interface{}); ok {
		if m, ok := head["repo"].(map[string]interface{}); ok {
			candidates = append(candidates, m)
		}
	}

	candidates = append(candidates, root)

	for _, m := range candidates {
		owner, repo, ok := ownerAndName(m)
		if !ok {
			continue
		}

		ref := cast.ToString(m["default_branch"])
		if ref == "" {
			ref = strings.TrimPrefix(cast.ToString(root["ref"]), "refs/heads/")
		}

		return owner, repo, ref, true
	}

	return "", "", "", false
}

func ownerAndName(m map[string]interface{}) (string, string, bool) {
	fullName := cast.ToString(m["full_name"])
	if parts := strings.SplitN(fullName, "/", 2); len(parts) == 2 {
		return parts[0], parts[1], true
	}

	name := cast.ToString(m["name"])
	if name == "" {
		return "", "", false
	}

	if owner, ok := m["owner"].(map[string]interface{}); ok {
		if login := cast.ToString(owner["login"]); login != "" {
			return login, name, true
		}
	}

	return "", "", false
}
