package sync

import (
	"strings"

	"github.com/spf13/cast"
)

func repositoryOwnerAndName(
	repository map[string]interface{},
) (string, string, bool) {
	fullName := cast.ToString(repository["full_name"])
	if parts := strings.SplitN(fullName, "/", 2); len(parts) == 2 {
		return parts[0], parts[1], true
	}

	name := cast.ToString(repository["name"])
	if name == "" {
		return "", "", false
	}

	owner, ok := repository["owner"].(map[string]interface{})
	if !ok {
		return "", "", false
	}

	login := cast.ToString(owner["login"])
	if login == "" {
		return "", "", false
	}

	return login, name, true
}
