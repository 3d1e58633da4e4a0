package reportstore

import (
	"errors"
	"path"
	"strings"
)

// ErrReportNotFound is returned when no report is stored under a key.
var ErrReportNotFound = errors.New("reportstore: not found")

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(path.Clean("/"+key), "/")
	if key == "" || key == "." {
		return "", errors.New("reportstore: empty key")
	}
	return key, nil
}
