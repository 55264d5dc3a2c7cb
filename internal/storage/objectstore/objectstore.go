// Package objectstore implements invoice.ObjectStore on S3-compatible
// storage and on the local filesystem.
package objectstore

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidKey is returned for keys that could escape the store namespace.
var ErrInvalidKey = errors.New("invalid object key")

func checkKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return errors.Wrapf(ErrInvalidKey, "%q", key)
	}
	return nil
}

// publicURL joins a public base URL and an object key.
func publicURL(base, key string) (string, bool) {
	if base == "" {
		return "", false
	}
	return strings.TrimSuffix(base, "/") + "/" + url.PathEscape(key), true
}
