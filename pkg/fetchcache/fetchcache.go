// Package fetchcache downloads reference data files and keeps a local copy
// so repeated runs do not hit the publishers on every invocation.
package fetchcache

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrNotFound = errors.New("file not found on server")

// Download fetches a URL to a local path via a temp file so a partial
// download never replaces a good copy.
func Download(url, path string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Printf("Error removing temp file %s: %v", tmpName, err)
		}
	}()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// FileName derives the local cache filename for a URL, prefixed to keep
// different consumers of same-named files apart.
func FileName(url, prefix string) string {
	urlParts := strings.Split(url, "/")
	name := urlParts[len(urlParts)-1]
	if prefix != "" {
		name = prefix + "_" + name
	}
	return name
}

// Open returns a reader for the URL, downloading into dir on first use.
func Open(url, dir, prefix string) (io.ReadCloser, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	localPath := filepath.Join(dir, FileName(url, prefix))

	if _, err := os.Stat(localPath); os.IsNotExist(err) {
		log.Printf("[fetch] Downloading %s", url)
		if err := Download(url, localPath); err != nil {
			return nil, err
		}
	} else {
		log.Printf("[fetch] Using cached file: %s", localPath)
	}
	return os.Open(localPath)
}
