// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/teamarr/teamarr/internal/log"
)

// fileServer serves the generated guide documents. Only .xml files
// inside the data directory are reachable; traversal sequences, symlink
// escapes, and directory listings are rejected before the filesystem is
// touched.
func (s *Server) fileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "api")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			s.deny(w, logger, r.URL.Path, "method_not_allowed", http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || strings.HasSuffix(name, "/") {
			s.deny(w, logger, r.URL.Path, "directory_listing", http.StatusForbidden)
			return
		}
		if hasTraversal(name) {
			s.deny(w, logger, r.URL.Path, "path_escape", http.StatusForbidden)
			return
		}
		if !strings.EqualFold(filepath.Ext(name), ".xml") {
			s.deny(w, logger, r.URL.Path, "file_type", http.StatusForbidden)
			return
		}

		path, status, reason := s.resolve(name)
		if status != 0 {
			s.deny(w, logger, r.URL.Path, reason, status)
			return
		}
		s.serveGuide(w, r, logger, path)
	})
}

func (s *Server) deny(w http.ResponseWriter, logger zerolog.Logger, path, reason string, status int) {
	logger.Warn().
		Str("event", "file_req.denied").
		Str("path", path).
		Str("reason", reason).
		Msg("file request denied")
	recordFileDenied(reason)
	http.Error(w, http.StatusText(status), status)
}

// resolve maps a request name onto a real path inside the data
// directory. A non-zero status means the request must be denied.
func (s *Server) resolve(name string) (path string, status int, reason string) {
	base, err := filepath.Abs(s.cfg.DataDir)
	if err != nil {
		return "", http.StatusInternalServerError, "internal_error"
	}
	full := filepath.Join(base, filepath.FromSlash(name))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", http.StatusNotFound, "not_found"
		}
		return "", http.StatusInternalServerError, "internal_error"
	}
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return "", http.StatusInternalServerError, "internal_error"
	}

	// Rel-based containment catches symlinks pointing out of the data
	// directory, not just lexical escapes.
	rel, err := filepath.Rel(realBase, resolved)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return "", http.StatusForbidden, "path_escape"
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", http.StatusInternalServerError, "internal_error"
	}
	if info.IsDir() {
		return "", http.StatusForbidden, "directory_listing"
	}
	return resolved, 0, ""
}

func (s *Server) serveGuide(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, path string) {
	f, err := os.Open(path) // #nosec G304 -- resolve confined path to the data directory
	if err != nil {
		s.deny(w, logger, r.URL.Path, "internal_error", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("file close failed")
		}
	}()
	info, err := f.Stat()
	if err != nil {
		s.deny(w, logger, r.URL.Path, "internal_error", http.StatusInternalServerError)
		return
	}

	// Weak validator: guides are regenerated in place each cycle, so
	// modtime+size is the right granularity.
	etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.Header.Get("If-None-Match") == etag {
		recordFileCacheHit()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	recordFileAllowed()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// hasTraversal rejects parent-directory sequences through multiple
// decode passes, Unicode normalization, and NUL bytes, so encoded and
// overlong variants cannot slip past the lexical check.
func hasTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d, err := url.QueryUnescape(decoded); err == nil {
			decoded = d
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	for _, pat := range []string{"..", "%00", "%c0%ae", "%e0%80%ae"} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}
	return strings.Contains(strings.ToLower(norm.NFC.String(decoded)), "..")
}
