// Package releasetest provides an in-memory GitHub release API for tests.
package releasetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// An Asset is a file attached to a fake release.
type Asset struct {
	ID   int64
	Name string
	Data []byte
}

// A Release is a fake release. Tarball is served as its source archive.
type Release struct {
	ID      int64
	Tag     string
	Tarball []byte
	Assets  []Asset
}

// A Repo holds releases in any order; Latest names the tag the API reports
// as the latest release (none if empty).
type Repo struct {
	Owner    string
	Name     string
	Latest   string
	Releases []Release
}

// A Server answers the subset of the GitHub REST API used by relget. Every
// API route requires "Authorization: token <Token>". Asset downloads are
// redirected to an unauthenticated path, like GitHub does.
type Server struct {
	*httptest.Server
	Token string

	mu       sync.Mutex
	repos    map[string]*Repo
	requests []string
}

// NewServer starts a server that accepts token. Callers must Close it.
func NewServer(token string) *Server {
	s := &Server{
		Token: token,
		repos: make(map[string]*Repo),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) AddRepo(r Repo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[r.Owner+"/"+r.Name] = &r
}

// Requests returns "METHOD path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Requested reports whether any request path starts with prefix.
func (s *Server) Requested(prefix string) bool {
	for _, r := range s.Requests() {
		if strings.HasPrefix(strings.TrimPrefix(r, "GET "), prefix) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"message":           "Not Found",
		"documentation_url": "https://docs.github.com/rest",
	})
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.EscapedPath())
	s.mu.Unlock()

	var parts []string
	for _, p := range strings.Split(strings.Trim(r.URL.EscapedPath(), "/"), "/") {
		up, err := url.PathUnescape(p)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parts = append(parts, up)
	}

	// asset content behind the redirect, no credentials required
	if len(parts) == 3 && parts[0] == "download" {
		s.serveAssetData(w, parts[1]+"/"+parts[2], r.URL.Query().Get("id"))
		return
	}

	if r.Header.Get("Authorization") != "token "+s.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message":           "Bad credentials",
			"documentation_url": "https://docs.github.com/rest",
		})
		return
	}

	switch {
	case len(parts) == 1 && parts[0] == "user":
		writeJSON(w, http.StatusOK, map[string]string{"login": "octocat"})
	case len(parts) == 1 && parts[0] == "rate_limit":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"resources": map[string]interface{}{
				"core": map[string]int64{"limit": 5000, "remaining": 4999, "reset": 1700000000},
			},
		})
	case len(parts) >= 3 && parts[0] == "repos":
		s.serveRepo(w, r, parts[1], parts[2], parts[3:])
	default:
		notFound(w)
	}
}

func (s *Server) lookup(full string) (Repo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[full]
	if !ok {
		return Repo{}, false
	}
	return *r, true
}

func (s *Server) serveRepo(w http.ResponseWriter, r *http.Request, owner, name string, rest []string) {
	repo, ok := s.lookup(owner + "/" + name)
	if !ok {
		notFound(w)
		return
	}

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"name":      repo.Name,
			"full_name": repo.Owner + "/" + repo.Name,
			"owner":     map[string]string{"login": repo.Owner},
		})
	case len(rest) == 2 && rest[0] == "releases" && rest[1] == "latest":
		s.serveRelease(w, repo, repo.Latest)
	case len(rest) == 3 && rest[0] == "releases" && rest[1] == "tags":
		s.serveRelease(w, repo, rest[2])
	case len(rest) == 3 && rest[0] == "releases" && rest[1] == "assets":
		if r.Header.Get("Accept") != "application/octet-stream" {
			notFound(w)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("%s/download/%s/%s?id=%s", s.URL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), rest[2]), http.StatusFound)
	case len(rest) == 2 && rest[0] == "tarball":
		rel, ok := findRelease(repo, rest[1])
		if !ok {
			notFound(w)
			return
		}
		w.Header().Set("Content-Type", "application/x-gzip")
		w.Write(rel.Tarball)
	default:
		notFound(w)
	}
}

func findRelease(repo Repo, tag string) (Release, bool) {
	if tag == "" {
		return Release{}, false
	}
	for _, rel := range repo.Releases {
		if rel.Tag == tag {
			return rel, true
		}
	}
	return Release{}, false
}

func (s *Server) serveRelease(w http.ResponseWriter, repo Repo, tag string) {
	rel, ok := findRelease(repo, tag)
	if !ok {
		notFound(w)
		return
	}

	base := fmt.Sprintf("%s/repos/%s/%s", s.URL, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))
	assets := make([]map[string]interface{}, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, map[string]interface{}{
			"id":                   a.ID,
			"name":                 a.Name,
			"size":                 len(a.Data),
			"url":                  fmt.Sprintf("%s/releases/assets/%d", base, a.ID),
			"browser_download_url": fmt.Sprintf("%s/download/%s/%s?id=%d", s.URL, repo.Owner, repo.Name, a.ID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          rel.ID,
		"tag_name":    rel.Tag,
		"tarball_url": base + "/tarball/" + url.PathEscape(rel.Tag),
		"assets":      assets,
	})
}

func (s *Server) serveAssetData(w http.ResponseWriter, full, id string) {
	repo, ok := s.lookup(full)
	if !ok {
		notFound(w)
		return
	}
	want, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		notFound(w)
		return
	}
	for _, rel := range repo.Releases {
		for _, a := range rel.Assets {
			if a.ID == want {
				w.Header().Set("Content-Type", "application/octet-stream")
				w.Write(a.Data)
				return
			}
		}
	}
	notFound(w)
}
