package testutil

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// ReleaseServer fakes the release index, the raw file host and the CDN for
// one repository.
type ReleaseServer struct {
	*httptest.Server

	Owner string
	Repo  string

	mu       sync.Mutex
	order    []string
	scripts  map[string]string
	hashes   map[string]string
	failHash map[string]bool
	failRaw  map[string]bool
	hits     map[string]int
}

// NewReleaseServer starts a fake for owner/repo, closed when the test ends.
func NewReleaseServer(t testing.TB, owner, repo string) *ReleaseServer {
	t.Helper()
	s := &ReleaseServer{
		Owner:    owner,
		Repo:     repo,
		scripts:  make(map[string]string),
		hashes:   make(map[string]string),
		failHash: make(map[string]bool),
		failRaw:  make(map[string]bool),
		hits:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/api/repos/{owner}/{repo}/releases", s.serveIndex)
	r.Get("/raw/{owner}/{repo}/{tag}/{file}", s.serveRaw)
	r.Get("/cdn/{owner}/{repoAtTag}/{file}", s.serveCDN)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// APIBase, RawBase and CDNBase are the base URLs to configure clients with.
func (s *ReleaseServer) APIBase() string { return s.URL + "/api" }
func (s *ReleaseServer) RawBase() string { return s.URL + "/raw" }
func (s *ReleaseServer) CDNBase() string { return s.URL + "/cdn" }

// AddRelease publishes tag with script as its asset and a matching sha384
// hash file. Releases are listed newest first.
func (s *ReleaseServer) AddRelease(tag, script string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scripts[tag]; !ok {
		s.order = append([]string{tag}, s.order...)
	}
	s.scripts[tag] = script
	s.hashes[tag] = SRI384(script)
}

// SetHashFile overrides the hash file content served for tag.
func (s *ReleaseServer) SetHashFile(tag, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[tag] = content
}

// FailHash makes the hash file of tag return 404.
func (s *ReleaseServer) FailHash(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHash[tag] = true
}

// FailRaw makes the raw asset of tag return 500.
func (s *ReleaseServer) FailRaw(tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRaw[tag] = true
}

// Hash returns the hash file content served for tag.
func (s *ReleaseServer) Hash(tag string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hashes[tag]
}

// Hits returns how many requests reached kind ("index", "raw", "cdn") for tag.
func (s *ReleaseServer) Hits(kind, tag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[kind+":"+tag]
}

func (s *ReleaseServer) hit(kind, tag string) {
	s.mu.Lock()
	s.hits[kind+":"+tag]++
	s.mu.Unlock()
}

func (s *ReleaseServer) sameRepo(owner, repo string) bool {
	return owner == s.Owner && repo == s.Repo
}

func (s *ReleaseServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	s.hit("index", "")
	if !s.sameRepo(chi.URLParam(r, "owner"), chi.URLParam(r, "repo")) {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	type release struct {
		TagName     string    `json:"tag_name"`
		Name        string    `json:"name"`
		PublishedAt time.Time `json:"published_at"`
		HTMLURL     string    `json:"html_url"`
	}
	out := make([]release, 0, len(s.order))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tag := range s.order {
		out = append(out, release{
			TagName:     tag,
			Name:        tag,
			PublishedAt: base.AddDate(0, 0, len(s.order)-i),
			HTMLURL:     "https://github.com/" + s.Owner + "/" + s.Repo + "/releases/tag/" + tag,
		})
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *ReleaseServer) serveRaw(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	s.hit("raw", tag)
	s.mu.Lock()
	script, ok := s.scripts[tag]
	fail := s.failRaw[tag]
	s.mu.Unlock()
	if fail {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	if !ok || !s.sameRepo(chi.URLParam(r, "owner"), chi.URLParam(r, "repo")) {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte(script))
}

func (s *ReleaseServer) serveCDN(w http.ResponseWriter, r *http.Request) {
	repo, tag, _ := strings.Cut(chi.URLParam(r, "repoAtTag"), "@")
	file := chi.URLParam(r, "file")
	s.hit("cdn", tag)
	if !s.sameRepo(chi.URLParam(r, "owner"), repo) {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	script, ok := s.scripts[tag]
	hash := s.hashes[tag]
	fail := s.failHash[tag]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if strings.HasSuffix(file, ".js") {
		w.Write([]byte(script))
		return
	}
	if fail {
		http.NotFound(w, r)
		return
	}
	if hash == "" {
		return
	}
	w.Write([]byte(hash + "  " + file + "\n"))
}

// SRI384 returns the sha384 Subresource Integrity string of content.
func SRI384(content string) string {
	sum := sha512.Sum384([]byte(content))
	return "sha384-" + base64.StdEncoding.EncodeToString(sum[:])
}
