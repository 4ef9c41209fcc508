package releases

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releasesJSON(tags ...string) string {
	parts := make([]string, 0, len(tags))
	for i, tag := range tags {
		parts = append(parts, fmt.Sprintf(`{"tag_name":%q,"name":"Release %s","published_at":"2025-0%d-01T00:00:00Z","html_url":"https://github.com/FuseInfoTech/send2crmjs/releases/tag/%s","assets":[]}`, tag, tag, i+1, tag))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func newTestResolver(t *testing.T, minimum string, handler http.HandlerFunc) *Resolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewResolver(Config{
		APIBaseURL:     srv.URL,
		Owner:          "FuseInfoTech",
		Repo:           "send2crmjs",
		MinimumVersion: minimum,
		Timeout:        5 * time.Second,
	}, zerolog.Nop(), nil)
}

func tags(rels []Release) []string {
	out := make([]string, 0, len(rels))
	for _, r := range rels {
		out = append(out, r.TagName)
	}
	return out
}

func TestFetchReleasesFiltersByMinimum(t *testing.T) {
	t.Parallel()

	var gotPath, gotAccept, gotUA string
	r := newTestResolver(t, "1.21.0", func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotAccept = req.Header.Get("Accept")
		gotUA = req.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, releasesJSON("v1.20.0", "v1.21.0", "v1.22.0"))
	})

	res := r.FetchReleases(context.Background())
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"v1.21.0", "v1.22.0"}, tags(res.Releases))
	assert.Equal(t, "/repos/FuseInfoTech/send2crmjs/releases", gotPath)
	assert.Equal(t, "application/vnd.github.v3+json", gotAccept)
	assert.NotEmpty(t, gotUA)
	assert.Equal(t, 2025, res.Releases[0].PublishedAt.Year())
}

func TestFetchReleasesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "non-list body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{"message":"API rate limit exceeded"}`)
			},
			wantMsg: "invalid response",
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			wantMsg: "HTTP 502",
		},
		{
			name: "null body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `null`)
			},
			wantMsg: "invalid response",
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `[{"tag_name": "v1.0.0"`)
			},
			wantMsg: "invalid response",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := newTestResolver(t, "1.0.0", tt.handler).FetchReleases(context.Background())
			assert.False(t, res.Success)
			assert.Nil(t, res.Releases)
			assert.Contains(t, res.Message, tt.wantMsg)
		})
	}
}

func TestFetchReleasesTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	r := NewResolver(Config{APIBaseURL: base, Owner: "o", Repo: "r"}, zerolog.Nop(), nil)
	res := r.FetchReleases(context.Background())
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Message)
	assert.Nil(t, res.Releases)
}

func TestFetchReleasesEmptyListIsSuccess(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "1.0.0", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	res := r.FetchReleases(context.Background())
	assert.True(t, res.Success)
	assert.NotNil(t, res.Releases)
	assert.Empty(t, res.Releases)
}

func TestFind(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "1.0.0", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, releasesJSON("v1.20.0", "v1.21.3"))
	})
	ctx := context.Background()

	rel, err := r.Find(ctx, "1.21.3")
	require.NoError(t, err)
	assert.Equal(t, "v1.21.3", rel.TagName)
	assert.Equal(t, "1.21.3", rel.Version())

	rel, err = r.Find(ctx, "v1.20.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.20.0", rel.TagName)

	_, err = r.Find(ctx, "9.9.9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedirectToOtherSchemeIsRefused(t *testing.T) {
	t.Parallel()

	r := newTestResolver(t, "", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "file:///etc/passwd", http.StatusFound)
	})
	res := r.FetchReleases(context.Background())
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "disallowed scheme")
}
