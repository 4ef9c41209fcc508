package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseinfotech/send2crm/internal/assets"
	configstore "github.com/fuseinfotech/send2crm/internal/config/store"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/options"
	"github.com/fuseinfotech/send2crm/internal/reconcile"
	"github.com/fuseinfotech/send2crm/internal/releases"
	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/snippet"
	"github.com/fuseinfotech/send2crm/internal/testutil"
)

const script = "window.send2crm = window.send2crm || {}; window.send2crm.init = function (d, k) {};\n"

type harness struct {
	admin    *Server
	http     *httptest.Server
	upstream *testutil.ReleaseServer
	store    *configstore.Store
	ctrl     *settings.Controller
	cache    *assets.Cache
	client   *http.Client
}

func newHarness(t *testing.T, auth Authorizer) *harness {
	t.Helper()

	upstream := testutil.NewReleaseServer(t, "FuseInfoTech", "send2crmjs")
	upstream.AddRelease("v0.9.0", script)
	upstream.AddRelease("v1.20.0", script)
	upstream.AddRelease("v1.21.0", script)

	st := testutil.OpenStore(t)
	reg := settings.NewRegistry("send2crm")
	require.NoError(t, snippet.RegisterSettings(reg))
	require.NoError(t, reconcile.RegisterSettings(reg))

	opts := options.New(st, zerolog.Nop())
	ctrl := settings.NewController(reg, opts, "Send2CRM", zerolog.Nop())
	ctrl.InitializeSettings()

	cache := assets.NewCache(assets.Config{
		Dir:           filepath.Join(t.TempDir(), "assets"),
		PublicBaseURL: "http://127.0.0.1:8787/assets",
		RawBaseURL:    upstream.RawBase(),
		CDNBaseURL:    upstream.CDNBase(),
		Owner:         upstream.Owner,
		Repo:          upstream.Repo,
		AssetFile:     "send2crm.min.js",
		HashFile:      "send2crm.sri",
		TagPrefix:     "v",
	}, zerolog.Nop(), nil)
	reconcile.New(cache, "send2crm", zerolog.Nop(), nil).Attach(opts, reg)

	resolver := releases.NewResolver(releases.Config{
		APIBaseURL:     upstream.APIBase(),
		Owner:          upstream.Owner,
		Repo:           upstream.Repo,
		MinimumVersion: "1.0.0",
		Timeout:        5 * time.Second,
	}, zerolog.Nop(), nil)

	promReg := prometheus.NewRegistry()
	s := New(Deps{
		Controller: ctrl,
		Releases:   resolver,
		Assets:     cache,
		Snippet:    snippet.NewRenderer(ctrl, cache, "send2crm", "1.0.0", zerolog.Nop()),
		Authorizer: auth,
		Collector:  observability.NewPrometheusCollector(promReg),
		Gatherer:   promReg,
		Logger:     zerolog.Nop(),
	})
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	return &harness{
		admin:    s,
		http:     ts,
		upstream: upstream,
		store:    st,
		ctrl:     ctrl,
		cache:    cache,
		client: &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func allowAll() Authorizer {
	return AuthorizerFunc(func(*http.Request) bool { return true })
}

func denyAll() Authorizer {
	return AuthorizerFunc(func(*http.Request) bool { return false })
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := h.client.PostForm(h.http.URL+path, form)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Get(h.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAjaxRejectsUnauthorized(t *testing.T) {
	t.Parallel()

	h := newHarness(t, denyAll())
	for _, path := range []string{"/ajax/fetch-releases", "/ajax/download-release"} {
		resp := h.postForm(t, path, url.Values{"nonce": {h.admin.Nonces().Issue(ActionAjax)}})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)

		var body failure
		decode(t, resp, &body)
		assert.Equal(t, failure{Success: false, Message: "Insufficient permissions"}, body)
	}
	assert.Zero(t, h.upstream.Hits("index", ""), "no upstream call for a refused request")
}

func TestAjaxRejectsBadNonce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/ajax/fetch-releases", url.Values{"nonce": {h.admin.Nonces().Issue(ActionSettings)}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var body failure
	decode(t, resp, &body)
	assert.False(t, body.Success)
}

func TestFetchReleases(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/ajax/fetch-releases", url.Values{"nonce": {h.admin.Nonces().Issue(ActionAjax)}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res releases.Result
	decode(t, resp, &res)
	require.True(t, res.Success)
	var tags []string
	for _, r := range res.Releases {
		tags = append(tags, r.TagName)
	}
	assert.Equal(t, []string{"v1.21.0", "v1.20.0"}, tags, "newest first, below minimum dropped")
}

func TestDownloadRelease(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/ajax/download-release", url.Values{
		"nonce":   {h.admin.Nonces().Issue(ActionAjax)},
		"version": {"v1.21.0"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res downloadResponse
	decode(t, resp, &res)
	require.True(t, res.Success)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "send2crm.min.js", res.Files[0].File)
	assert.True(t, h.cache.Exists("1.21.0"))

	got, body := h.get(t, "/assets/v1.21.0/send2crm.min.js")
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, script, body)

	missing, _ := h.get(t, "/assets/v1.20.0/send2crm.min.js")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	other, _ := h.get(t, "/assets/v1.21.0/other.js")
	assert.Equal(t, http.StatusNotFound, other.StatusCode)
}

func TestDownloadReleaseRejectsBadVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/ajax/download-release", url.Values{
		"nonce":   {h.admin.Nonces().Issue(ActionAjax)},
		"version": {"../../etc/passwd"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSettingsPage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp, body := h.get(t, "/settings")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="send2crm_settings_option[send2crm_api_key]"`)
	assert.Contains(t, body, `value="send2crm_settings_group"`)
	assert.Contains(t, body, versionManagerScript)

	resp, body = h.get(t, "/settings?tab=version_manager")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `id="fetch-releases"`)

	denied := newHarness(t, denyAll())
	resp, body = denied.get(t, "/settings")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotContains(t, body, "<form")
}

func commitForm(h *harness, group, option string, fields map[string]string) url.Values {
	form := url.Values{
		"_nonce":      {h.admin.Nonces().Issue(ActionSettings)},
		"option_page": {group},
	}
	for k, v := range fields {
		form.Set(option+"["+k+"]", v)
	}
	return form
}

func TestCommitSavesAndRedirects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/options", commitForm(h, "send2crm_settings_group", "send2crm_settings_option", map[string]string{
		settings.FieldAPIKey:    "abc-key",
		settings.FieldAPIDomain: "crm.example.com",
	}))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/settings", loc.Path)
	assert.Equal(t, "true", loc.Query().Get("settings-updated"))

	ctx := testContext(t)
	assert.Equal(t, "abc-key", h.ctrl.GetSetting(ctx, settings.FieldAPIKey, "", ""))
	assert.Equal(t, "crm.example.com", h.ctrl.GetSetting(ctx, settings.FieldAPIDomain, "", ""))

	_, page := h.get(t, loc.String())
	assert.Contains(t, page, "Settings saved.")
}

func TestCommitRejectsNumericAndShowsNotice(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	require.NoError(t, h.ctrl.UpdateSetting(testContext(t), settings.FieldAPIKey, "good-key", ""))

	resp := h.postForm(t, "/options", commitForm(h, "send2crm_settings_group", "send2crm_settings_option", map[string]string{
		settings.FieldAPIKey: "12345",
	}))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Empty(t, loc.Query().Get("settings-updated"))
	require.NotEmpty(t, loc.Query().Get("flash"))

	assert.Equal(t, "good-key", h.ctrl.GetSetting(testContext(t), settings.FieldAPIKey, "", ""))

	_, page := h.get(t, loc.String())
	assert.Contains(t, page, "notice-error")
	assert.Contains(t, page, "should not be a number")

	// Flash notices are shown once.
	_, again := h.get(t, loc.String())
	assert.NotContains(t, again, "should not be a number")
}

func TestCommitRequiresNonce(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	form := commitForm(h, "send2crm_settings_group", "send2crm_settings_option", map[string]string{settings.FieldAPIKey: "k"})
	form.Set("_nonce", "forged")
	resp := h.postForm(t, "/options", form)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	form = commitForm(h, "send2crm_nope_group", "x", nil)
	resp = h.postForm(t, "/options", form)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCommitRejectsOversizedForm(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/options", commitForm(h, "send2crm_settings_group", "send2crm_settings_option", map[string]string{
		settings.FieldAPIKey: strings.Repeat("k", 4096),
	}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Empty(t, h.ctrl.GetSetting(testContext(t), settings.FieldAPIKey, "", ""))
}

func TestVersionCommitDownloadsAndSnippetFollows(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp := h.postForm(t, "/options", commitForm(h, "send2crm_settings_group", "send2crm_settings_option", map[string]string{
		settings.FieldAPIKey:    "abc-key",
		settings.FieldAPIDomain: "crm.example.com",
	}))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, out := h.get(t, "/snippet")
	assert.Empty(t, out, "no version pinned yet")

	form := commitForm(h, "send2crm_version_manager_group", "send2crm_version_manager_option", map[string]string{
		settings.FieldJSVersion: "1.21.0",
	})
	// The checkbox posts its hidden "0" and, when ticked, "1" after it.
	form["send2crm_version_manager_option["+settings.FieldUseCDN+"]"] = []string{"0"}
	form.Set("tab", settings.TabVersionManager)
	resp = h.postForm(t, "/options", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "tab=version_manager")

	assert.True(t, h.cache.Exists("1.21.0"))
	assert.Equal(t, h.upstream.Hash("v1.21.0"), h.ctrl.GetSetting(testContext(t), settings.FieldJSHash, "", ""))

	_, out = h.get(t, "/snippet")
	assert.Contains(t, out, "send2crm.min.js")
	assert.Contains(t, out, "abc-key")

	form = commitForm(h, "send2crm_version_manager_group", "send2crm_version_manager_option", nil)
	form["send2crm_version_manager_option["+settings.FieldUseCDN+"]"] = []string{"0", "1"}
	resp = h.postForm(t, "/options", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.False(t, h.cache.Exists("1.21.0"), "local copy removed when switching to the CDN")
	assert.Equal(t, "1", h.ctrl.GetSetting(testContext(t), settings.FieldUseCDN, "", ""))
}

func TestMetricsAndStatic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	h.get(t, "/settings")

	resp, body := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "send2crm_http_requests_total")
	assert.Contains(t, body, `route="/settings"`)

	resp, body = h.get(t, versionManagerScript)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "fetch-releases")
}

func TestFormFields(t *testing.T) {
	t.Parallel()

	form := url.Values{
		"opt[a]":      {"1"},
		"opt[b]":      {"0", "1"},
		"opt[]":       {"x"},
		"other[c]":    {"2"},
		"opt":         {"3"},
		"option_page": {"g"},
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "1"}, formFields(form, "opt"))
}

func TestRootRedirects(t *testing.T) {
	t.Parallel()

	h := newHarness(t, allowAll())
	resp, _ := h.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasSuffix(resp.Header.Get("Location"), "/settings"))
}
