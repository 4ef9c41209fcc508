package admin

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fuseinfotech/send2crm/internal/assets"
	"github.com/fuseinfotech/send2crm/internal/constants"
	"github.com/fuseinfotech/send2crm/internal/notice"
	"github.com/fuseinfotech/send2crm/internal/sanitize"
	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/version"
)

const versionManagerScript = "/static/version-manager.js"

// downloadResponse is the body of a successful download-release call.
type downloadResponse struct {
	Success bool          `json:"success"`
	Files   []assets.File `json:"files"`
}

// authorizePage answers unauthorized page requests and reports whether the
// handler may continue.
func (s *Server) authorizePage(w http.ResponseWriter, r *http.Request) bool {
	if s.authorizer.Authorize(r) {
		return true
	}
	if c, ok := s.authorizer.(challenger); ok {
		c.Challenge(w)
		http.Error(w, constants.PermissionDenied, http.StatusUnauthorized)
		return false
	}
	http.Error(w, constants.PermissionDenied, http.StatusForbidden)
	return false
}

// authorizeAjax answers unauthorized or unsigned AJAX requests with the JSON
// failure envelope.
func (s *Server) authorizeAjax(w http.ResponseWriter, r *http.Request) bool {
	if !s.authorizer.Authorize(r) {
		s.writeFailure(w, http.StatusForbidden, constants.PermissionDenied)
		return false
	}
	if !s.nonces.Verify(ActionAjax, r.FormValue("nonce")) {
		s.writeFailure(w, http.StatusForbidden, "Invalid or expired nonce")
		return false
	}
	return true
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	if !s.authorizePage(w, r) {
		return
	}
	q := r.URL.Query()
	req := settings.PageRequest{
		Tab:             q.Get("tab"),
		Authorized:      true,
		SettingsUpdated: q.Get("settings-updated") == "true",
		Nonce:           s.nonces.Issue(ActionSettings),
		AjaxNonce:       s.nonces.Issue(ActionAjax),
		Action:          "/options",
		AjaxBase:        "/ajax",
		Scripts:         []string{versionManagerScript},
		Notices:         s.flashes.Take(q.Get("flash")),
	}

	var buf bytes.Buffer
	if err := s.ctrl.RenderSettingsPage(r.Context(), &buf, req); err != nil {
		s.logger.Error().Err(err).Msg("failed to render settings page")
		http.Error(w, "failed to render settings page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// handleCommit applies the submitted form for every group listed in
// option_page and redirects back to the page.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if !s.authorizePage(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return
	}
	if !s.nonces.Verify(ActionSettings, r.PostForm.Get("_nonce")) {
		http.Error(w, "The link you followed has expired.", http.StatusForbidden)
		return
	}
	groups := r.PostForm["option_page"]
	if len(groups) == 0 {
		http.Error(w, "missing option_page", http.StatusBadRequest)
		return
	}

	reg := s.ctrl.Registry()
	var list notice.List
	ctx := notice.WithList(r.Context(), &list)
	for _, ref := range groups {
		g, ok := reg.Group(settings.GroupRef(ref))
		if !ok {
			http.Error(w, "unknown option_page "+ref, http.StatusBadRequest)
			return
		}
		raw := formFields(r.PostForm, g.OptionName)
		if err := sanitize.CheckForm(raw, sanitize.DefaultFormLimits()); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		if _, err := s.ctrl.Commit(ctx, g.Key, raw); err != nil {
			s.logger.Error().Err(err).Str("group", string(g.Key)).Msg("settings commit failed")
			list.Add(reg.Slug(), reg.Slug()+"-message", "Settings could not be saved.", notice.TypeError)
		}
	}
	if s.snippet != nil {
		s.snippet.Invalidate()
	}

	q := url.Values{}
	if tab := r.PostForm.Get("tab"); tab != "" {
		q.Set("tab", tab)
	}
	if !list.HasErrors() {
		q.Set("settings-updated", "true")
	}
	if id := s.flashes.Put(list.All()); id != "" {
		q.Set("flash", id)
	}
	http.Redirect(w, r, "/settings?"+q.Encode(), http.StatusSeeOther)
}

// formFields collects "option[field]" inputs. When a name repeats, as with
// the hidden companion of a checkbox, the last value wins.
func formFields(form url.Values, optionName string) map[string]string {
	prefix := optionName + "["
	out := make(map[string]string)
	for name, values := range form {
		if len(values) == 0 || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "]") {
			continue
		}
		key := name[len(prefix) : len(name)-1]
		if key == "" {
			continue
		}
		out[key] = values[len(values)-1]
	}
	return out
}

func (s *Server) handleFetchReleases(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAjax(w, r) {
		return
	}
	res := s.releases.FetchReleases(r.Context())
	if !res.Success {
		s.writeJSON(w, http.StatusBadGateway, res)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleDownloadRelease stores a local copy of the requested version. The
// hash is taken from the settings when the version is the pinned one and
// fetched from the CDN otherwise.
func (s *Server) handleDownloadRelease(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeAjax(w, r) {
		return
	}
	v := version.StripV(r.FormValue("version"))
	if !version.Valid(v) {
		s.writeFailure(w, http.StatusBadRequest, "A valid release version is required")
		return
	}

	ctx := r.Context()
	hash := ""
	if version.StripV(s.ctrl.GetSetting(ctx, settings.FieldJSVersion, "", "")) == v {
		hash = s.ctrl.GetSetting(ctx, settings.FieldJSHash, "", "")
	}
	if hash == "" {
		h, err := s.assets.FetchHash(ctx, v)
		if err != nil {
			s.logger.Warn().Err(err).Str("version", v).Msg("hash unavailable for download")
			s.writeFailure(w, http.StatusBadGateway, "Integrity hash for version "+v+" is unavailable: "+err.Error())
			return
		}
		hash = h
	}

	file := s.assets.Download(ctx, v, hash)
	s.writeJSON(w, http.StatusOK, downloadResponse{Success: file.Success, Files: []assets.File{file}})
}

// handleAsset serves a local script copy.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	tag, file := chi.URLParam(r, "tag"), chi.URLParam(r, "file")
	if file != s.assets.AssetFile() || !s.assets.Exists(tag) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, s.assets.LocalPath(tag))
}

func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.snippet == nil {
		return
	}
	out, err := s.snippet.Render(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to render snippet")
		http.Error(w, "failed to render snippet", http.StatusInternalServerError)
		return
	}
	w.Write([]byte(out))
}
