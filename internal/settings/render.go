package settings

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"net/url"

	"github.com/fuseinfotech/send2crm/internal/notice"
)

// PageRequest carries what the settings page needs from the HTTP request.
type PageRequest struct {
	Tab             string
	Authorized      bool
	SettingsUpdated bool
	Nonce           string
	AjaxNonce       string
	Action          string
	AjaxBase        string
	Scripts         []string
	Notices         []notice.Notice
}

type pageTab struct {
	Tab
	Href   string
	Active bool
}

type pageField struct {
	Label       string
	LabelFor    string
	Control     template.HTML
	Description string
}

type pageSection struct {
	Label  string
	Intro  template.HTML
	Fields []pageField
}

type pageData struct {
	Title    string
	PageID   string
	Tabs     []pageTab
	Active   string
	Groups   []GroupRef
	Sections []pageSection
	Notices  []notice.Notice
	Req      PageRequest
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<div class="wrap" id="{{.PageID}}" data-ajax-base="{{.Req.AjaxBase}}" data-nonce="{{.Req.AjaxNonce}}">
<h1>{{.Title}}</h1>
{{range .Notices}}<div class="notice notice-{{.Type}} settings-error is-dismissible" data-setting="{{.Setting}}"><p><strong>{{.Message}}</strong></p></div>
{{end}}<h2 class="nav-tab-wrapper">{{range .Tabs}}<a href="{{.Href}}" class="nav-tab{{if .Active}} nav-tab-active{{end}}">{{.Title}}</a>{{end}}</h2>
<form method="post" action="{{.Req.Action}}">
<input type="hidden" name="tab" value="{{.Active}}">
<input type="hidden" name="_nonce" value="{{.Req.Nonce}}">
{{range .Groups}}<input type="hidden" name="option_page" value="{{.}}">
{{end}}{{range .Sections}}<h2>{{.Label}}</h2>
{{.Intro}}
<table class="form-table" role="presentation">
{{range .Fields}}<tr><th scope="row"><label for="{{.LabelFor}}">{{.Label}}</label></th><td>{{.Control}}{{if .Description}}<p class="description">{{.Description}}</p>{{end}}</td></tr>
{{end}}</table>
{{end}}<p class="submit"><input type="submit" name="submit" id="submit" class="button button-primary" value="Save Changes"></p>
</form>
</div>
{{range .Req.Scripts}}<script src="{{.}}"></script>
{{end}}</body></html>
`))

// RenderSettingsPage writes the tabbed settings page. It writes nothing and
// returns ErrForbidden when the request is not authorized.
func (c *Controller) RenderSettingsPage(ctx context.Context, w io.Writer, req PageRequest) error {
	if !req.Authorized {
		return ErrForbidden
	}
	if req.Action == "" {
		req.Action = "options"
	}

	active := c.reg.ActiveTab(req.Tab)
	data := pageData{
		Title:  c.menuName + " Settings",
		PageID: c.reg.PageID(active),
		Active: active,
		Req:    req,
	}

	for _, t := range c.reg.Tabs() {
		data.Tabs = append(data.Tabs, pageTab{
			Tab:    t,
			Href:   "?" + url.Values{"tab": {t.Name}}.Encode(),
			Active: t.Name == active,
		})
	}
	for _, g := range c.reg.GroupsForTab(active) {
		data.Groups = append(data.Groups, g.Key)
	}

	if req.SettingsUpdated {
		data.Notices = append(data.Notices, notice.Notice{
			Setting: c.reg.Slug(),
			Code:    c.reg.Slug() + "-message",
			Message: "Settings saved.",
			Type:    notice.TypeSuccess,
		})
	}
	data.Notices = append(data.Notices, req.Notices...)
	data.Notices = append(data.Notices, notice.FromContext(ctx).All()...)

	for _, s := range c.reg.SectionsForTab(active) {
		ps, err := c.renderSection(ctx, s)
		if err != nil {
			return err
		}
		data.Sections = append(data.Sections, ps)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (c *Controller) renderSection(ctx context.Context, s Section) (pageSection, error) {
	ps := pageSection{Label: s.Label}

	var intro bytes.Buffer
	if s.Render != nil {
		if err := s.Render.RenderSection(&intro, s); err != nil {
			return ps, err
		}
	}
	ps.Intro = template.HTML(intro.String())

	for _, f := range c.reg.FieldsForSection(s.Key) {
		fc := FieldContext{
			Field:     f,
			ID:        f.Name,
			LabelFor:  f.Name,
			InputName: c.reg.InputName(f.Name),
			Value:     c.GetSetting(ctx, f.Name, "", ""),
		}
		var control bytes.Buffer
		if err := f.Renderer.RenderField(&control, fc); err != nil {
			return ps, err
		}
		ps.Fields = append(ps.Fields, pageField{
			Label:       f.Label,
			LabelFor:    fc.LabelFor,
			Control:     template.HTML(control.String()),
			Description: f.Description,
		})
	}
	return ps, nil
}
