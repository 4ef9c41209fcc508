package settings

import (
	"html/template"
	"io"
)

var controlTemplates = template.Must(template.New("controls").Parse(`
{{define "text"}}<input class="regular-text" type="text" id="{{.ID}}" name="{{.InputName}}" value="{{.Value}}"{{if .Required}} required{{end}}{{if .ReadOnly}} readonly{{end}}{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}>{{end}}
{{define "checkbox"}}<input type="hidden" name="{{.InputName}}" value="0"><input type="checkbox" id="{{.ID}}" name="{{.InputName}}" value="1"{{if eq .Value "1"}} checked{{end}}>{{end}}
{{define "version"}}<input class="regular-text" type="text" id="{{.ID}}" name="{{.InputName}}" value="{{.Value}}" data-current-version="{{.Value}}" readonly>
<select id="{{.ID}}_select" class="{{.ID}}-releases"><option value="" disabled selected>No releases loaded. Click Fetch Releases.</option></select>
<button type="button" id="fetch-releases" class="button button-secondary">Fetch Releases</button>
<div id="releases-container"></div>{{end}}
{{define "section"}}{{if .Description}}<p>{{.Description}}</p>{{end}}{{end}}
`))

type inputData struct {
	FieldContext
	Required    bool
	ReadOnly    bool
	Placeholder string
}

// TextInput renders a single-line text input.
type TextInput struct {
	Required    bool
	Placeholder string
}

func (t TextInput) RenderField(w io.Writer, fc FieldContext) error {
	return controlTemplates.ExecuteTemplate(w, "text", inputData{FieldContext: fc, Required: t.Required, Placeholder: t.Placeholder})
}

// ReadOnlyInput renders a text input the user cannot edit.
type ReadOnlyInput struct{}

func (ReadOnlyInput) RenderField(w io.Writer, fc FieldContext) error {
	return controlTemplates.ExecuteTemplate(w, "text", inputData{FieldContext: fc, ReadOnly: true})
}

// Checkbox renders an on/off control. A hidden "0" precedes the box so that an
// unchecked box still submits a value and is not kept from the stored blob.
type Checkbox struct{}

func (Checkbox) RenderField(w io.Writer, fc FieldContext) error {
	return controlTemplates.ExecuteTemplate(w, "checkbox", fc)
}

// VersionPicker renders the pinned version together with the release
// selector the admin page populates from the fetch-releases endpoint.
type VersionPicker struct{}

func (VersionPicker) RenderField(w io.Writer, fc FieldContext) error {
	return controlTemplates.ExecuteTemplate(w, "version", fc)
}

// DescriptionSection prints the section description as a paragraph.
type DescriptionSection struct{}

func (DescriptionSection) RenderSection(w io.Writer, s Section) error {
	return controlTemplates.ExecuteTemplate(w, "section", s)
}
