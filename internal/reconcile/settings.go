package reconcile

import (
	"github.com/fuseinfotech/send2crm/internal/settings"
)

const versionManagerDescription = "Choose the Send2CRM JavaScript release to load. " +
	"Releases are served from the CDN unless local delivery is selected, in which case the file is downloaded and served from this site."

// RegisterSettings adds the version manager group, section and fields to reg.
func RegisterSettings(reg *settings.Registry) error {
	reg.AddGroup(settings.GroupVersionManager, nil, settings.TabVersionManager, "Version Manager")
	section := reg.AddSection("version_manager", "Send2CRM Versions", versionManagerDescription, nil, settings.TabVersionManager)

	fields := []settings.Field{
		{
			Name:        settings.FieldJSVersion,
			Label:       "Send2CRM Version",
			Description: "Use Fetch Releases to list the available versions.",
			Renderer:    settings.VersionPicker{},
			Validator:   settings.Version{},
		},
		{
			Name:        settings.FieldJSHash,
			Label:       "Integrity Hash",
			Description: "Filled in automatically from the release's hash file.",
			Renderer:    settings.ReadOnlyInput{},
			Validator:   settings.Integrity{},
		},
		{
			Name:        settings.FieldUseCDN,
			Label:       "Use CDN",
			Description: "Load the script from the CDN instead of a local copy.",
			Renderer:    settings.Checkbox{},
			Validator:   settings.Boolean{},
		},
	}
	for _, f := range fields {
		f.Section = section
		f.Group = settings.GroupVersionManager
		if err := reg.AddField(f); err != nil {
			return err
		}
	}
	return nil
}
