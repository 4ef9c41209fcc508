package snippet

import (
	"github.com/fuseinfotech/send2crm/internal/settings"
)

const requiredDescription = "The following settings are required for Send2CRM to function. " +
	"The Send2CRM snippet will not be included until they are added."

// RegisterSettings adds the required settings group, section and fields to reg.
func RegisterSettings(reg *settings.Registry) error {
	reg.AddGroup(settings.GroupSettings, nil, settings.DefaultTab, "Required Settings")
	section := reg.AddSection("settings", "Required Settings", requiredDescription, nil, settings.DefaultTab)

	fields := []settings.Field{
		{
			Name:        settings.FieldAPIKey,
			Label:       "API Key",
			Description: "The Send2CRM API key for this site.",
			Renderer:    settings.TextInput{Required: true},
			Validator:   settings.NotNumeric{},
		},
		{
			Name:        settings.FieldAPIDomain,
			Label:       "API Domain",
			Description: "The domain of your Send2CRM service, e.g. crm.example.com.",
			Renderer:    settings.TextInput{Required: true, Placeholder: "crm.example.com"},
			Validator:   settings.Domain{Required: true},
		},
	}
	for _, f := range fields {
		f.Section = section
		f.Group = settings.GroupSettings
		if err := reg.AddField(f); err != nil {
			return err
		}
	}
	return nil
}
