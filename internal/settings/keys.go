package settings

// Field names persisted by send2crm.
const (
	FieldAPIKey    = "send2crm_api_key"
	FieldAPIDomain = "send2crm_api_domain"
	FieldJSVersion = "send2crm_js_version"
	FieldJSHash    = "send2crm_js_hash"
	FieldUseCDN    = "send2crm_use_cdn"
)

// Group keys, before normalization.
const (
	GroupSettings       = DefaultGroupKey
	GroupVersionManager = "version_manager"
)

// TabVersionManager is the tab holding the release controls.
const TabVersionManager = "version_manager"
