package snippet

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuseinfotech/send2crm/internal/settings"
	"github.com/fuseinfotech/send2crm/internal/testutil"
)

type mapSettings map[string]string

func (m mapSettings) GetSetting(_ context.Context, key string, _ settings.GroupRef, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

type fixedLocator struct{}

func (fixedLocator) ScriptURL(v string, useCDN bool) string {
	if useCDN {
		return "https://cdn.example.com/send2crmjs@v" + v + "/send2crm.min.js"
	}
	return "https://site.example.com/assets/v" + v + "/send2crm.min.js"
}

func configured() mapSettings {
	return mapSettings{
		settings.FieldAPIKey:    "abc-key",
		settings.FieldAPIDomain: "crm.example.com",
		settings.FieldJSVersion: "1.21.0",
		settings.FieldUseCDN:    "1",
		settings.FieldJSHash:    "sha384-xyz",
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := NewRenderer(configured(), fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop())
	cfg, ok := r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, Config{
		Location:  "https://cdn.example.com/send2crmjs@v1.21.0/send2crm.min.js?ver=1.0.0",
		Namespace: "send2crm",
		APIDomain: "crm.example.com",
		APIKey:    "abc-key",
		Integrity: "sha384-xyz",
	}, cfg)

	local := configured()
	local[settings.FieldUseCDN] = "0"
	cfg, ok = NewRenderer(local, fixedLocator{}, "send2crm", "", zerolog.Nop()).Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "https://site.example.com/assets/v1.21.0/send2crm.min.js", cfg.Location)
}

func TestRenderSkipsWhenNotConfigured(t *testing.T) {
	t.Parallel()

	for _, missing := range []string{settings.FieldAPIKey, settings.FieldAPIDomain, settings.FieldJSVersion} {
		missing := missing
		t.Run(missing, func(t *testing.T) {
			t.Parallel()
			s := configured()
			delete(s, missing)
			out, err := NewRenderer(s, fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop()).Render(context.Background())
			require.NoError(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestRenderEmitsLoader(t *testing.T) {
	t.Parallel()

	s := configured()
	s[settings.FieldAPIKey] = "key'</script><b>"
	r := NewRenderer(s, fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop())

	out, err := r.Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "<script>")
	assert.Contains(t, out, "n[e].init(d2,cr)")
	assert.Contains(t, out, "send2crm.min.js")
	assert.Contains(t, out, "crm.example.com")
	assert.NotContains(t, out, "</script><b>", "values are escaped for the script context")
}

func TestRenderCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	s := configured()
	r := NewRenderer(s, fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop())
	ctx := context.Background()

	first, err := r.Render(ctx)
	require.NoError(t, err)
	s[settings.FieldAPIDomain] = "other.example.com"

	cached, err := r.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	r.Invalidate()
	fresh, err := r.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, fresh, "other.example.com")
}

// changingSettings edits the domain and invalidates the renderer partway
// through the first Resolve, the way a save landing mid-render would.
type changingSettings struct {
	mapSettings
	r     *Renderer
	fired bool
}

func (c *changingSettings) GetSetting(ctx context.Context, key string, group settings.GroupRef, def string) string {
	v := c.mapSettings.GetSetting(ctx, key, group, def)
	if key == settings.FieldAPIDomain && !c.fired {
		c.fired = true
		c.mapSettings[settings.FieldAPIDomain] = "other.example.com"
		c.r.Invalidate()
	}
	return v
}

func TestRenderDoesNotCacheAcrossInvalidate(t *testing.T) {
	t.Parallel()

	s := &changingSettings{mapSettings: configured()}
	r := NewRenderer(s, fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop())
	s.r = r
	ctx := context.Background()

	stale, err := r.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, stale, "crm.example.com")

	fresh, err := r.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, fresh, "other.example.com")

	cached, err := r.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
}

func TestWatchStoreInvalidates(t *testing.T) {
	t.Parallel()

	st := testutil.OpenStore(t)
	s := configured()
	r := NewRenderer(s, fixedLocator{}, "send2crm", "1.0.0", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, r.WatchStore(ctx, st, 500*time.Millisecond))

	_, err := r.Render(ctx)
	require.NoError(t, err)
	s[settings.FieldAPIDomain] = "other.example.com"
	require.NoError(t, st.SetOption(ctx, "send2crm_settings_option", map[string]string{"x": "1"}))

	assert.Eventually(t, func() bool {
		out, err := r.Render(ctx)
		return err == nil && strings.Contains(out, "other.example.com")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRegisterSettings(t *testing.T) {
	t.Parallel()

	reg := settings.NewRegistry("send2crm")
	require.NoError(t, RegisterSettings(reg))

	option, _ := reg.ResolveStorageKey(settings.FieldAPIKey)
	assert.Equal(t, "send2crm_settings_option", option)
	assert.Len(t, reg.FieldsForGroup(settings.GroupSettings), 2)
	assert.Error(t, RegisterSettings(reg), "fields are registered once")
}
