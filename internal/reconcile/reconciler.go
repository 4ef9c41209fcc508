// Package reconcile keeps the pinned snippet version, its delivery mode and
// its integrity hash consistent when the version manager settings change.
package reconcile

import (
	"context"
	"fmt"
	"maps"

	"github.com/rs/zerolog"

	"github.com/fuseinfotech/send2crm/internal/assets"
	"github.com/fuseinfotech/send2crm/internal/notice"
	"github.com/fuseinfotech/send2crm/internal/observability"
	"github.com/fuseinfotech/send2crm/internal/options"
	"github.com/fuseinfotech/send2crm/internal/settings"
)

// AssetStore is the part of the asset cache the reconciler drives.
type AssetStore interface {
	Exists(version string) bool
	FetchHash(ctx context.Context, version string) (string, error)
	Download(ctx context.Context, version, expectedHash string) assets.File
	Remove(version string) error
}

var _ AssetStore = (*assets.Cache)(nil)

// State is the (version, delivery, hash) triple held in the version manager blob.
type State struct {
	Version string
	UseCDN  bool
	Hash    string
}

// StateOf reads the version manager fields from blob.
func StateOf(blob map[string]string) State {
	return State{
		Version: blob[settings.FieldJSVersion],
		UseCDN:  blob[settings.FieldUseCDN] == "1",
		Hash:    blob[settings.FieldJSHash],
	}
}

func (s State) writeTo(blob map[string]string) {
	blob[settings.FieldJSVersion] = s.Version
	blob[settings.FieldJSHash] = s.Hash
	if s.UseCDN {
		blob[settings.FieldUseCDN] = "1"
	} else {
		blob[settings.FieldUseCDN] = "0"
	}
}

// plan lists the side effects a commit needs.
type plan struct {
	refreshHash bool
	download    bool
	removeOld   bool
	clearHash   bool
}

func (p plan) empty() bool {
	return !p.refreshHash && !p.download && !p.removeOld && !p.clearHash
}

// Reconciler is the pre-commit filter of the version manager option.
type Reconciler struct {
	assets    AssetStore
	code      string
	logger    zerolog.Logger
	collector observability.Collector
}

var _ options.Filter = (*Reconciler)(nil)

// New creates a reconciler. slug prefixes the notice codes; a nil collector
// disables metrics.
func New(store AssetStore, slug string, logger zerolog.Logger, collector observability.Collector) *Reconciler {
	if collector == nil {
		collector = observability.Noop()
	}
	return &Reconciler{
		assets:    store,
		code:      slug + "-message",
		logger:    logger.With().Str("component", "reconcile").Logger(),
		collector: collector,
	}
}

// Attach installs r as a filter on the version manager option of reg.
func (r *Reconciler) Attach(opts *options.Options, reg *settings.Registry) {
	opts.AddFilter(reg.OptionName(settings.GroupVersionManager), r)
}

// Filter implements options.Filter.
func (r *Reconciler) Filter(ctx context.Context, newValue, oldValue map[string]string, optionName string) map[string]string {
	return r.Reconcile(ctx, oldValue, newValue)
}

func (r *Reconciler) plan(old, next State) plan {
	var p plan
	switch {
	case next.Version != old.Version:
		if next.Version == "" {
			p.clearHash = true
		} else {
			p.refreshHash = true
			p.download = !next.UseCDN && !r.assets.Exists(next.Version)
		}
		p.removeOld = !old.UseCDN && old.Version != "" && r.assets.Exists(old.Version)
	case next.UseCDN != old.UseCDN:
		if next.UseCDN {
			p.removeOld = old.Version != "" && r.assets.Exists(old.Version)
		} else {
			p.download = next.Version != "" && !r.assets.Exists(next.Version)
		}
	}
	if next.Version == "" {
		return p
	}
	// The hash only ever comes from the release host, so a missing or edited
	// hash for the pinned version is fetched again.
	if !p.refreshHash && (next.Hash == "" || next.Hash != old.Hash) {
		p.refreshHash = true
	}
	if !next.UseCDN && !p.download && !r.assets.Exists(next.Version) {
		p.download = true
	}
	return p
}

// Reconcile compares the stored and pending blobs, performs the downloads,
// removals and hash lookups the change requires, and returns the blob to
// persist. When the new version cannot be verified or fetched the version,
// delivery and hash fields are rolled back to their stored values and an
// error notice is queued on ctx.
func (r *Reconciler) Reconcile(ctx context.Context, oldValue, newValue map[string]string) map[string]string {
	out := maps.Clone(newValue)
	if out == nil {
		out = map[string]string{}
	}
	old, next := StateOf(oldValue), StateOf(newValue)
	p := r.plan(old, next)
	if p.empty() {
		r.collector.IncReconcile(observability.OutcomeUnchanged)
		return out
	}

	log := r.logger.With().
		Str("old_version", old.Version).
		Str("new_version", next.Version).
		Bool("use_cdn", next.UseCDN).
		Logger()

	if p.clearHash {
		next.Hash = ""
	}

	if p.refreshHash {
		hash, err := r.assets.FetchHash(ctx, next.Version)
		if err != nil {
			log.Warn().Err(err).Msg("integrity hash unavailable, rolling back version change")
			return r.rollback(ctx, out, oldValue, next.Version,
				fmt.Sprintf("Version %s could not be verified: %v. The previous version was kept.", next.Version, err))
		}
		next.Hash = hash
	}

	if p.download {
		res := r.assets.Download(ctx, next.Version, next.Hash)
		if !res.Success {
			log.Warn().Str("reason", res.Message).Msg("asset download failed, rolling back version change")
			return r.rollback(ctx, out, oldValue, next.Version,
				fmt.Sprintf("Version %s could not be downloaded: %s. The previous version was kept.", next.Version, res.Message))
		}
	}

	if p.removeOld {
		if err := r.assets.Remove(old.Version); err != nil {
			log.Warn().Err(err).Msg("failed to remove stale local copy")
			notice.Add(ctx, settings.FieldJSVersion, r.code,
				fmt.Sprintf("The local copy of version %s could not be removed: %v.", old.Version, err), notice.TypeWarning)
		}
	}

	next.writeTo(out)
	r.collector.IncReconcile(observability.OutcomeCommitted)
	log.Info().
		Bool("hash_refreshed", p.refreshHash).
		Bool("downloaded", p.download).
		Bool("removed_old", p.removeOld).
		Msg("version settings reconciled")
	return out
}

func (r *Reconciler) rollback(ctx context.Context, out, oldValue map[string]string, rejected, message string) map[string]string {
	for _, key := range []string{settings.FieldJSVersion, settings.FieldUseCDN, settings.FieldJSHash} {
		if v, ok := oldValue[key]; ok {
			out[key] = v
		} else {
			delete(out, key)
		}
	}
	notice.Add(ctx, settings.FieldJSVersion, r.code, message, notice.TypeError)
	r.collector.IncReconcile(observability.OutcomeRolledBack)
	r.logger.Info().Str("rejected_version", rejected).Msg("version change rolled back")
	return out
}
