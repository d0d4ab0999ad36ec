package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"tour-engine/internal/common/metrics"
	"tour-engine/internal/tour/models"
)

// ============================================================
// Asset loader
// ============================================================

type Kind string

const (
	KindPanorama  Kind = "panorama"
	KindModel     Kind = "model"
	KindThumbnail Kind = "thumbnail"
)

// Source tells where the bytes of an asset came from.
type Source string

const (
	SourceStore       Source = "store"
	SourceRemote      Source = "remote"
	SourceCache       Source = "cache"
	SourcePlaceholder Source = "placeholder"
)

const defaultPrefetchLimit = 4

type Asset struct {
	Ref      string
	Kind     Kind
	Data     []byte
	Source   Source
	Degraded bool
}

type Options struct {
	Store         *Store
	Remote        *Remote
	Cache         *Cache
	Placeholder   []byte
	PrefetchLimit int
	Logger        *zap.Logger
}

// Loader resolves asset references: remote URLs through Remote, everything
// else through Store. Good copies are written to Cache; when the primary
// source fails the cached copy, then (for panoramas) the placeholder, is
// served as a degraded asset. Concurrent loads of one reference share a
// single fetch.
type Loader struct {
	store       *Store
	remote      *Remote
	cache       *Cache
	placeholder []byte
	limit       int
	logger      *zap.Logger
	group       singleflight.Group
}

func NewLoader(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.PrefetchLimit
	if limit <= 0 {
		limit = defaultPrefetchLimit
	}
	return &Loader{
		store:       opts.Store,
		remote:      opts.Remote,
		cache:       opts.Cache,
		placeholder: opts.Placeholder,
		limit:       limit,
		logger:      logger,
	}
}

// Load returns the asset or an AssetLoadError when no source can serve it.
func (l *Loader) Load(ctx context.Context, ref string, kind Kind) (*Asset, error) {
	start := time.Now()
	v, err, _ := l.group.Do(string(kind)+"|"+ref, func() (any, error) {
		return l.load(ctx, ref, kind)
	})
	if err != nil {
		return nil, err
	}
	asset := *v.(*Asset)
	metrics.RecordAssetLoad(string(kind), string(asset.Source), time.Since(start).Seconds())
	return &asset, nil
}

func (l *Loader) load(ctx context.Context, ref string, kind Kind) (*Asset, error) {
	data, source, err := l.primary(ctx, ref)
	if err == nil {
		err = validate(kind, data)
	}
	if err == nil {
		if l.cache != nil {
			if cerr := l.cache.Set(ctx, ref, data); cerr != nil {
				l.logger.Warn("asset cache write failed", zap.String("ref", ref), zap.Error(cerr))
			}
		}
		return &Asset{Ref: ref, Kind: kind, Data: data, Source: source}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, models.NewAssetLoadError(ref, ctxErr)
	}

	if l.cache != nil && ref != "" {
		cached, ok, cerr := l.cache.Get(ctx, ref)
		if cerr != nil {
			l.logger.Warn("asset cache read failed", zap.String("ref", ref), zap.Error(cerr))
		}
		if ok && validate(kind, cached) == nil {
			l.logger.Warn("serving cached asset", zap.String("ref", ref), zap.Error(err))
			return &Asset{Ref: ref, Kind: kind, Data: cached, Source: SourceCache, Degraded: true}, nil
		}
	}

	if kind == KindPanorama && len(l.placeholder) > 0 {
		l.logger.Warn("serving placeholder panorama", zap.String("ref", ref), zap.Error(err))
		return &Asset{Ref: ref, Kind: kind, Data: l.placeholder, Source: SourcePlaceholder, Degraded: true}, nil
	}
	return nil, models.NewAssetLoadError(ref, err)
}

// validate rejects bytes that cannot be served as kind. Panoramas must
// decode as an image; models are checked by the viewer's decoder.
func validate(kind Kind, data []byte) error {
	if kind != KindPanorama {
		return nil
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("decode panorama: %w", err)
	}
	return nil
}

func (l *Loader) primary(ctx context.Context, ref string) ([]byte, Source, error) {
	switch {
	case ref == "":
		return nil, "", ErrInvalidRef
	case IsRemote(ref):
		if l.remote == nil {
			return nil, "", errors.New("remote assets disabled")
		}
		data, err := l.remote.Fetch(ctx, ref)
		return data, SourceRemote, err
	default:
		if l.store == nil {
			return nil, "", errors.New("asset store not configured")
		}
		data, err := l.store.Read(ref)
		return data, SourceStore, err
	}
}

// FetchModel adapts Load to the viewer's fetch signature.
func (l *Loader) FetchModel(ctx context.Context, ref string, progress func(loaded, total int64)) ([]byte, error) {
	asset, err := l.Load(ctx, ref, KindModel)
	if err != nil {
		return nil, err
	}
	if progress != nil {
		n := int64(len(asset.Data))
		progress(n, n)
	}
	return asset.Data, nil
}

// Prefetch warms the cache for refs in parallel and returns how many loaded.
// Failures are logged, not returned.
func (l *Loader) Prefetch(ctx context.Context, kind Kind, refs ...string) int {
	var (
		g      errgroup.Group
		loaded = make([]bool, len(refs))
	)
	g.SetLimit(l.limit)
	for i, ref := range refs {
		if ref == "" {
			continue
		}
		g.Go(func() error {
			if _, err := l.Load(ctx, ref, kind); err != nil {
				l.logger.Debug("prefetch failed", zap.String("ref", ref), zap.Error(err))
				return nil
			}
			loaded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range loaded {
		if ok {
			n++
		}
	}
	return n
}

func (k Kind) String() string { return string(k) }

func (a *Asset) String() string {
	return fmt.Sprintf("%s %s (%s, %d bytes)", a.Kind, a.Ref, a.Source, len(a.Data))
}
