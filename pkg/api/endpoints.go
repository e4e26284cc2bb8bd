package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hazyhaar/playerdex/pkg/directory"
	"github.com/hazyhaar/playerdex/pkg/importer"
	"github.com/hazyhaar/playerdex/pkg/kit"
)

const (
	DefaultLimit = 8
	MaxLimit     = 25

	// MaxWait bounds how long a warm request may block on the load.
	MaxWait = time.Minute
)

// ErrBadRequest marks request errors the caller can fix.
var ErrBadRequest = errors.New("bad request")

// Catalog is the local player catalog the API can page through.
type Catalog interface {
	directory.PageFetcher
	Versions(ctx context.Context) ([]importer.VersionCount, error)
}

// BundleFiles serves encoded bundle files.
type BundleFiles interface {
	ReadFile(version string) ([]byte, error)
	Versions() ([]string, error)
}

// Config wires a Service.
type Config struct {
	Cache *directory.Cache

	// Catalog and Bundles are optional.
	Catalog Catalog
	Bundles BundleFiles

	// DefaultVersion is used when a request names no version.
	DefaultVersion string

	// DefaultLimit and MaxLimit bound search results. If 0, the package
	// defaults.
	DefaultLimit int
	MaxLimit     int

	Logger *slog.Logger
}

// Service holds the endpoints shared by the HTTP and MCP transports.
type Service struct {
	cfg    Config
	logger *slog.Logger

	search   kit.Endpoint
	status   kit.Endpoint
	warm     kit.Endpoint
	versions kit.Endpoint
}

// New builds the endpoints over cfg.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	cfg.DefaultLimit = min(cfg.DefaultLimit, cfg.MaxLimit)

	s := &Service{cfg: cfg, logger: cfg.Logger}
	wrap := func(name string, e kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.Logging(cfg.Logger, name), kit.Recover())(e)
	}
	s.search = wrap("search", s.searchEndpoint)
	s.status = wrap("status", s.statusEndpoint)
	s.warm = wrap("warm", s.warmEndpoint)
	s.versions = wrap("versions", s.versionsEndpoint)
	return s
}

// Shared request/response types used by both HTTP and MCP transports.

type searchReq struct {
	Query   string
	Version string
	Limit   int
}

type searchResponse struct {
	Query   string               `json:"query"`
	Version string               `json:"version"`
	Results []directory.Result   `json:"results"`
	Status  directory.LoadStatus `json:"status"`
}

type statusReq struct {
	Version string
}

type warmReq struct {
	Version string
	Wait    time.Duration
}

type versionInfo struct {
	Version string                `json:"version"`
	Status  *directory.LoadStatus `json:"status,omitempty"`
	Catalog int                   `json:"catalog,omitempty"`
	Bundle  bool                  `json:"bundle,omitempty"`
}

type versionsResponse struct {
	Default  string        `json:"default"`
	Versions []versionInfo `json:"versions"`
}

func (s *Service) version(v string) string {
	if v == "" {
		return s.cfg.DefaultVersion
	}
	return v
}

// limit applies the default and clamps to [1, MaxLimit].
func (s *Service) limit(n int) int {
	if n == 0 {
		return s.cfg.DefaultLimit
	}
	return max(1, min(n, s.cfg.MaxLimit))
}

// searchEndpoint warms the version and answers from whatever is loaded so
// far. The caller learns from Status whether more results may follow.
// After a failed load it keeps answering from the partial index and leaves
// retries to an explicit warm.
func (s *Service) searchEndpoint(_ context.Context, request any) (any, error) {
	req := request.(*searchReq)
	version := s.version(req.Version)
	if version == "" {
		return nil, fmt.Errorf("missing version: %w", ErrBadRequest)
	}
	if st := s.cfg.Cache.Status(version); !st.Unavailable {
		s.cfg.Cache.Warm(version)
	}
	results := s.cfg.Cache.Search(version, req.Query, s.limit(req.Limit))
	if results == nil {
		results = []directory.Result{}
	}
	return searchResponse{
		Query:   req.Query,
		Version: version,
		Results: results,
		Status:  s.cfg.Cache.Status(version),
	}, nil
}

func (s *Service) statusEndpoint(_ context.Context, request any) (any, error) {
	req := request.(*statusReq)
	version := s.version(req.Version)
	if version == "" {
		return nil, fmt.Errorf("missing version: %w", ErrBadRequest)
	}
	return s.cfg.Cache.Status(version), nil
}

func (s *Service) warmEndpoint(ctx context.Context, request any) (any, error) {
	req := request.(*warmReq)
	version := s.version(req.Version)
	if version == "" {
		return nil, fmt.Errorf("missing version: %w", ErrBadRequest)
	}
	l := s.cfg.Cache.Warm(version)
	if req.Wait <= 0 {
		return s.cfg.Cache.Status(version), nil
	}
	ctx, cancel := context.WithTimeout(ctx, min(req.Wait, MaxWait))
	defer cancel()
	return l.Wait(ctx), nil
}

// versionsEndpoint merges what the cache holds with what the catalog and
// bundle directory could load.
func (s *Service) versionsEndpoint(ctx context.Context, _ any) (any, error) {
	byVersion := make(map[string]*versionInfo)
	get := func(v string) *versionInfo {
		if info, ok := byVersion[v]; ok {
			return info
		}
		info := &versionInfo{Version: v}
		byVersion[v] = info
		return info
	}

	for _, st := range s.cfg.Cache.Versions() {
		get(st.Version).Status = &st
	}
	if s.cfg.Catalog != nil {
		counts, err := s.cfg.Catalog.Versions(ctx)
		if err != nil {
			return nil, fmt.Errorf("list catalog versions: %w", err)
		}
		for _, c := range counts {
			get(c.Version).Catalog = c.Players
		}
	}
	if s.cfg.Bundles != nil {
		names, err := s.cfg.Bundles.Versions()
		if err != nil {
			return nil, fmt.Errorf("list bundles: %w", err)
		}
		for _, v := range names {
			get(v).Bundle = true
		}
	}

	resp := versionsResponse{Default: s.cfg.DefaultVersion, Versions: make([]versionInfo, 0, len(byVersion))}
	for _, info := range byVersion {
		resp.Versions = append(resp.Versions, *info)
	}
	slices.SortFunc(resp.Versions, func(a, b versionInfo) int {
		return strings.Compare(a.Version, b.Version)
	})
	return resp, nil
}
