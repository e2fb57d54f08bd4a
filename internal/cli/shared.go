package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/365businessdev/alget/internal/cache"
	"github.com/365businessdev/alget/internal/catalog"
	"github.com/365businessdev/alget/internal/config"
	"github.com/365businessdev/alget/internal/extractor"
	"github.com/365businessdev/alget/internal/feeds"
	"github.com/365businessdev/alget/internal/fetcher"
	"github.com/365businessdev/alget/internal/manager"
	"github.com/365businessdev/alget/internal/manifest"
	"github.com/365businessdev/alget/internal/registry"
	"github.com/365businessdev/alget/internal/state"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func withSpinner(ctx context.Context, desc string) (stop func()) {
	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				spinner.Finish()
				return
			default:
				spinner.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		spinner.Finish()
	}
}

func formatSize(bytes int64) string {
	const (
		KB = 1 << 10
		MB = 1 << 20
		GB = 1 << 30
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// env holds what one command invocation shares across every project folder
// it touches.
type env struct {
	cfg      *config.Config
	registry *registry.NuGet
	feeds    *feeds.Resolver
	journal  *state.SQLiteJournal
}

func newEnv(opts *globalOptions) (*env, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}

	journal, err := state.NewSQLite(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	reg := registry.New(fetcher.New(cfg.Timeout).WithProgress(os.Stderr), cfg.FeedCacheDir, cfg.FeedCacheTTL)

	return &env{
		cfg:      cfg,
		registry: reg,
		feeds:    feeds.New(reg, sources, cfg.NormalizedCountryCode(), cfg.MaxParallel),
		journal:  journal,
	}, nil
}

func (e *env) Close() error {
	return e.journal.Close()
}

type project struct {
	dir     string
	store   *manifest.Store
	cache   *cache.DiskCache
	catalog *catalog.Catalog
	manager *manager.Manager
}

// openProject loads the manifest in dir and builds its package catalog.
// workspace lists folders whose manifests may satisfy dependencies locally.
func (e *env) openProject(ctx context.Context, dir string, workspace []string, checkForUpdate bool) (*project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	store, err := manifest.Open(filepath.Join(abs, e.cfg.ManifestFile))
	if err != nil {
		return nil, err
	}

	pkgCache := cache.New(store.CacheDir(e.cfg.CacheDirName))

	packages, err := store.Packages(ctx, manifest.PackagesOptions{
		CheckForUpdate: checkForUpdate,
		CountryCode:    e.cfg.CountryCode,
		Cache:          pkgCache,
		Workspace:      manifest.LoadWorkspace(siblings(abs, workspace), e.cfg.ManifestFile),
		Enricher:       e.feeds,
	})
	if err != nil {
		return nil, err
	}

	cat := catalog.New(e.feeds)
	cat.Set(packages)

	return &project{
		dir:     abs,
		store:   store,
		cache:   pkgCache,
		catalog: cat,
		manager: manager.New(cat, e.feeds, e.registry, extractor.New(), pkgCache, store, e.journal,
			e.cfg.NormalizedCountryCode(), abs),
	}, nil
}

// siblings returns the absolute workspace folders other than self.
func siblings(self string, dirs []string) []string {
	var out []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil || abs == self {
			continue
		}
		out = append(out, abs)
	}
	return out
}
