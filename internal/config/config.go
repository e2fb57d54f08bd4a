package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/365businessdev/alget/internal/domain"
	"github.com/BurntSushi/toml"
	"github.com/drone/envsubst"
)

// Well-known feeds.
const (
	MSSymbolsName        = "MS Symbols"
	MSSymbolsURL         = "https://dynamicssmb2.pkgs.visualstudio.com/DynamicsBCPublicFeeds/_packaging/MSSymbols/nuget/v3/index.json"
	MSAppsName           = "MS Apps"
	MSAppsURL            = "https://dynamicssmb2.pkgs.visualstudio.com/DynamicsBCPublicFeeds/_packaging/MSApps/nuget/v3/index.json"
	AppSourceSymbolsName = "AppSource Symbols"
	AppSourceSymbolsURL  = "https://dynamicssmb2.pkgs.visualstudio.com/DynamicsBCPublicFeeds/_packaging/AppSourceSymbols/nuget/v3/index.json"
)

type Config struct {
	CountryCode  string        `toml:"country_code"`
	CacheDirName string        `toml:"cache_dir_name"`
	ManifestFile string        `toml:"manifest_file"`
	StateFile    string        `toml:"state_file"`
	FeedCacheDir string        `toml:"feed_cache_dir"`
	FeedCacheTTL time.Duration `toml:"feed_cache_ttl"`
	Timeout      time.Duration `toml:"timeout"`
	MaxParallel  int           `toml:"max_parallel"`
	LogLevel     string        `toml:"log_level"`
	Feeds        Feeds         `toml:"feeds"`
	CustomFeeds  []CustomFeed  `toml:"custom_feeds"`
}

type Feeds struct {
	MSSymbols        bool `toml:"ms_symbols"`
	MSApps           bool `toml:"ms_apps"`
	AppSourceSymbols bool `toml:"appsource_symbols"`
	PreferApps       bool `toml:"prefer_apps"`
}

type CustomFeed struct {
	Name            string `toml:"name"`
	URL             string `toml:"url"`
	PackageIDSchema string `toml:"package_id_schema,omitempty"`
	AuthToken       string `toml:"auth_token,omitempty"`
	APIKey          string `toml:"api_key,omitempty"`
}

func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".alget"
	}
	return filepath.Join(home, ".alget")
}

func DefaultPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

func DefaultConfig() *Config {
	base := BaseDir()

	return &Config{
		CountryCode:  "W1",
		CacheDirName: ".alpackages",
		ManifestFile: "app.json",
		StateFile:    filepath.Join(base, "state.db"),
		FeedCacheDir: filepath.Join(base, "cache"),
		FeedCacheTTL: 10 * time.Minute,
		Timeout:      5 * time.Minute,
		MaxParallel:  4,
		LogLevel:     "info",
		Feeds: Feeds{
			MSSymbols:        true,
			MSApps:           false,
			AppSourceSymbols: true,
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return cfg, nil
}

func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// NormalizedCountryCode is the upper-cased country code with W1 mapped to "".
func (c *Config) NormalizedCountryCode() string {
	return domain.NormalizeCountryCode(c.CountryCode)
}

// Sources holds the well-known feeds and the user's custom feeds. The
// Use* flags only govern catalog listing; metadata lookups always consult
// MS Symbols and AppSource Symbols.
type Sources struct {
	MSSymbols        domain.PackageSource
	MSApps           domain.PackageSource
	AppSourceSymbols domain.PackageSource
	UseMSSymbols     bool
	UseMSApps        bool
	UseAppSource     bool
	PreferApps       bool
	Custom           []domain.PackageSource
}

// Microsoft returns the Microsoft feeds for metadata lookups, MS Apps first
// when preferred.
func (s Sources) Microsoft() []domain.PackageSource {
	if !s.UseMSApps {
		return []domain.PackageSource{s.MSSymbols}
	}
	if s.PreferApps {
		return []domain.PackageSource{s.MSApps, s.MSSymbols}
	}
	return []domain.PackageSource{s.MSSymbols, s.MSApps}
}

// Catalog lists the enabled feeds in catalog load order.
func (s Sources) Catalog() []domain.PackageSource {
	var out []domain.PackageSource
	for _, src := range s.Microsoft() {
		if src.Name == MSSymbolsName && !s.UseMSSymbols {
			continue
		}
		out = append(out, src)
	}
	if s.UseAppSource {
		out = append(out, s.AppSourceSymbols)
	}
	return append(out, s.Custom...)
}

func (s Sources) IsMicrosoft(src domain.PackageSource) bool {
	return src.URL == s.MSSymbols.URL || src.URL == s.MSApps.URL
}

func (c *Config) Sources() (Sources, error) {
	s := Sources{
		MSSymbols:        domain.PackageSource{Name: MSSymbolsName, URL: MSSymbolsURL},
		MSApps:           domain.PackageSource{Name: MSAppsName, URL: MSAppsURL},
		AppSourceSymbols: domain.PackageSource{Name: AppSourceSymbolsName, URL: AppSourceSymbolsURL},
		UseMSSymbols:     c.Feeds.MSSymbols,
		UseMSApps:        c.Feeds.MSApps,
		UseAppSource:     c.Feeds.AppSourceSymbols,
		PreferApps:       c.Feeds.PreferApps,
	}

	for _, f := range c.CustomFeeds {
		header, err := f.authHeader()
		if err != nil {
			return Sources{}, fmt.Errorf("feed %q: %w", f.Name, err)
		}
		s.Custom = append(s.Custom, domain.PackageSource{
			Name:            f.Name,
			URL:             f.URL,
			PackageIDSchema: f.PackageIDSchema,
			AuthHeader:      header,
		})
	}
	return s, nil
}

// authHeader expands ${VAR} references. An api key is sent as a Basic
// credential with an empty user name; a token is sent as-is.
func (f CustomFeed) authHeader() (string, error) {
	if f.APIKey != "" {
		key, err := envsubst.EvalEnv(f.APIKey)
		if err != nil {
			return "", err
		}
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+key)), nil
	}
	if f.AuthToken != "" {
		return envsubst.EvalEnv(f.AuthToken)
	}
	return "", nil
}
