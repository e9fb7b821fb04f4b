package regsync

import (
	"fmt"
	"net/url"
	"strings"
)

// Backends
const (
	BackendSkopeo = "skopeo"
	BackendCrane  = "crane"
)

// DefaultRetryTimes is the number of attempts the copy primitive makes per image.
const DefaultRetryTimes = 3

// Config holds the destination registry session and copier settings.
// It is read once at startup and never mutated afterwards.
type Config struct {
	Endpoint string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	Backend      string `mapstructure:"backend"`
	RetryTimes   int    `mapstructure:"retry_times"`
	SkopeoPath   string `mapstructure:"skopeo_path"`
	SkopeoTmpDir string `mapstructure:"skopeo_tmpdir"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Validate reports every required value that is absent.
func (c Config) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "registry username")
	}
	if c.Password == "" {
		missing = append(missing, "registry password")
	}
	if c.Endpoint == "" {
		missing = append(missing, "registry url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	switch c.Backend {
	case "", BackendSkopeo, BackendCrane:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSkopeo, BackendCrane)
	}
	if c.RetryTimes < 0 {
		return fmt.Errorf("retry times must not be negative, got %d", c.RetryTimes)
	}
	return nil
}

// RegistryURLFromProxy derives the registry endpoint served next to a
// cluster proxy: https://proxy.example.com becomes cr.proxy.example.com.
func RegistryURLFromProxy(proxyURL string) (string, error) {
	if !strings.Contains(proxyURL, "://") {
		proxyURL = "https://" + proxyURL
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("proxy url %q has no host", proxyURL)
	}
	return "cr." + u.Host, nil
}
