// Package copier implements the image copy primitive and registry login.
//
// Two backends share the same contract:
// - Skopeo execs the skopeo binary, which retries internally (--retry-times)
// - Crane copies natively with go-containerregistry and retries in-process
//
// Both return a non-nil error only after the retry budget is exhausted.
package copier

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	DefaultRetryTimes = 3
	DefaultRetryDelay = 500 * time.Millisecond

	dockerTransport = "docker://"
)

// Options configures both backends. Backend specific fields are ignored
// by the other backend.
type Options struct {
	RetryTimes int
	RetryDelay time.Duration
	Stdout     io.Writer
	Stderr     io.Writer

	// skopeo
	Path   string
	TmpDir string

	// crane
	Insecure  bool
	UserAgent string
}

// Option is a functional option for configuring a copier.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		RetryTimes: DefaultRetryTimes,
		RetryDelay: DefaultRetryDelay,
		Stdout:     os.Stderr,
		Stderr:     os.Stderr,
		Path:       "skopeo",
		UserAgent:  "regsync",
	}
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRetryTimes sets the number of attempts per copy.
func WithRetryTimes(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.RetryTimes = n
		}
	}
}

// WithRetryDelay sets the base delay between attempts (crane only).
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithOutput sets where the copy tool's own output goes. Both default
// to os.Stderr so it never mixes with the record stream.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		if stdout != nil {
			o.Stdout = stdout
		}
		if stderr != nil {
			o.Stderr = stderr
		}
	}
}

// WithSkopeoPath sets the skopeo executable.
func WithSkopeoPath(path string) Option {
	return func(o *Options) {
		if path != "" {
			o.Path = path
		}
	}
}

// WithTmpDir sets skopeo's --tmpdir.
func WithTmpDir(dir string) Option {
	return func(o *Options) { o.TmpDir = dir }
}

// WithInsecure allows plain http and unverified TLS (crane only).
func WithInsecure(insecure bool) Option {
	return func(o *Options) { o.Insecure = insecure }
}

// WithUserAgent sets the user agent sent to registries (crane only).
func WithUserAgent(ua string) Option {
	return func(o *Options) {
		if ua != "" {
			o.UserAgent = ua
		}
	}
}

// transportRef returns ref with a transport prefix, defaulting to docker://.
func transportRef(ref string) string {
	if strings.Contains(ref, "://") {
		return ref
	}
	return dockerTransport + ref
}

// registryRef strips the docker:// transport. Other transports are not
// registry references.
func registryRef(ref string) (string, error) {
	if rest, ok := strings.CutPrefix(ref, dockerTransport); ok {
		return rest, nil
	}
	if i := strings.Index(ref, "://"); i >= 0 {
		return "", fmt.Errorf("unsupported transport %q in %q", ref[:i], ref)
	}
	return ref, nil
}
