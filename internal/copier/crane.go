package copier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/sirupsen/logrus"
)

// Crane copies images in-process with go-containerregistry.
type Crane struct {
	opts     *Options
	keychain authn.Keychain
}

// NewCrane creates a native copier. Until Login is called it
// authenticates from the docker config keychain only.
func NewCrane(opts ...Option) *Crane {
	return &Crane{
		opts:     applyOptions(opts),
		keychain: authn.DefaultKeychain,
	}
}

// Login verifies the credentials against the registry and keeps them for
// every later Copy to that registry.
func (c *Crane) Login(ctx context.Context, endpoint, username, password string) error {
	reg, err := name.NewRegistry(registryHost(endpoint), c.nameOptions()...)
	if err != nil {
		return fmt.Errorf("invalid registry %q: %w", endpoint, err)
	}

	auth := authn.FromConfig(authn.AuthConfig{Username: username, Password: password})
	rt, err := transport.NewWithContext(ctx, reg, auth, c.transport(), nil)
	if err != nil {
		return fmt.Errorf("login %s: %w", reg.RegistryStr(), err)
	}

	// Basic auth registries only see the credentials on a real request.
	if err := checkAPI(ctx, reg, rt); err != nil {
		return fmt.Errorf("login %s: %w", reg.RegistryStr(), err)
	}

	c.keychain = newSessionKeychain(reg.RegistryStr(), username, password)
	return nil
}

// Copy copies src to dst, retrying up to RetryTimes attempts. Invalid
// references fail without retrying.
func (c *Crane) Copy(ctx context.Context, src, dst string) error {
	attempts := uint(c.opts.RetryTimes)
	return retry.Do(func() error {
		srcRef, err := c.parse(src)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		dstRef, err := c.parse(dst)
		if err != nil {
			return retry.Unrecoverable(err)
		}
		return crane.Copy(srcRef, dstRef, c.craneOptions(ctx)...)
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logrus.WithError(err).WithFields(logrus.Fields{
				"source":      src,
				"destination": dst,
				"attempt":     n + 1,
				"attempts":    attempts,
			}).Warn("Copy attempt failed")
		}),
	)
}

func (c *Crane) parse(ref string) (string, error) {
	r, err := registryRef(ref)
	if err != nil {
		return "", err
	}
	if _, err := name.ParseReference(r, c.nameOptions()...); err != nil {
		return "", fmt.Errorf("invalid image ref %q: %w", ref, err)
	}
	return r, nil
}

func (c *Crane) craneOptions(ctx context.Context) []crane.Option {
	options := []crane.Option{
		crane.WithContext(ctx),
		crane.WithAuthFromKeychain(c.keychain),
		crane.WithTransport(c.transport()),
		crane.WithUserAgent(c.opts.UserAgent),
	}
	if c.opts.Insecure {
		options = append(options, crane.Insecure)
	}
	return options
}

func (c *Crane) nameOptions() []name.Option {
	if c.opts.Insecure {
		return []name.Option{name.Insecure}
	}
	return nil
}

func (c *Crane) transport() http.RoundTripper {
	t := remote.DefaultTransport.(*http.Transport).Clone()
	if c.opts.Insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test registries
	}
	return t
}

// checkAPI sends an authenticated GET /v2/ through rt.
func checkAPI(ctx context.Context, reg name.Registry, rt http.RoundTripper) error {
	u := url.URL{Scheme: reg.Scheme(), Host: reg.RegistryStr(), Path: "/v2/"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Transport: rt}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return transport.CheckError(resp, http.StatusOK)
}

// registryHost accepts an endpoint with or without scheme and path.
func registryHost(endpoint string) string {
	host := endpoint
	for _, scheme := range []string{"https://", "http://"} {
		host = strings.TrimPrefix(host, scheme)
	}
	if i := strings.Index(host, "/"); i >= 0 {
		host = host[:i]
	}
	return host
}
