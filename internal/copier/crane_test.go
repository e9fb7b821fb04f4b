package copier

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/registry"
	"github.com/google/go-containerregistry/pkg/v1/random"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRegistry serves an in-memory registry and counts manifest requests
// per repository.
type testRegistry struct {
	host      string
	manifests sync.Map
}

func newTestRegistry(t *testing.T) *testRegistry {
	t.Helper()
	tr := &testRegistry{}
	handler := registry.New(registry.Logger(log.New(io.Discard, "", 0)))

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if repo, _, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/v2/"), "/manifests/"); ok {
			n, _ := tr.manifests.LoadOrStore(repo, new(atomic.Int32))
			n.(*atomic.Int32).Add(1)
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)

	tr.host = strings.TrimPrefix(s.URL, "http://")
	return tr
}

func (tr *testRegistry) manifestRequests(repo string) int {
	n, ok := tr.manifests.Load(repo)
	if !ok {
		return 0
	}
	return int(n.(*atomic.Int32).Load())
}

func quietCrane(opts ...Option) *Crane {
	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	return NewCrane(opts...)
}

func TestCraneCopy(t *testing.T) {
	reg := newTestRegistry(t)
	img, err := random.Image(1024, 2)
	require.NoError(t, err)

	src := reg.host + "/src/img:1"
	require.NoError(t, crane.Push(img, src))

	c := quietCrane()
	require.NoError(t, c.Copy(context.Background(), "docker://"+src, reg.host+"/dst/img:1"))

	want, err := img.Digest()
	require.NoError(t, err)
	got, err := crane.Digest(reg.host + "/dst/img:1")
	require.NoError(t, err)
	assert.Equal(t, want.String(), got)
}

func TestCraneCopyRetriesThenFails(t *testing.T) {
	reg := newTestRegistry(t)

	c := quietCrane(WithRetryTimes(2))
	err := c.Copy(context.Background(), reg.host+"/src/missing:1", reg.host+"/dst/missing:1")
	require.Error(t, err)
	assert.Equal(t, 2, reg.manifestRequests("src/missing"))
}

func TestCraneCopyInvalidRefIsNotRetried(t *testing.T) {
	reg := newTestRegistry(t)

	tests := map[string]struct{ src, dst string }{
		"bad repository": {src: reg.host + "/Src/UPPER:1", dst: reg.host + "/dst/img:1"},
		"other transport": {src: "oci:///tmp/layout", dst: reg.host + "/dst/img:1"},
		"bad destination": {src: reg.host + "/src/img:1", dst: "docker://" + reg.host + "/dst/img:@@"},
	}
	for desc, tt := range tests {
		t.Run(desc, func(t *testing.T) {
			err := quietCrane().Copy(context.Background(), tt.src, tt.dst)
			require.Error(t, err)
			assert.Zero(t, reg.manifestRequests("src/img"))
		})
	}
}

func TestCraneLogin(t *testing.T) {
	reg := newTestRegistry(t)

	c := quietCrane()
	require.NoError(t, c.Login(context.Background(), "http://"+reg.host+"/", "robot", "s3cret"))

	repo, err := name.NewRepository(reg.host + "/dst/img")
	require.NoError(t, err)
	auth, err := c.keychain.Resolve(repo)
	require.NoError(t, err)
	cfg, err := auth.Authorization()
	require.NoError(t, err)
	assert.Equal(t, "robot", cfg.Username)
	assert.Equal(t, "s3cret", cfg.Password)
}

func TestCraneLoginRejected(t *testing.T) {
	var realm string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/":
			w.Header().Set("WWW-Authenticate", `Bearer realm="`+realm+`",service="test"`)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer s.Close()
	realm = s.URL + "/token"

	c := quietCrane()
	err := c.Login(context.Background(), s.URL, "robot", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login")
}

func TestCraneLoginBasicAuth(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); ok && user == "robot" && pass == "s3cret" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="test"`)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer s.Close()

	tests := []struct {
		password string
		wantErr  bool
	}{
		{password: "s3cret"},
		{password: "wrong", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			c := quietCrane()
			err := c.Login(context.Background(), s.URL, "robot", tt.password)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "login")
			assert.Equal(t, authn.DefaultKeychain, c.keychain)
		})
	}
}

func TestRegistryHost(t *testing.T) {
	tests := map[string]string{
		"cr.example.com":                 "cr.example.com",
		"https://cr.example.com":         "cr.example.com",
		"http://localhost:5000/v2/":      "localhost:5000",
		"cr.example.com:443/some/prefix": "cr.example.com:443",
	}
	for in, want := range tests {
		assert.Equal(t, want, registryHost(in), in)
	}
}

func TestRegistryRef(t *testing.T) {
	ref, err := registryRef("docker://src/img:1")
	require.NoError(t, err)
	assert.Equal(t, "src/img:1", ref)

	ref, err = registryRef("src/img:1")
	require.NoError(t, err)
	assert.Equal(t, "src/img:1", ref)

	_, err = registryRef("containers-storage://img")
	assert.Error(t, err)
}
