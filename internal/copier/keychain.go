package copier

import (
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
)

// sessionKeychain serves the login credentials for one registry host and
// defers to the docker config keychain for every other host.
type sessionKeychain struct {
	registry string
	auth     authn.Authenticator
}

func newSessionKeychain(registry, username, password string) authn.Keychain {
	return authn.NewMultiKeychain(
		&sessionKeychain{
			registry: registry,
			auth: authn.FromConfig(authn.AuthConfig{
				Username: username,
				Password: password,
			}),
		},
		authn.DefaultKeychain,
	)
}

func (k *sessionKeychain) Resolve(r authn.Resource) (authn.Authenticator, error) {
	if strings.EqualFold(r.RegistryStr(), k.registry) {
		return k.auth, nil
	}
	return authn.Anonymous, nil
}
