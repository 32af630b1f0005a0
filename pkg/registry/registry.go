// Package registry manages named connection profiles loaded from a
// JSON file.
//
// Profiles carry everything a descriptor needs except secret material:
// credentials stay an opaque reference resolved by an external
// collaborator at descriptor-build time. The registry never persists
// or logs secrets.
package registry

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/unisql-project/unisql/pkg/dialect"
	"github.com/unisql-project/unisql/pkg/errors"
	"github.com/unisql-project/unisql/pkg/log"
)

// Profile is one named connection target as stored on disk.
type Profile struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`

	// CredentialRef is an opaque handle understood by the credential
	// collaborator. Never a raw secret.
	CredentialRef string `json:"credential_ref,omitempty"`

	MaxPoolSize int               `json:"max_pool_size,omitempty"`
	MinPoolSize int               `json:"min_pool_size,omitempty"`
	FailFast    bool              `json:"fail_fast,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// Resolver exchanges an opaque credential reference for a resolved
// bundle.
type Resolver func(ref string) (dialect.Credentials, error)

// EnvResolver resolves a credential reference as the name of an
// environment variable holding "user:secret". It is the default when
// no external resolver is installed.
func EnvResolver(ref string) (dialect.Credentials, error) {
	if ref == "" {
		return dialect.Credentials{}, nil
	}
	raw := os.Getenv(ref)
	if raw == "" {
		return dialect.Credentials{}, errors.Newf(errors.KindConnection, errors.CodeConfigMissing,
			"credential reference %q is not set", ref)
	}
	user, secret, found := strings.Cut(raw, ":")
	if !found {
		return dialect.Credentials{User: user}, nil
	}
	return dialect.Credentials{User: user, Secret: secret}, nil
}

// Registry holds the loaded profiles.
type Registry struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]Profile
	resolver Resolver
	logger   *log.Logger
}

// Load reads profiles from the given JSON file. The file holds an
// array of Profile objects.
func Load(path string, logger *log.Logger) (*Registry, error) {
	if logger == nil {
		logger = log.Discard()
	}
	r := &Registry{
		path:     path,
		profiles: make(map[string]Profile),
		resolver: EnvResolver,
		logger:   logger,
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetResolver installs the credential collaborator.
func (r *Registry) SetResolver(fn Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn != nil {
		r.resolver = fn
	}
}

// Reload re-reads the profile file, replacing the prior set wholesale.
func (r *Registry) Reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return errors.Wrapf(err, errors.KindConnection, errors.CodeConfigMissing,
			"reading profiles from %s", r.path)
	}

	var list []Profile
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.Wrapf(err, errors.KindConnection, errors.CodeConfigParse,
			"parsing profiles from %s", r.path)
	}

	profiles := make(map[string]Profile, len(list))
	for _, p := range list {
		if p.Name == "" {
			return errors.New(errors.KindConnection, errors.CodeConfigInvalid,
				"profile with empty name")
		}
		if _, err := dialect.For(dialect.Kind(p.Kind)); err != nil {
			return errors.Newf(errors.KindConnection, errors.CodeConfigInvalid,
				"profile %q: unsupported backend kind %q", p.Name, p.Kind)
		}
		profiles[p.Name] = p
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()

	r.logger.Info(log.CategorySystem, "profiles loaded",
		"path", r.path, "count", len(profiles))
	return nil
}

// Names returns the loaded profile names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}

// Descriptor builds a connection descriptor for the named profile,
// resolving its credential reference through the installed resolver.
func (r *Registry) Descriptor(name string) (dialect.Descriptor, error) {
	r.mu.RLock()
	p, ok := r.profiles[name]
	resolve := r.resolver
	r.mu.RUnlock()

	if !ok {
		return dialect.Descriptor{}, errors.Newf(errors.KindConnection, errors.CodeConfigMissing,
			"unknown profile: %s", name)
	}

	creds, err := resolve(p.CredentialRef)
	if err != nil {
		return dialect.Descriptor{}, err
	}

	return dialect.Descriptor{
		Kind:        dialect.Kind(p.Kind),
		Host:        p.Host,
		Port:        p.Port,
		Database:    p.Database,
		Credentials: creds,
		MaxPoolSize: p.MaxPoolSize,
		MinPoolSize: p.MinPoolSize,
		FailFast:    p.FailFast,
		Params:      p.Params,
	}, nil
}
