package embedding

import (
	"github.com/Adithya-Monish-Kumar-K/context-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/context-search/pkg/errors"
)

// Source says where a model's vectors come from. The set of variants is
// closed: LocalFile and Remote.
type Source interface {
	isSource()
}

// LocalFile is a model stored as an .npz container on disk.
type LocalFile struct {
	Path string
}

// Remote is a model restricted from a pretrained provider's vectors.
type Remote struct {
	Provider Provider
}

func (LocalFile) isSource() {}
func (Remote) isSource()    {}

// Catalog is the static set of model names and their sources.
type Catalog struct {
	names      []string
	local      map[string]LocalFile
	remoteName string
	provider   Provider
}

// NewCatalog registers local models in configured order. remoteName is
// always recognised; it is only offered when provider is non-nil.
func NewCatalog(local []config.LocalModel, remoteName string, provider Provider) *Catalog {
	c := &Catalog{
		local:      make(map[string]LocalFile, len(local)),
		remoteName: remoteName,
		provider:   provider,
	}
	for _, m := range local {
		c.names = append(c.names, m.Name)
		c.local[m.Name] = LocalFile{Path: m.Path}
	}
	if provider != nil && remoteName != "" {
		c.names = append(c.names, remoteName)
	}
	return c
}

// Names lists the models available for search: local models in configured
// order, then the remote model when its provider is present.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// HasRemote reports whether the remote-vector capability was detected.
func (c *Catalog) HasRemote() bool {
	return c.provider != nil
}

// Resolve maps a model name to its source.
func (c *Catalog) Resolve(name string) (Source, error) {
	if src, ok := c.local[name]; ok {
		return src, nil
	}
	if name != "" && name == c.remoteName {
		if c.provider == nil {
			return nil, apperrors.Of(apperrors.ErrProviderUnavailable,
				"remote vectors for %q are not available in this environment", name)
		}
		return Remote{Provider: c.provider}, nil
	}
	return nil, apperrors.Of(apperrors.ErrUnknownModel, "Unknown model: %s", name)
}
