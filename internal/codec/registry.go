package codec

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Registry resolves a codec by file extension. When two codecs claim the
// same extension the last one registered wins, matching spec §4.1.
type Registry struct {
	byExt  map[string]Codec
	logger zerolog.Logger
}

// NewRegistry builds a registry from an ordered codec list.
func NewRegistry(logger zerolog.Logger, codecs ...Codec) *Registry {
	r := &Registry{byExt: make(map[string]Codec), logger: logger}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register adds a codec, warning when it displaces an existing claim.
func (r *Registry) Register(c Codec) {
	for _, ext := range c.Extensions() {
		ext = strings.ToLower(ext)
		if existing, ok := r.byExt[ext]; ok && existing.Name() != c.Name() {
			r.logger.Warn().
				Str("extension", ext).
				Str("previous_codec", existing.Name()).
				Str("new_codec", c.Name()).
				Msg("codec registration overrides an existing extension claim")
		}
		r.byExt[ext] = c
	}
}

// Extensions returns every known extension, sorted, for error reporting.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// extOf strips a file path down to its final extension, lowercased and
// without the leading dot.
func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	return strings.ToLower(path[i+1:])
}

// Resolve finds the codec for a file path. override, if non-empty, takes
// the extension from that string instead of path (spec's per-collection
// `format` config option).
func (r *Registry) Resolve(path string, override string) (Codec, error) {
	ext := extOf(path)
	if override != "" {
		ext = strings.ToLower(strings.TrimPrefix(override, "."))
	}
	if ext == "" {
		return nil, &UnsupportedFormatError{Ext: ext, Supported: r.Extensions()}
	}
	c, ok := r.byExt[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext, Supported: r.Extensions()}
	}
	return c, nil
}

// Default builds the registry with every format the database ships,
// per spec §4.1/§6.
func Default(logger zerolog.Logger) *Registry {
	return NewRegistry(logger,
		JSONCodec{},
		JSONLCodec{},
		YAMLCodec{},
		TOMLCodec{},
		JSON5Codec{},
		JSONCCodec{},
		HjsonCodec{},
		TOONCodec{},
		&ProseCodec{},
	)
}
