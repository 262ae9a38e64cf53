// Package config defaults and validates the index-creation-time
// parameters a host database would normally hand in through its own
// reloptions mechanism (the Go-native analog of the original's
// TOML-encoded options string).
package config

// Options bundles the tuning parameters fixed at index-creation time:
// the BM25 k1/b constants, the growing segment's full-page threshold
// before a seal is attempted, and the page size backing every store.
type Options struct {
	K1 float32
	B  float32

	// GrowingSegmentMaxPageCount is the number of full pages the
	// growing segment may accumulate before an insert signals it is
	// ready to be sealed.
	GrowingSegmentMaxPageCount uint32

	// PageSize is the fixed page size in bytes every store in the
	// index is built on top of.
	PageSize uint32
}

const (
	defaultK1       float32 = 1.2
	defaultB        float32 = 0.75
	defaultMaxPages uint32  = 4096
	defaultPageSize uint32  = 8192
	minPageSize     uint32  = 512
)

// Default returns the options a freshly created index uses absent any
// host-supplied overrides.
func Default() Options {
	return Options{
		K1:                         defaultK1,
		B:                          defaultB,
		GrowingSegmentMaxPageCount: defaultMaxPages,
		PageSize:                   defaultPageSize,
	}
}

// Validate fills in zero-valued fields with their defaults and rejects
// out-of-range ones.
func (o Options) Validate() (Options, error) {
	if o.K1 == 0 {
		o.K1 = defaultK1
	}
	if o.K1 < 0 {
		return Options{}, errInvalid("k1 must be non-negative")
	}
	if o.B == 0 {
		o.B = defaultB
	}
	if o.B < 0 || o.B > 1 {
		return Options{}, errInvalid("b must be in [0, 1]")
	}
	if o.GrowingSegmentMaxPageCount == 0 {
		o.GrowingSegmentMaxPageCount = defaultMaxPages
	}
	if o.PageSize == 0 {
		o.PageSize = defaultPageSize
	}
	if o.PageSize < minPageSize || o.PageSize%minPageSize != 0 {
		return Options{}, errInvalid("page size must be a multiple of 512 bytes")
	}
	return o, nil
}

type configError string

func (e configError) Error() string { return "config: " + string(e) }

func errInvalid(msg string) error { return configError(msg) }
