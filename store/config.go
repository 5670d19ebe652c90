package store

import "log/slog"

// IDPolicy selects how the next record id is derived.
type IDPolicy int

const (
	// IDPolicyMax assigns the largest id in the table plus one.
	IDPolicyMax IDPolicy = iota

	// IDPolicyLast assigns the id of the last record in table order plus
	// one. After a non-tail record is removed or an update appends an
	// explicit id, this can differ from IDPolicyMax; allocation then fails
	// with ErrIndexAllocation rather than reuse an id. Only for stores that
	// must keep legacy numbering.
	IDPolicyLast
)

func (p IDPolicy) String() string {
	switch p {
	case IDPolicyMax:
		return "max"
	case IDPolicyLast:
		return "last"
	default:
		return "unknown"
	}
}

// Config holds configuration for the Store.
type Config struct {
	// KeyPrefix is prepended to every table name to form its key in the
	// key-value store.
	// Default: "" (table names are used as keys)
	KeyPrefix string

	// IDPolicy selects id allocation.
	// Default: IDPolicyMax
	IDPolicy IDPolicy

	// LockStripes is the number of mutexes that mutating operations are
	// spread over, by table name.
	// Default: 32
	// Max: 256
	LockStripes int

	// Logger receives operational logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		IDPolicy:    IDPolicyMax,
		LockStripes: 32,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.IDPolicy != IDPolicyMax && c.IDPolicy != IDPolicyLast {
		c.IDPolicy = IDPolicyMax
	}
	if c.LockStripes < 1 {
		c.LockStripes = 32
	}
	if c.LockStripes > 256 {
		c.LockStripes = 256
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
