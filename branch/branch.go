// Package branch encodes session tree paths into opaque branch ids.
//
// A path is the ordered triple (user_id, client_id, grant_id). Any prefix of
// it addresses a higher level of the tree: (user_id) is the user level,
// (user_id, client_id) the client level. Branch ids are authenticated
// encryptions of the joined path so callers never handle raw identifiers.
package branch

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-oidc-sessions/internal/crypt"
	errs "github.com/jrsteele09/go-oidc-sessions/internal/errors"
)

// Divider separates path segments inside keys and branch ids.
const Divider = ";;"

// MaxDepth is the number of levels in the session tree.
const MaxDepth = 3

var (
	ErrInvalidBranchID = errs.ErrInvalidBranchID
	ErrConfiguration   = errs.ErrConfiguration
)

// Level names a depth in the session tree.
type Level int

const (
	LevelUser   Level = 1
	LevelClient Level = 2
	LevelGrant  Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelUser:
		return "user"
	case LevelClient:
		return "client"
	case LevelGrant:
		return "grant"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Path is a full or partial (user, client, grant) path.
type Path []string

// ParseKey splits a raw tree key such as "diana;;client_1" into a Path.
func ParseKey(key string) Path {
	if key == "" {
		return Path{}
	}
	return Path(strings.Split(key, Divider))
}

// Key joins the path into the raw key used inside the tree.
func (p Path) Key() string {
	return strings.Join(p, Divider)
}

// Depth returns the level addressed by the path.
func (p Path) Depth() Level {
	return Level(len(p))
}

func (p Path) segment(i int) string {
	if len(p) > i {
		return p[i]
	}
	return ""
}

func (p Path) User() string   { return p.segment(0) }
func (p Path) Client() string { return p.segment(1) }
func (p Path) Grant() string  { return p.segment(2) }

// Prefix returns the path truncated to level l.
func (p Path) Prefix(l Level) Path {
	if int(l) >= len(p) {
		return p
	}
	return p[:l]
}

// Validate checks that the path has between one and three non empty
// segments, none of which contains the divider.
func (p Path) Validate() error {
	if len(p) == 0 || len(p) > MaxDepth {
		return fmt.Errorf("%w: path must have 1 to %d segments, got %d", ErrConfiguration, MaxDepth, len(p))
	}
	for _, s := range p {
		if s == "" {
			return fmt.Errorf("%w: empty path segment", ErrConfiguration)
		}
		if strings.Contains(s, Divider) {
			return fmt.Errorf("%w: path segment %q contains %q", ErrConfiguration, s, Divider)
		}
	}
	return nil
}

// Equal reports whether both paths have the same segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Codec turns paths into branch ids and back.
type Codec struct {
	crypter *crypt.Crypter
}

// NewCodec creates a codec keyed by secret.
func NewCodec(secret []byte) (*Codec, error) {
	c, err := crypt.New(secret, "branch-id")
	if err != nil {
		return nil, errs.Wrapf(ErrConfiguration, "branch codec: %v", err)
	}
	return &Codec{crypter: c}, nil
}

// Encode returns a branch id for the path. The encoding is randomised, so two
// calls with the same path return different ids that decode to the same path.
func (c *Codec) Encode(path ...string) (string, error) {
	p := Path(path)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return c.crypter.Seal([]byte(p.Key()))
}

// Decode recovers the path from a branch id produced by Encode.
func (c *Codec) Decode(branchID string) (Path, error) {
	if branchID == "" {
		return nil, ErrInvalidBranchID
	}
	raw, err := c.crypter.Open(branchID)
	if err != nil {
		return nil, ErrInvalidBranchID
	}
	p := ParseKey(string(raw))
	if err := p.Validate(); err != nil {
		return nil, ErrInvalidBranchID
	}
	return p, nil
}
