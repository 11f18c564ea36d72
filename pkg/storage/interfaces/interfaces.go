package interfaces

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type ID = string

// Wildcard may only appear as the last character of a find pattern and
// matches every ID sharing the preceding prefix.
const Wildcard = "*"

var ErrInvalidPattern = errors.New("invalid id pattern")

type IStorageBackend interface {
	// Find returns every item whose ID matches pattern, see PatternRegexp.
	Find(ctx context.Context, pattern string) ([]Item, error)
	// Save upserts item by ID.
	Save(ctx context.Context, item Item) error
	Close(ctx context.Context) error
}

type Item interface {
	ID() ID
	Hash() string
	Data() string
}

type item struct {
	ID_   ID
	Hash_ string
	Data_ string
}

var _ Item = &item{}

func NewItem(id ID, hash string, data string) Item {
	return &item{ID_: id, Hash_: hash, Data_: data}
}

func (i *item) ID() ID {
	return i.ID_
}

func (i *item) Hash() string {
	return i.Hash_
}

func (i *item) Data() string {
	return i.Data_
}

// PatternRegexp translates a find pattern into an anchored regular
// expression. Everything apart from a trailing Wildcard is matched literally.
func PatternRegexp(pattern string) (string, error) {
	prefix, wildcard := strings.CutSuffix(pattern, Wildcard)
	if strings.Contains(prefix, Wildcard) {
		return "", fmt.Errorf("%w: %q, wildcard is only allowed at the end", ErrInvalidPattern, pattern)
	}

	if wildcard {
		return "^" + regexp.QuoteMeta(prefix) + ".*$", nil
	} else {
		return "^" + regexp.QuoteMeta(prefix) + "$", nil
	}
}

// CompilePattern is PatternRegexp for backends that match in process.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if expr, err := PatternRegexp(pattern); err != nil {
		return nil, err
	} else {
		return regexp.Compile(expr)
	}
}
