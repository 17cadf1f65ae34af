package store

import (
	"time"

	"github.com/mshaverdo/assert"
)

//go:generate stringer -type=Kind
type Kind int

const (
	String Kind = iota
	List
)

// Entry is the stored representation of one key's value: either a String
// with an optional expiration, or a List. A single Entry never carries both.
type Entry struct {
	kind Kind
	str  string
	list []string

	// expiresAt is the absolute deadline past which a String Entry is
	// semantically absent. Zero means no expiration. Lists never expire.
	expiresAt time.Time
}

// NewStringEntry constructs a String Entry. A zero expiresAt means no TTL.
func NewStringEntry(value string, expiresAt time.Time) *Entry {
	return &Entry{kind: String, str: value, expiresAt: expiresAt}
}

// NewListEntry constructs a List Entry from an initial element slice.
func NewListEntry(values []string) *Entry {
	return &Entry{kind: List, list: values}
}

func (e *Entry) Kind() Kind {
	return e.kind
}

// Str returns the String payload. Calling it on a List Entry is a programming
// error: command dispatch must never reach a value accessor without having
// checked Kind() first, so this panics rather than returning a zero value.
func (e *Entry) Str() string {
	assert.True(e.kind == String, "store: Str() called on a non-String Entry")
	return e.str
}

// List returns the List payload, in insertion order. Same invariant as Str.
func (e *Entry) List() []string {
	assert.True(e.kind == List, "store: List() called on a non-List Entry")
	return e.list
}

// hasExpiry reports whether this Entry carries a TTL at all.
func (e *Entry) hasExpiry() bool {
	return !e.expiresAt.IsZero()
}

// expired reports whether this Entry's TTL has elapsed as of now.
func (e *Entry) expired(now time.Time) bool {
	return e.hasExpiry() && now.After(e.expiresAt)
}
