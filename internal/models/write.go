package models

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultAuthor is used when a write carries no author.
const DefaultAuthor = "ANONYMOUS"

// Field limits enforced by WriteRequest.Validate.
const (
	maxSpaceIDLen = 255
	maxFeatureLen = 1024
	maxAuthorLen  = 1024
	maxTagLen     = 255
)

// OnNotExists is the policy applied when the feature has no live head.
type OnNotExists string

// OnNotExists policies.
const (
	NotExistsCreate OnNotExists = "CREATE"
	NotExistsError  OnNotExists = "ERROR"
	NotExistsRetain OnNotExists = "RETAIN"
)

// OnExists is the policy applied when the feature has a live head and no
// version conflict was detected.
type OnExists string

// OnExists policies.
const (
	ExistsReplace OnExists = "REPLACE"
	ExistsDelete  OnExists = "DELETE"
	ExistsRetain  OnExists = "RETAIN"
	ExistsError   OnExists = "ERROR"
)

// OnVersionConflict is the policy applied when the caller's base version
// differs from the head version. The zero value means no policy was set.
type OnVersionConflict string

// OnVersionConflict policies. ConflictMerge is accepted but not resolvable.
const (
	ConflictError   OnVersionConflict = "ERROR"
	ConflictRetain  OnVersionConflict = "RETAIN"
	ConflictReplace OnVersionConflict = "REPLACE"
	ConflictMerge   OnVersionConflict = "MERGE"
)

// SpaceContext selects how composite spaces resolve reads. It is carried
// through the write path but resolved elsewhere.
type SpaceContext string

// Space contexts.
const (
	ContextDefault   SpaceContext = "DEFAULT"
	ContextSuper     SpaceContext = "SUPER"
	ContextExtension SpaceContext = "EXTENSION"
)

// ParseOnNotExists parses a policy name, case-insensitively.
func ParseOnNotExists(s string) (OnNotExists, error) {
	p := OnNotExists(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case NotExistsCreate, NotExistsError, NotExistsRetain:
		return p, nil
	}

	return "", fmt.Errorf("%w: unknown onNotExists %q", ErrIllegalArgument, s)
}

// ParseOnExists parses a policy name, case-insensitively.
func ParseOnExists(s string) (OnExists, error) {
	p := OnExists(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case ExistsReplace, ExistsDelete, ExistsRetain, ExistsError:
		return p, nil
	}

	return "", fmt.Errorf("%w: unknown onExists %q", ErrIllegalArgument, s)
}

// ParseOnVersionConflict parses a policy name, case-insensitively. An empty
// string yields the unset policy.
func ParseOnVersionConflict(s string) (OnVersionConflict, error) {
	p := OnVersionConflict(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "", ConflictError, ConflictRetain, ConflictReplace, ConflictMerge:
		return p, nil
	}

	return "", fmt.Errorf("%w: unknown onVersionConflict %q", ErrIllegalArgument, s)
}

// ParseSpaceContext parses a space context name, case-insensitively.
func ParseSpaceContext(s string) (SpaceContext, error) {
	c := SpaceContext(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ContextDefault, ContextSuper, ContextExtension:
		return c, nil
	}

	return "", fmt.Errorf("%w: unknown space context %q", ErrIllegalArgument, s)
}

// WriteRequest is one logical feature write.
type WriteRequest struct {
	SpaceID           string
	Feature           Feature
	Author            string
	OnNotExists       OnNotExists
	OnExists          OnExists
	OnVersionConflict OnVersionConflict
	// BaseVersion is the version the caller last saw. When nil, a version
	// found in the incoming namespace is used instead.
	BaseVersion  *int64
	Partial      bool
	SpaceContext SpaceContext
	AddTags      []string
	RemoveTags   []string
	// Delete marks the write as a deletion of the feature.
	Delete bool
}

// Normalize fills in defaults for unset policies and the author, and rewrites
// recognized policy names in canonical upper case. Unknown names are left
// for Validate to reject.
func (r *WriteRequest) Normalize() {
	if r.OnNotExists == "" {
		r.OnNotExists = NotExistsCreate
	}
	if r.OnExists == "" {
		r.OnExists = ExistsReplace
	}
	if r.SpaceContext == "" {
		r.SpaceContext = ContextDefault
	}
	if p, err := ParseOnNotExists(string(r.OnNotExists)); err == nil {
		r.OnNotExists = p
	}
	if p, err := ParseOnExists(string(r.OnExists)); err == nil {
		r.OnExists = p
	}
	if p, err := ParseOnVersionConflict(string(r.OnVersionConflict)); err == nil {
		r.OnVersionConflict = p
	}
	if c, err := ParseSpaceContext(string(r.SpaceContext)); err == nil {
		r.SpaceContext = c
	}
	if strings.TrimSpace(r.Author) == "" {
		r.Author = DefaultAuthor
	}
}

// Validate checks the request after Normalize.
func (r *WriteRequest) Validate() error {
	if r.SpaceID == "" {
		return ErrMissingSpaceID
	}
	if len(r.SpaceID) > maxSpaceIDLen {
		return ErrFieldTooLong("space id", maxSpaceIDLen)
	}
	if hasControl(r.SpaceID) {
		return fmt.Errorf("space id contains control characters")
	}

	if r.Feature.ID == "" {
		return ErrMissingID
	}
	if len(r.Feature.ID) > maxFeatureLen {
		return ErrFieldTooLong("id", maxFeatureLen)
	}
	if hasControl(r.Feature.ID) {
		return ErrInvalidID
	}

	if len(r.Author) > maxAuthorLen {
		return ErrFieldTooLong("author", maxAuthorLen)
	}

	if _, err := ParseOnNotExists(string(r.OnNotExists)); err != nil {
		return err
	}
	if _, err := ParseOnExists(string(r.OnExists)); err != nil {
		return err
	}
	if _, err := ParseOnVersionConflict(string(r.OnVersionConflict)); err != nil {
		return err
	}
	if _, err := ParseSpaceContext(string(r.SpaceContext)); err != nil {
		return err
	}

	if r.BaseVersion != nil && *r.BaseVersion < 0 {
		return fmt.Errorf("base version must not be negative")
	}

	for _, tags := range [][]string{r.AddTags, r.RemoveTags} {
		for _, t := range tags {
			if len(t) > maxTagLen {
				return ErrFieldTooLong("tag", maxTagLen)
			}
		}
	}

	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}
