// Package conflict decides what a write does when it meets an existing
// feature or a caller-declared base version.
package conflict

import (
	"github.com/persistorai/spacestore/internal/models"
)

// Disposition is the outcome of conflict resolution for a write that did
// not fail.
type Disposition int

// Dispositions.
const (
	Retain Disposition = iota
	Insert
	Update
	Delete
)

func (d Disposition) String() string {
	switch d {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "retain"
	}
}

// Proceeds reports whether the disposition writes a new version.
func (d Disposition) Proceeds() bool { return d != Retain }

// Input is everything the resolver looks at.
type Input struct {
	// HeadExists is true when a live (non-tombstone) head exists.
	HeadExists        bool
	HeadVersion       int64
	BaseVersion       *int64
	OnNotExists       models.OnNotExists
	OnExists          models.OnExists
	OnVersionConflict models.OnVersionConflict
	// DeleteIntent marks an incoming deletion, honored by the replace paths.
	DeleteIntent bool
}

// Conflict reports whether in declares a base version that differs from
// the head version. Without a base version there is never a conflict.
func (in Input) Conflict() bool {
	return in.BaseVersion != nil && *in.BaseVersion != in.HeadVersion
}

// Resolve applies the decision matrix. Failures are returned as
// *models.WriteError carrying the code only; the caller fills in the
// feature identity.
func Resolve(in Input) (Disposition, error) {
	if in.OnVersionConflict != "" && in.BaseVersion == nil {
		return Retain, &models.WriteError{
			Code:    models.CodeIllegalArgument,
			Message: "onVersionConflict requires a base version",
		}
	}

	if !in.HeadExists {
		return resolveNotExists(in)
	}

	if !in.Conflict() {
		return resolveExists(in)
	}

	return resolveConflict(in)
}

func resolveNotExists(in Input) (Disposition, error) {
	switch in.OnNotExists {
	case models.NotExistsError:
		return Retain, &models.WriteError{Code: models.CodeFeatureNotExists}
	case models.NotExistsRetain:
		return Retain, nil
	default:
		if in.DeleteIntent {
			// Nothing to delete.
			return Retain, nil
		}
		return Insert, nil
	}
}

func resolveExists(in Input) (Disposition, error) {
	switch in.OnExists {
	case models.ExistsDelete:
		return Delete, nil
	case models.ExistsRetain:
		return Retain, nil
	case models.ExistsError:
		return Retain, &models.WriteError{Code: models.CodeFeatureExists}
	default:
		return replace(in), nil
	}
}

func resolveConflict(in Input) (Disposition, error) {
	switch in.OnVersionConflict {
	case models.ConflictRetain:
		return Retain, nil
	case models.ConflictReplace:
		return replace(in), nil
	case models.ConflictMerge:
		return Retain, &models.WriteError{
			Code:    models.CodeIllegalArgument,
			Message: "merge conflict resolution is not supported",
		}
	default:
		// A base version without an explicit policy is checked as ERROR.
		return Retain, &models.WriteError{
			Code:    models.CodeVersionConflict,
			Message: "base version does not match head version",
		}
	}
}

func replace(in Input) Disposition {
	if in.DeleteIntent {
		return Delete
	}

	return Update
}
