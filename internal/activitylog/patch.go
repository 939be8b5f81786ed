package activitylog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/persistorai/spacestore/internal/models"
)

// ReversePatch returns the patch that turns younger back into older, or nil
// when the two versions differ only in unaudited fields.
func ReversePatch(older, younger *models.VersionRecord) (*models.ReversePatch, error) {
	ot, err := older.Tree()
	if err != nil {
		return nil, fmt.Errorf("older version %d: %w", older.Version, err)
	}

	yt, err := younger.Tree()
	if err != nil {
		return nil, fmt.Errorf("younger version %d: %w", younger.Version, err)
	}

	return Reverse(Diff(ot, yt)), nil
}

// Reverse converts a difference tree rooted at a feature into a reverse
// patch. The feature id and the namespace, except its tags, are not audited.
func Reverse(root *Node) *models.ReversePatch {
	if root == nil {
		return nil
	}

	p := &models.ReversePatch{}
	walk(root, nil, p)

	if len(p.Ops) == 0 {
		return nil
	}

	return p
}

func walk(n *Node, path []string, p *models.ReversePatch) {
	switch n.Kind {
	case Map:
		keys := make([]string, 0, len(n.Fields))
		for k := range n.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			walk(n.Fields[k], append(path, k), p)
		}
	case List:
		// Removing appended items has to start at the end of the list.
		var appended []int
		for i, item := range n.Items {
			if item == nil {
				continue
			}
			if item.Kind == Insert {
				appended = append(appended, i)
				continue
			}
			walk(item, append(path, strconv.Itoa(i)), p)
		}

		for j := len(appended) - 1; j >= 0; j-- {
			i := appended[j]
			walk(n.Items[i], append(path, strconv.Itoa(i)), p)
		}
	default:
		if !audited(path) {
			return
		}
		emit(n, pointer(path), p)
	}
}

func emit(n *Node, ptr string, p *models.ReversePatch) {
	switch n.Kind {
	case Insert:
		p.Remove++
		p.Ops = append(p.Ops, models.PatchOp{Op: models.PatchRemove, Path: ptr})
	case Remove:
		p.Add++
		p.Ops = append(p.Ops, models.PatchOp{Op: models.PatchAdd, Path: ptr, Value: n.Old})
	case Update:
		p.Replace++
		p.Ops = append(p.Ops, models.PatchOp{Op: models.PatchReplace, Path: ptr, Value: n.Old})
	}
}

// audited reports whether a change at path belongs in the activity log.
func audited(path []string) bool {
	if len(path) == 1 && path[0] == "id" {
		return false
	}

	if len(path) >= 2 && path[0] == "properties" && path[1] == models.NamespaceKey {
		return len(path) >= 3 && path[2] == "tags"
	}

	return true
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// pointer renders path as a JSON pointer.
func pointer(path []string) string {
	var b strings.Builder
	for _, seg := range path {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(seg))
	}

	return b.String()
}
