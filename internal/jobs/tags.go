package jobs

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// tagSet is a case-folded set of call tags.
type tagSet map[string]struct{}

func foldTag(tag string) string {
	// a Caser carries state, so one per call
	return cases.Fold().String(strings.TrimSpace(tag))
}

func newTagSet(tags []string) tagSet {
	set := make(tagSet, len(tags))
	for _, tag := range tags {
		if folded := foldTag(tag); folded != "" {
			set[folded] = struct{}{}
		}
	}
	return set
}

// matchesAny reports whether any of tags is in the set.
func (s tagSet) matchesAny(tags []string) bool {
	for _, tag := range tags {
		if _, ok := s[foldTag(tag)]; ok {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether tags contains any of candidates under the
// case-folding rule shared by every tag comparison.
func HasAnyTag(tags, candidates []string) bool {
	return newTagSet(candidates).matchesAny(tags)
}

// TagReconciler marks calls whose lead later turned into work.
type TagReconciler struct {
	calls    CallStore
	excluded []string
	tag      string
}

// NewTagReconciler returns a reconciler appending tag unless the call
// already carries one of excluded. The tag itself is always excluded.
func NewTagReconciler(calls CallStore, excluded []string, tag string) *TagReconciler {
	tag = strings.TrimSpace(tag)
	list := make([]string, 0, len(excluded)+1)
	set := make(tagSet)
	for _, t := range append(append([]string{}, excluded...), tag) {
		folded := foldTag(t)
		if folded == "" {
			continue
		}
		if _, dup := set[folded]; dup {
			continue
		}
		set[folded] = struct{}{}
		list = append(list, t)
	}
	return &TagReconciler{calls: calls, excluded: list, tag: tag}
}

// MarkLaterQualified tags the call in a single conditional write. Blank ids
// are ignored.
func (t *TagReconciler) MarkLaterQualified(ctx context.Context, callID string) error {
	if strings.TrimSpace(callID) == "" || t.tag == "" {
		return nil
	}
	return t.calls.AppendTagUnlessPresent(ctx, callID, t.excluded, t.tag)
}
