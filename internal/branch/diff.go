// Package branch implements the three-way diff and merge planning logic for
// branches of translation keys. All functions here are pure; persistence and
// locking live in the store and service layers.
package branch

import "sort"

// Snapshot is the full content of one branch: key name → language → value.
// A missing language and an empty value are distinct only as far as exact
// string comparison goes; the diff never normalizes values.
type Snapshot map[string]map[string]string

// Entry is a key that exists on exactly one side.
type Entry struct {
	Key          string            `json:"key"`
	Translations map[string]string `json:"translations"`
}

// ModifiedEntry is a key present on both sides with differing content where
// the two sides did not both rewrite the same language. Merged holds the
// per-language reconciliation (source wins where source changed, target value
// carried otherwise) and is not part of the preview payload.
type ModifiedEntry struct {
	Key    string            `json:"key"`
	Source map[string]string `json:"source"`
	Target map[string]string `json:"target"`
	Merged map[string]string `json:"-"`
}

// ConflictEntry is a key where at least one language was independently
// rewritten on both sides since the common ancestor and the rewrites disagree.
type ConflictEntry struct {
	Key       string            `json:"key"`
	Source    map[string]string `json:"source"`
	Target    map[string]string `json:"target"`
	Languages []string          `json:"languages"`
}

type Diff struct {
	Added     []Entry         `json:"added"`
	Deleted   []Entry         `json:"deleted"`
	Modified  []ModifiedEntry `json:"modified"`
	Conflicts []ConflictEntry `json:"conflicts"`
}

// Empty reports whether the two branches have identical content.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0 && len(d.Modified) == 0 && len(d.Conflicts) == 0
}

// Compute diffs source against target relative to their common ancestor
// snapshot. A key present in both branches lands in exactly one of
// modified/conflicts, or in neither when content is identical. A key is a
// conflict only if some language changed on both sides relative to base and
// the sides disagree on it; otherwise per-language reconciliation is possible
// and the key is merely modified. Output ordering is deterministic.
func Compute(base, source, target Snapshot) Diff {
	var d Diff

	for _, key := range sortedKeys(source) {
		if _, ok := target[key]; !ok {
			d.Added = append(d.Added, Entry{Key: key, Translations: copyValues(source[key])})
		}
	}
	for _, key := range sortedKeys(target) {
		if _, ok := source[key]; !ok {
			d.Deleted = append(d.Deleted, Entry{Key: key, Translations: copyValues(target[key])})
		}
	}

	for _, key := range sortedKeys(source) {
		tgt, ok := target[key]
		if !ok {
			continue
		}
		src := source[key]
		if equalValues(src, tgt) {
			continue
		}

		baseVals := base[key]
		conflictLangs := make([]string, 0, 2)
		merged := make(map[string]string, len(src))
		for _, lang := range unionLangs(src, tgt) {
			sv, sok := src[lang]
			tv, tok := tgt[lang]
			bv, bok := baseVals[lang]
			sourceChanged := !sok && bok || sok && (!bok || sv != bv)
			targetChanged := !tok && bok || tok && (!bok || tv != bv)
			switch {
			case sourceChanged && targetChanged && sv != tv:
				conflictLangs = append(conflictLangs, lang)
			case sourceChanged:
				if sok {
					merged[lang] = sv
				}
			default:
				if tok {
					merged[lang] = tv
				}
			}
		}

		if len(conflictLangs) > 0 {
			d.Conflicts = append(d.Conflicts, ConflictEntry{
				Key:       key,
				Source:    copyValues(src),
				Target:    copyValues(tgt),
				Languages: conflictLangs,
			})
			continue
		}
		d.Modified = append(d.Modified, ModifiedEntry{
			Key:    key,
			Source: copyValues(src),
			Target: copyValues(tgt),
			Merged: merged,
		})
	}

	return d
}

func sortedKeys(s Snapshot) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unionLangs(a, b map[string]string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for lang := range a {
		seen[lang] = struct{}{}
	}
	for lang := range b {
		seen[lang] = struct{}{}
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func equalValues(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for lang, av := range a {
		if bv, ok := b[lang]; !ok || av != bv {
			return false
		}
	}
	return true
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for lang, v := range values {
		out[lang] = v
	}
	return out
}
