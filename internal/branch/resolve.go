package branch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Choice is the caller's decision for one conflicting key. On the wire it is
// either the string "source"/"target" or an object of per-language values.
type Choice struct {
	Take   string
	Values map[string]string
}

const (
	TakeSource = "source"
	TakeTarget = "target"
	TakeCustom = "custom"
)

func (c *Choice) UnmarshalJSON(data []byte) error {
	var take string
	if err := json.Unmarshal(data, &take); err == nil {
		if take != TakeSource && take != TakeTarget {
			return fmt.Errorf("resolution must be %q, %q or a language map", TakeSource, TakeTarget)
		}
		c.Take = take
		return nil
	}
	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("resolution must be %q, %q or a language map", TakeSource, TakeTarget)
	}
	c.Take = TakeCustom
	c.Values = values
	return nil
}

func (c Choice) MarshalJSON() ([]byte, error) {
	if c.Take == TakeCustom {
		return json.Marshal(c.Values)
	}
	return json.Marshal(c.Take)
}

// Resolution pairs a conflicting key with its Choice.
type Resolution struct {
	Key        string `json:"key"`
	Resolution Choice `json:"resolution"`
}

// Fallback controls how a partial custom value set is completed for languages
// the caller omitted.
type Fallback string

const (
	FallbackTarget Fallback = "target"
	FallbackSource Fallback = "source"
	FallbackStrict Fallback = "strict"
)

// PlanOptions carries the merge policy knobs. Deleting target-only keys is an
// explicit opt-in; the default preserves them.
type PlanOptions struct {
	DeleteMissing  bool
	CustomFallback Fallback
}

// Change is one key upsert the executor applies to the target branch.
type Change struct {
	Key    string
	Values map[string]string
}

// Plan is the fully resolved set of writes a merge performs.
type Plan struct {
	Upserts           []Change
	Deletes           []string
	ConflictsResolved int
}

// UnresolvedError reports conflicts lacking a resolution. The merge is
// rejected before any transaction starts.
type UnresolvedError struct {
	Keys []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("unresolved conflicts: %s", strings.Join(e.Keys, ", "))
}

// ResolutionError reports a malformed resolution payload.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return "invalid resolution: " + e.Reason
}

// BuildPlan turns a diff plus conflict resolutions into the write set for the
// target branch. Every conflict must carry a resolution; resolutions for keys
// that are not conflicts are rejected rather than silently ignored.
func BuildPlan(d Diff, resolutions []Resolution, opts PlanOptions) (Plan, error) {
	if opts.CustomFallback == "" {
		opts.CustomFallback = FallbackTarget
	}

	conflictByKey := make(map[string]ConflictEntry, len(d.Conflicts))
	for _, c := range d.Conflicts {
		conflictByKey[c.Key] = c
	}

	choiceByKey := make(map[string]Choice, len(resolutions))
	for _, r := range resolutions {
		if r.Key == "" {
			return Plan{}, &ResolutionError{Reason: "resolution without a key"}
		}
		if _, ok := conflictByKey[r.Key]; !ok {
			return Plan{}, &ResolutionError{Reason: "key " + r.Key + " is not in conflict"}
		}
		if _, dup := choiceByKey[r.Key]; dup {
			return Plan{}, &ResolutionError{Reason: "duplicate resolution for key " + r.Key}
		}
		choiceByKey[r.Key] = r.Resolution
	}

	missing := make([]string, 0)
	for _, c := range d.Conflicts {
		if _, ok := choiceByKey[c.Key]; !ok {
			missing = append(missing, c.Key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Plan{}, &UnresolvedError{Keys: missing}
	}

	var plan Plan
	for _, entry := range d.Added {
		plan.Upserts = append(plan.Upserts, Change{Key: entry.Key, Values: entry.Translations})
	}
	for _, entry := range d.Modified {
		// Only write languages the merge actually changes; rewriting an
		// untouched value would reset its review status on the target.
		values := make(map[string]string, len(entry.Merged))
		for lang, v := range entry.Merged {
			if current, ok := entry.Target[lang]; ok && current == v {
				continue
			}
			values[lang] = v
		}
		if len(values) > 0 {
			plan.Upserts = append(plan.Upserts, Change{Key: entry.Key, Values: values})
		}
	}
	for _, c := range d.Conflicts {
		values, write, err := resolveConflict(c, choiceByKey[c.Key], opts.CustomFallback)
		if err != nil {
			return Plan{}, err
		}
		plan.ConflictsResolved++
		if write {
			plan.Upserts = append(plan.Upserts, Change{Key: c.Key, Values: values})
		}
	}
	if opts.DeleteMissing {
		for _, entry := range d.Deleted {
			plan.Deletes = append(plan.Deletes, entry.Key)
		}
	}
	return plan, nil
}

func resolveConflict(c ConflictEntry, choice Choice, fallback Fallback) (map[string]string, bool, error) {
	switch choice.Take {
	case TakeSource:
		return copyValues(c.Source), true, nil
	case TakeTarget:
		// Explicit decision to keep the target side; nothing to write.
		return nil, false, nil
	case TakeCustom:
		base := c.Target
		if fallback == FallbackSource {
			base = c.Source
		}
		values := copyValues(base)
		for lang, v := range choice.Values {
			values[lang] = v
		}
		if fallback == FallbackStrict {
			for _, lang := range unionLangs(c.Source, c.Target) {
				if _, ok := choice.Values[lang]; !ok {
					return nil, false, &ResolutionError{Reason: "custom resolution for key " + c.Key + " omits language " + lang}
				}
			}
			values = copyValues(choice.Values)
		}
		return values, true, nil
	default:
		return nil, false, &ResolutionError{Reason: "key " + c.Key + " carries no usable resolution"}
	}
}
