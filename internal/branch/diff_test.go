package branch

import (
	"reflect"
	"testing"
)

func snap(entries map[string]map[string]string) Snapshot {
	return Snapshot(entries)
}

func TestComputeAddedAndDeleted(t *testing.T) {
	base := snap(map[string]map[string]string{
		"common": {"en": "Common", "de": "Gemeinsam"},
	})
	source := snap(map[string]map[string]string{
		"common": {"en": "Common", "de": "Gemeinsam"},
		"fresh":  {"en": "Fresh", "de": "Frisch"},
	})
	target := snap(map[string]map[string]string{
		"common":   {"en": "Common", "de": "Gemeinsam"},
		"obsolete": {"en": "Old"},
	})

	d := Compute(base, source, target)

	if len(d.Added) != 1 || d.Added[0].Key != "fresh" {
		t.Fatalf("expected one added key 'fresh', got %+v", d.Added)
	}
	if d.Added[0].Translations["de"] != "Frisch" {
		t.Errorf("added entry must carry source translations")
	}
	if len(d.Deleted) != 1 || d.Deleted[0].Key != "obsolete" {
		t.Fatalf("expected one deleted key 'obsolete', got %+v", d.Deleted)
	}
	if len(d.Modified) != 0 || len(d.Conflicts) != 0 {
		t.Errorf("identical common key must not appear as modified or conflicting")
	}
}

func TestComputeOneSidedChangeIsModified(t *testing.T) {
	base := snap(map[string]map[string]string{"greeting": {"en": "Hello", "de": "Hallo"}})
	source := snap(map[string]map[string]string{"greeting": {"en": "Hello!", "de": "Hallo"}})
	target := snap(map[string]map[string]string{"greeting": {"en": "Hello", "de": "Hallo"}})

	d := Compute(base, source, target)

	if len(d.Conflicts) != 0 {
		t.Fatalf("one-sided change must not conflict: %+v", d.Conflicts)
	}
	if len(d.Modified) != 1 {
		t.Fatalf("expected one modified entry, got %+v", d.Modified)
	}
	if d.Modified[0].Merged["en"] != "Hello!" || d.Modified[0].Merged["de"] != "Hallo" {
		t.Errorf("merged values wrong: %+v", d.Modified[0].Merged)
	}
}

func TestComputeConcurrentEditIsConflict(t *testing.T) {
	base := snap(map[string]map[string]string{"greeting": {"en": "Hello"}})
	source := snap(map[string]map[string]string{"greeting": {"en": "Hi"}})
	target := snap(map[string]map[string]string{"greeting": {"en": "Hey"}})

	d := Compute(base, source, target)

	if len(d.Modified) != 0 {
		t.Fatalf("concurrent edit must not be modified: %+v", d.Modified)
	}
	if len(d.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", d.Conflicts)
	}
	c := d.Conflicts[0]
	if c.Key != "greeting" || len(c.Languages) != 1 || c.Languages[0] != "en" {
		t.Errorf("conflict shape wrong: %+v", c)
	}
}

// Both sides changed the key but touched disjoint languages; per-language
// reconciliation is possible so the key is modified, not conflicting.
func TestComputeDisjointLanguageEditsAreModified(t *testing.T) {
	base := snap(map[string]map[string]string{"greeting": {"en": "Hello", "de": "Hallo"}})
	source := snap(map[string]map[string]string{"greeting": {"en": "Hi", "de": "Hallo"}})
	target := snap(map[string]map[string]string{"greeting": {"en": "Hello", "de": "Servus"}})

	d := Compute(base, source, target)

	if len(d.Conflicts) != 0 {
		t.Fatalf("disjoint language edits must not conflict: %+v", d.Conflicts)
	}
	if len(d.Modified) != 1 {
		t.Fatalf("expected one modified entry, got %+v", d.Modified)
	}
	want := map[string]string{"en": "Hi", "de": "Servus"}
	if !reflect.DeepEqual(d.Modified[0].Merged, want) {
		t.Errorf("merged = %+v, want %+v", d.Modified[0].Merged, want)
	}
}

func TestComputeSameEditOnBothSides(t *testing.T) {
	base := snap(map[string]map[string]string{"greeting": {"en": "Hello"}})
	source := snap(map[string]map[string]string{"greeting": {"en": "Hi"}})
	target := snap(map[string]map[string]string{"greeting": {"en": "Hi"}})

	d := Compute(base, source, target)
	if !d.Empty() {
		t.Errorf("identical content must produce an empty diff: %+v", d)
	}
}

// P4: a key present on both sides lands in exactly one of modified/conflicts.
func TestComputeClassificationIsExclusive(t *testing.T) {
	base := snap(map[string]map[string]string{
		"a": {"en": "A", "de": "A-de"},
		"b": {"en": "B"},
		"c": {"en": "C"},
	})
	source := snap(map[string]map[string]string{
		"a": {"en": "A2", "de": "A-de"},
		"b": {"en": "B-src"},
		"c": {"en": "C"},
	})
	target := snap(map[string]map[string]string{
		"a": {"en": "A", "de": "A-de"},
		"b": {"en": "B-tgt"},
		"c": {"en": "C"},
	})

	d := Compute(base, source, target)

	seen := map[string]int{}
	for _, m := range d.Modified {
		seen[m.Key]++
	}
	for _, c := range d.Conflicts {
		seen[c.Key]++
	}
	for key, n := range seen {
		if n != 1 {
			t.Errorf("key %q classified %d times", key, n)
		}
	}
	if seen["a"] != 1 || seen["b"] != 1 {
		t.Errorf("expected a (modified) and b (conflict) classified once each: %+v", seen)
	}
	if _, ok := seen["c"]; ok {
		t.Errorf("unchanged key c must not be classified")
	}
}

func TestComputeKeyAbsentFromBase(t *testing.T) {
	// Key added independently on both branches with different content: every
	// language change is two-sided, so it conflicts.
	base := snap(map[string]map[string]string{})
	source := snap(map[string]map[string]string{"new": {"en": "From source"}})
	target := snap(map[string]map[string]string{"new": {"en": "From target"}})

	d := Compute(base, source, target)
	if len(d.Conflicts) != 1 || d.Conflicts[0].Key != "new" {
		t.Fatalf("independently added key must conflict, got %+v", d)
	}
}

func TestComputeOrderingIsDeterministic(t *testing.T) {
	source := snap(map[string]map[string]string{
		"z": {"en": "Z"}, "a": {"en": "A"}, "m": {"en": "M"},
	})
	target := snap(map[string]map[string]string{})

	d := Compute(Snapshot{}, source, target)
	if len(d.Added) != 3 {
		t.Fatalf("expected three added keys, got %d", len(d.Added))
	}
	for i, want := range []string{"a", "m", "z"} {
		if d.Added[i].Key != want {
			t.Errorf("added[%d] = %q, want %q", i, d.Added[i].Key, want)
		}
	}
}
