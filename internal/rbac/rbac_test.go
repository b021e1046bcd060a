package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOwner, ActionRead, true},
		{RoleOwner, ActionMerge, true},
		{RoleOwner, ActionManage, true},
		{RoleOwner, ActionAdmin, true},
		{RoleManager, ActionRead, true},
		{RoleManager, ActionMerge, true},
		{RoleManager, ActionManage, true},
		{RoleManager, ActionAdmin, false},
		{RoleDeveloper, ActionRead, true},
		{RoleDeveloper, ActionTranslate, true},
		{RoleDeveloper, ActionEvaluate, true},
		{RoleDeveloper, ActionMerge, false},
		{RoleDeveloper, ActionManage, false},
		{Role(""), ActionRead, false},
		{Role("bogus"), ActionEvaluate, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("MANAGER") != RoleManager {
		t.Fatalf("expected MANAGER to normalize to itself")
	}
	if Normalize("editor") != Role("") {
		t.Fatalf("unknown roles must normalize to non-member")
	}
	if Normalize("") != Role("") {
		t.Fatalf("empty role must normalize to non-member")
	}
}
