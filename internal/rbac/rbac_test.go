package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "writer read", role: RoleWriter, action: ActionRead, allow: true},
		{name: "writer write", role: RoleWriter, action: ActionWrite, allow: true},
		{name: "writer edit", role: RoleWriter, action: ActionEdit, allow: false},
		{name: "writer admin", role: RoleWriter, action: ActionAdmin, allow: false},
		{name: "editor edit", role: RoleEditor, action: ActionEdit, allow: true},
		{name: "editor write", role: RoleEditor, action: ActionWrite, allow: false},
		{name: "editor admin", role: RoleEditor, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown read", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalizeDefaultsToWriter(t *testing.T) {
	if got := Normalize("superuser"); got != RoleWriter {
		t.Fatalf("Normalize(superuser) = %q, want writer", got)
	}
	if got := Normalize("admin"); got != RoleAdmin {
		t.Fatalf("Normalize(admin) = %q, want admin", got)
	}
}
