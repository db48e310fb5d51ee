package auth

import (
	"context"
	"testing"
)

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestStaticPermissions(t *testing.T) {
	store := StaticPermissions(RolePermissions)
	ctx := context.Background()

	ok, err := store.HasPermission(ctx, RoleViewer, PermPaycheckRead)
	if err != nil || !ok {
		t.Fatalf("expected viewer to read paychecks, got %v %v", ok, err)
	}
	ok, _ = store.HasPermission(ctx, RoleViewer, PermPaycheckVoid)
	if ok {
		t.Fatal("viewer must not void paychecks")
	}
	ok, _ = store.HasPermission(ctx, "unknown", PermPaycheckRead)
	if ok {
		t.Fatal("unknown role must have no permissions")
	}
}
