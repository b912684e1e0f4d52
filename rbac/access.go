package rbac

import (
	"fmt"
	"sort"
	"sync"
)

// Role identifies a position in the access hierarchy.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleProfessor  Role = "PROFESSOR"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Context carries request-scoped attributes for contextual permission
// checks, e.g. the course a grade belongs to or the owner of a profile.
type Context map[string]any

// ContextRule decides whether a permission applies given request context.
// Rules run only after the role-level check has already passed.
type ContextRule func(ctx Context) bool

// Access is the authorization table: direct permission grants per role, a
// flattened inheritance closure, and contextual rules keyed by
// role+permission. All methods are safe for concurrent use.
type Access struct {
	mu sync.RWMutex

	// permissions holds direct grants only; effective permissions are the
	// union over the inheritance closure.
	permissions map[Role]map[string]struct{}

	// parents records declared inheritance edges (child -> parents) so the
	// closure can be recomputed when roles are added at runtime.
	parents map[Role][]Role

	// closure maps each role to the set of roles it inherits from,
	// including itself.
	closure map[Role]map[Role]struct{}

	rules map[Role]map[string]ContextRule
}

// New returns an Access pre-populated with the default campus hierarchy:
// STUDENT < PROFESSOR < ADMIN < SUPER_ADMIN, each level inheriting
// everything below it, plus the default contextual rules.
func New() *Access {
	a := &Access{
		permissions: make(map[Role]map[string]struct{}),
		parents:     make(map[Role][]Role),
		closure:     make(map[Role]map[Role]struct{}),
		rules:       make(map[Role]map[string]ContextRule),
	}

	a.addRole(RoleStudent, nil,
		"course:read",
		"course:enroll",
		"grade:read_own",
		"profile:read_own",
		"profile:update_own",
		"assignment:submit",
	)
	a.addRole(RoleProfessor, []Role{RoleStudent},
		"course:update",
		"course:grade",
		"grade:assign",
		"grade:update",
		"student:read",
		"assignment:create",
	)
	a.addRole(RoleAdmin, []Role{RoleProfessor},
		"user_management:create",
		"user_management:update",
		"user_management:disable",
		"user_management:reset_password",
		"course:delete",
		"report:read",
	)
	a.addRole(RoleSuperAdmin, []Role{RoleAdmin},
		"system:configure",
		"system:audit",
		"user_management:delete",
		"role:grant",
	)

	a.registerDefaultRules()
	return a
}

// registerDefaultRules installs the built-in contextual checks.
func (a *Access) registerDefaultRules() {
	// Professors may only grade courses they are assigned to.
	a.RegisterContextRule(RoleProfessor, "course:grade", func(ctx Context) bool {
		courseID, _ := ctx["course_id"].(string)
		if courseID == "" {
			return false
		}
		assigned, _ := ctx["assigned_courses"].([]string)
		for _, id := range assigned {
			if id == courseID {
				return true
			}
		}
		return false
	})

	// "Own" resources require the actor to be the owner.
	ownerOnly := func(ctx Context) bool {
		username, _ := ctx["username"].(string)
		owner, _ := ctx["owner"].(string)
		return username != "" && username == owner
	}
	a.RegisterContextRule(RoleStudent, "profile:read_own", ownerOnly)
	a.RegisterContextRule(RoleStudent, "profile:update_own", ownerOnly)
	a.RegisterContextRule(RoleStudent, "grade:read_own", ownerOnly)
}

// AddRole declares a new role with the given parents and direct
// permissions and re-flattens the inheritance closure. Declaring an
// existing role replaces its parents and merges the permissions.
func (a *Access) AddRole(role Role, parents []Role, permissions ...string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, p := range parents {
		if _, ok := a.closure[p]; !ok {
			return fmt.Errorf("rbac: unknown parent role %q", p)
		}
	}

	a.addRole(role, parents, permissions...)
	return nil
}

func (a *Access) addRole(role Role, parents []Role, permissions ...string) {
	grants, ok := a.permissions[role]
	if !ok {
		grants = make(map[string]struct{})
		a.permissions[role] = grants
	}
	for _, p := range permissions {
		grants[p] = struct{}{}
	}
	a.parents[role] = append([]Role(nil), parents...)
	a.flattenLocked()
}

// flattenLocked recomputes the inheritance closure from the declared
// parent edges. Callers must hold the write lock.
func (a *Access) flattenLocked() {
	a.closure = make(map[Role]map[Role]struct{}, len(a.parents))
	for role := range a.parents {
		set := make(map[Role]struct{})
		a.collect(role, set)
		a.closure[role] = set
	}
}

func (a *Access) collect(role Role, into map[Role]struct{}) {
	if _, seen := into[role]; seen {
		return
	}
	into[role] = struct{}{}
	for _, p := range a.parents[role] {
		a.collect(p, into)
	}
}

// HasPermission reports whether role holds permission directly or through
// inheritance. Unknown roles hold nothing.
func (a *Access) HasPermission(role Role, permission string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hasPermissionLocked(role, permission)
}

func (a *Access) hasPermissionLocked(role Role, permission string) bool {
	for inherited := range a.closure[role] {
		if _, ok := a.permissions[inherited][permission]; ok {
			return true
		}
	}
	return false
}

// HasPermissionWithContext is HasPermission plus the contextual rule
// registered for the nearest role in the closure that carries one. A
// permission with no applicable rule passes on the role check alone.
func (a *Access) HasPermissionWithContext(role Role, permission string, ctx Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.hasPermissionLocked(role, permission) {
		return false
	}

	if rule, ok := a.ruleForLocked(role, permission); ok {
		return rule(ctx)
	}
	return true
}

// ruleForLocked finds the contextual rule nearest to role: its own rule
// first, then a breadth-first walk up the declared parent edges in
// declaration order. Map iteration must not decide which rule runs.
func (a *Access) ruleForLocked(role Role, permission string) (ContextRule, bool) {
	queue := []Role{role}
	seen := map[Role]struct{}{role: {}}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if rule, ok := a.rules[r][permission]; ok {
			return rule, true
		}
		for _, p := range a.parents[r] {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	return nil, false
}

// AllPermissions returns the sorted effective permission set of role.
func (a *Access) AllPermissions(role Role) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	set := make(map[string]struct{})
	for inherited := range a.closure[role] {
		for p := range a.permissions[inherited] {
			set[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Inherits reports whether role transitively inherits from ancestor. Every
// role inherits from itself.
func (a *Access) Inherits(role, ancestor Role) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.closure[role][ancestor]
	return ok
}

// CanActOnBehalf reports whether actor may exercise permission on
// target's behalf: actor must hold the permission itself and target must
// sit strictly below actor in the hierarchy. Outranking someone grants
// nothing the actor does not already hold.
func (a *Access) CanActOnBehalf(actor, target Role, permission string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if actor == target {
		return false
	}
	if _, ok := a.closure[actor][target]; !ok {
		return false
	}
	return a.hasPermissionLocked(actor, permission)
}

// Grant adds a direct permission to role. Unknown roles are created with
// no parents.
func (a *Access) Grant(role Role, permission string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.permissions[role]; !ok {
		a.addRole(role, nil, permission)
		return
	}
	a.permissions[role][permission] = struct{}{}
}

// Revoke removes a direct permission from role. Inherited grants are not
// affected; revoke them on the role that holds them.
func (a *Access) Revoke(role Role, permission string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.permissions[role], permission)
}

// RegisterContextRule attaches a contextual rule for a role+permission
// pair, replacing any existing rule for the pair.
func (a *Access) RegisterContextRule(role Role, permission string, rule ContextRule) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rules[role] == nil {
		a.rules[role] = make(map[string]ContextRule)
	}
	a.rules[role][permission] = rule
}
