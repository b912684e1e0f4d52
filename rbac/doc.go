// Package rbac implements hierarchical role-based access control with
// contextual rules.
//
// Roles form an inheritance DAG (STUDENT < PROFESSOR < ADMIN <
// SUPER_ADMIN by default) that is flattened into a closure at
// construction and re-flattened whenever a role is declared, so lookups
// never walk the graph. Permissions are "resource:action" strings held as
// direct grants per role; a role's effective set is the union over its
// closure.
//
// Contextual rules refine a grant with request attributes: a professor
// holds course:grade in general but a rule can restrict it to assigned
// courses. Rules run only after the role-level check passes, so a rule
// can narrow a grant but never widen one.
//
// # Architecture boundaries
//
// This package knows roles and permissions, nothing about users,
// sessions, or tokens. The Guard resolves a user's role from their
// authenticated session and asks this package yes/no questions.
package rbac
