// Package roledirectory maintains the named roles of the governance
// context: who holds the administrative and chairperson roles, and which
// role is allowed to grant or revoke another. The ballot engine consumes it
// through a capability-check port, so the directory can be swapped for a
// fake in tests.
package roledirectory
