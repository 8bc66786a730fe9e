// Package upgradeproxy implements the stable-address indirection layer in
// front of the governance logic.
//
// The proxy owns exactly two pieces of state, an admin identity and the
// address of the current implementation, kept in reserved, hash-derived
// storage slots that cannot collide with slots an implementation derives
// for its own state. Every call that is not one of the proxy's own entry
// points (admin, implementation, upgrade) is forwarded byte-for-byte to the
// current implementation, which executes against the proxy-owned state
// handle with the caller identity preserved. Return payloads and errors are
// propagated verbatim so the proxy address behaves as one stable service
// across upgrades.
package upgradeproxy
