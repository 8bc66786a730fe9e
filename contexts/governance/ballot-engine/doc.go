// Package ballotengine implements the permissioned ballot engine of the
// governance context.
//
// The module owns the session/proposal store (append-only, dense ids), the
// per-session permission ledger, the weighted tally state machine, and the
// winner/audit read models. Authorization decisions are delegated to the
// role directory through a capability-check port; infrastructure concerns
// stay behind ports and adapters, including an adapter that exposes the
// whole engine as a replaceable implementation behind the upgrade proxy.
package ballotengine
