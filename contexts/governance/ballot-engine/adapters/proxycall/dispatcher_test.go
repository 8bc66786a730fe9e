package proxycall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	domainerrors "plenum/contexts/governance/ballot-engine/domain/errors"
	"plenum/internal/shared/upgradeproxy"

	"github.com/ethereum/go-ethereum/common"
)

var (
	deployer = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	implV1   = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	implV2   = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

type fakeDirectory struct {
	roles map[string][]string
}

func (d fakeDirectory) HasRole(_ context.Context, role string, principal string) (bool, error) {
	for _, member := range d.roles[role] {
		if member == principal {
			return true, nil
		}
	}
	return false, nil
}

func (d fakeDirectory) Members(_ context.Context, role string) ([]string, error) {
	return append([]string(nil), d.roles[role]...), nil
}

func newProxiedDispatcher(t *testing.T) (Dispatcher, *upgradeproxy.Proxy, *upgradeproxy.MemoryCodeResolver) {
	t.Helper()
	dispatcher := Dispatcher{Directory: fakeDirectory{roles: map[string][]string{
		"admin":       {"root"},
		"chairperson": {"carol"},
	}}}
	resolver := upgradeproxy.NewMemoryCodeResolver()
	resolver.Register(implV1, dispatcher)
	proxy, err := upgradeproxy.New(upgradeproxy.Config{
		Deployer:       deployer,
		Implementation: implV1,
		Code:           resolver,
	})
	if err != nil {
		t.Fatalf("New proxy: %v", err)
	}
	return dispatcher, proxy, resolver
}

func mustEncode(t *testing.T, op string, params any) []byte {
	t.Helper()
	input, err := EncodeRequest(op, params)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	return input
}

func TestForwardedCallMatchesDirectExecutionByteForByte(t *testing.T) {
	dispatcher, proxy, _ := newProxiedDispatcher(t)
	ctx := context.Background()

	create := mustEncode(t, OpCreateSession, CreateSessionParams{
		Name:          "quarterly",
		ProposalNames: []string{"a", "b"},
		StartTime:     100,
		EndTime:       200,
		Kind:          "normal",
	})
	if _, err := proxy.Invoke(ctx, "alice", create); err != nil {
		t.Fatalf("create via proxy: %v", err)
	}

	read := mustEncode(t, OpGetSession, SessionRefParams{SessionID: 0})
	forwarded, err := proxy.Invoke(ctx, "alice", read)
	if err != nil {
		t.Fatalf("read via proxy: %v", err)
	}
	direct, err := dispatcher.Execute(ctx, proxy.State(), upgradeproxy.Call{
		Caller: "alice",
		Input:  read,
	})
	if err != nil {
		t.Fatalf("read direct: %v", err)
	}
	if !bytes.Equal(forwarded, direct) {
		t.Fatalf("forwarded reply diverges from direct execution:\n%s\n%s", forwarded, direct)
	}
}

func TestForwardedErrorsComeBackVerbatim(t *testing.T) {
	_, proxy, _ := newProxiedDispatcher(t)
	ctx := context.Background()

	create := mustEncode(t, OpCreateSession, CreateSessionParams{
		ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200, Kind: "normal",
	})
	if _, err := proxy.Invoke(ctx, "alice", create); err != nil {
		t.Fatalf("create: %v", err)
	}

	vote := mustEncode(t, OpCastVote, CastVoteParams{SessionID: 0, ProposalName: "a", Weight: 0})
	_, err := proxy.Invoke(ctx, "bob", vote)
	if !errors.Is(err, domainerrors.ErrZeroWeight) {
		t.Fatalf("zero weight through proxy: err = %v, want ErrZeroWeight", err)
	}

	official := mustEncode(t, OpCreateSession, CreateSessionParams{
		ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200, Kind: "official",
	})
	_, err = proxy.Invoke(ctx, "alice", official)
	if !errors.Is(err, domainerrors.ErrUnauthorized) {
		t.Fatalf("non-admin official through proxy: err = %v, want ErrUnauthorized", err)
	}
}

func TestDispatcherUsesForwardedCallerIdentity(t *testing.T) {
	_, proxy, _ := newProxiedDispatcher(t)
	ctx := context.Background()

	official := mustEncode(t, OpCreateSession, CreateSessionParams{
		ProposalNames: []string{"a"}, StartTime: 100, EndTime: 200, Kind: "official",
	})
	output, err := proxy.Invoke(ctx, "root", official)
	if err != nil {
		t.Fatalf("admin official via proxy: %v", err)
	}
	var reply CreateSessionReply
	if err := json.Unmarshal(output, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}

	read := mustEncode(t, OpGetSession, SessionRefParams{SessionID: reply.SessionID})
	output, err = proxy.Invoke(ctx, "anyone", read)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var session SessionReply
	if err := json.Unmarshal(output, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Creator != "root" {
		t.Fatalf("creator = %q, want the forwarded caller %q", session.Creator, "root")
	}
}

func TestUnknownOperation(t *testing.T) {
	_, proxy, _ := newProxiedDispatcher(t)
	input := mustEncode(t, "ballot.no_such_op", struct{}{})
	_, err := proxy.Invoke(context.Background(), "alice", input)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("err = %v, want ErrUnknownOperation", err)
	}
}

func TestSessionsSurviveImplementationUpgrade(t *testing.T) {
	dispatcher, proxy, resolver := newProxiedDispatcher(t)
	ctx := context.Background()

	create := mustEncode(t, OpCreateSession, CreateSessionParams{
		Name: "before upgrade", ProposalNames: []string{"a"},
		StartTime: 100, EndTime: 200, Kind: "normal",
	})
	if _, err := proxy.Invoke(ctx, "alice", create); err != nil {
		t.Fatalf("create: %v", err)
	}
	vote := mustEncode(t, OpCastVote, CastVoteParams{SessionID: 0, ProposalName: "a", Weight: 5})
	if _, err := proxy.Invoke(ctx, "bob", vote); err != nil {
		t.Fatalf("vote: %v", err)
	}

	// v2 is a separate dispatcher value registered at a new address; the
	// accumulated tallies must be visible through it unchanged.
	resolver.Register(implV2, Dispatcher{Directory: dispatcher.Directory})
	if err := proxy.UpgradeTo(ctx, implV2, deployer); err != nil {
		t.Fatalf("UpgradeTo: %v", err)
	}

	read := mustEncode(t, OpGetSession, SessionRefParams{SessionID: 0})
	output, err := proxy.Invoke(ctx, "alice", read)
	if err != nil {
		t.Fatalf("read after upgrade: %v", err)
	}
	var session SessionReply
	if err := json.Unmarshal(output, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.TotalVotes != 5 || session.Proposals[0].VoteCount != 5 {
		t.Fatalf("tallies after upgrade = %+v, want weight 5 preserved", session)
	}

	countInput := mustEncode(t, OpSessionCount, struct{}{})
	output, err = proxy.Invoke(ctx, "alice", countInput)
	if err != nil {
		t.Fatalf("count after upgrade: %v", err)
	}
	var count SessionCountReply
	if err := json.Unmarshal(output, &count); err != nil {
		t.Fatalf("decode count: %v", err)
	}
	if count.Count != 1 {
		t.Fatalf("session count after upgrade = %d, want 1", count.Count)
	}
}
