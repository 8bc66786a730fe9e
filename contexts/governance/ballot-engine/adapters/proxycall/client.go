package proxycall

import (
	"context"
	"encoding/json"
)

// Invoker is the forwarding surface the client rides. The upgrade proxy
// satisfies it; tests may substitute the dispatcher directly.
type Invoker interface {
	Invoke(ctx context.Context, caller string, input []byte) ([]byte, error)
}

// Client gives the HTTP layer a typed view over the byte-envelope calls.
// Every method is one proxy round trip; errors come back verbatim from the
// implementation behind the proxy.
type Client struct {
	Proxy Invoker
}

func (c Client) call(ctx context.Context, caller string, op string, params any, reply any) error {
	input, err := EncodeRequest(op, params)
	if err != nil {
		return err
	}
	output, err := c.Proxy.Invoke(ctx, caller, input)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	return json.Unmarshal(output, reply)
}

func (c Client) CreateSession(ctx context.Context, caller string, params CreateSessionParams) (CreateSessionReply, error) {
	var reply CreateSessionReply
	err := c.call(ctx, caller, OpCreateSession, params, &reply)
	return reply, err
}

func (c Client) GrantPermission(ctx context.Context, caller string, params GrantPermissionParams) error {
	return c.call(ctx, caller, OpGrantPermission, params, nil)
}

func (c Client) CastVote(ctx context.Context, caller string, params CastVoteParams) (CastVoteReply, error) {
	var reply CastVoteReply
	err := c.call(ctx, caller, OpCastVote, params, &reply)
	return reply, err
}

func (c Client) CloseSession(ctx context.Context, caller string, params CloseSessionParams) (CloseSessionReply, error) {
	var reply CloseSessionReply
	err := c.call(ctx, caller, OpCloseSession, params, &reply)
	return reply, err
}

func (c Client) GetSession(ctx context.Context, caller string, sessionID uint64) (SessionReply, error) {
	var reply SessionReply
	err := c.call(ctx, caller, OpGetSession, SessionRefParams{SessionID: sessionID}, &reply)
	return reply, err
}

func (c Client) ListSessions(ctx context.Context, caller string) (SessionListReply, error) {
	var reply SessionListReply
	err := c.call(ctx, caller, OpListSessions, struct{}{}, &reply)
	return reply, err
}

func (c Client) SessionsOfCreator(ctx context.Context, caller string, creator string) (SessionListReply, error) {
	var reply SessionListReply
	err := c.call(ctx, caller, OpSessionsOfCreator, CreatorParams{Creator: creator}, &reply)
	return reply, err
}

func (c Client) SessionCount(ctx context.Context, caller string) (SessionCountReply, error) {
	var reply SessionCountReply
	err := c.call(ctx, caller, OpSessionCount, struct{}{}, &reply)
	return reply, err
}

func (c Client) WinningProposal(ctx context.Context, caller string, sessionID uint64) (WinnerReply, error) {
	var reply WinnerReply
	err := c.call(ctx, caller, OpWinningProposal, SessionRefParams{SessionID: sessionID}, &reply)
	return reply, err
}

func (c Client) VotedProposals(ctx context.Context, caller string, principal string) (ProposalViewListReply, error) {
	var reply ProposalViewListReply
	err := c.call(ctx, caller, OpVotedProposals, PrincipalParams{Principal: principal}, &reply)
	return reply, err
}

func (c Client) UnvotedProposals(ctx context.Context, caller string, principal string) (ProposalViewListReply, error) {
	var reply ProposalViewListReply
	err := c.call(ctx, caller, OpUnvotedProposals, PrincipalParams{Principal: principal}, &reply)
	return reply, err
}
