package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	ballotengine "plenum/contexts/governance/ballot-engine"
	"plenum/contexts/governance/ballot-engine/adapters/proxycall"
	balloterrors "plenum/contexts/governance/ballot-engine/domain/errors"
	ballothttp "plenum/contexts/governance/ballot-engine/transport/http"
	roledirectory "plenum/contexts/governance/role-directory"
	roleserrors "plenum/contexts/governance/role-directory/domain/errors"
	roleshttp "plenum/contexts/governance/role-directory/transport/http"
	"plenum/internal/shared/upgradeproxy"

	"github.com/ethereum/go-ethereum/common"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	ballot ballotengine.Module
	roles  roledirectory.Module
}

func New(
	ballot ballotengine.Module,
	roles roledirectory.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ballot: ballot,
		roles:  roles,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for httptest-based integration tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/ballot/v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/ballot/v1/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/ballot/v1/sessions/{session_id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/ballot/v1/sessions/{session_id}/permissions", s.handleGrantPermission)
	s.mux.HandleFunc("POST /api/ballot/v1/sessions/{session_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /api/ballot/v1/sessions/{session_id}/close", s.handleCloseSession)
	s.mux.HandleFunc("GET /api/ballot/v1/sessions/{session_id}/winner", s.handleWinner)
	s.mux.HandleFunc("GET /api/ballot/v1/audit/{principal}/voted", s.handleVotedProposals)
	s.mux.HandleFunc("GET /api/ballot/v1/audit/{principal}/unvoted", s.handleUnvotedProposals)

	s.mux.HandleFunc("POST /api/roles/v1/{role}/members", s.handleGrantRole)
	s.mux.HandleFunc("DELETE /api/roles/v1/{role}/members/{principal}", s.handleRevokeRole)
	s.mux.HandleFunc("GET /api/roles/v1/{role}/members", s.handleMembers)
	s.mux.HandleFunc("GET /api/roles/v1/principals/{principal}/roles", s.handleRolesOf)

	s.mux.HandleFunc("GET /api/proxy/v1/admin", s.handleProxyAdmin)
	s.mux.HandleFunc("GET /api/proxy/v1/implementation", s.handleProxyImplementation)
	s.mux.HandleFunc("POST /api/proxy/v1/upgrade", s.handleProxyUpgrade)
	s.mux.HandleFunc("POST /api/proxy/v1/invoke", s.handleProxyInvoke)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	var req ballothttp.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballot.Handler.CreateSessionHandler(r.Context(), caller, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	caller := resolveCaller(r)
	creator := strings.TrimSpace(r.URL.Query().Get("creator"))
	resp, err := s.ballot.Handler.ListSessionsHandler(r.Context(), caller, creator)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.ballot.Handler.GetSessionHandler(r.Context(), sessionID, resolveCaller(r))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantPermission(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	var req ballothttp.GrantPermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballot.Handler.GrantPermissionHandler(r.Context(), sessionID, caller, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	var req ballothttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.ballot.Handler.CastVoteHandler(r.Context(), sessionID, caller, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.ballot.Handler.CloseSessionHandler(r.Context(), sessionID, caller)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWinner(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseSessionID(w, r)
	if !ok {
		return
	}
	resp, err := s.ballot.Handler.WinnerHandler(r.Context(), sessionID, resolveCaller(r))
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVotedProposals(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	resp, err := s.ballot.Handler.VotedProposalsHandler(r.Context(), resolveCaller(r), principal)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnvotedProposals(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	resp, err := s.ballot.Handler.UnvotedProposalsHandler(r.Context(), resolveCaller(r), principal)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	role := r.PathValue("role")
	var req roleshttp.RoleMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRolesError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.roles.Handler.GrantRoleHandler(r.Context(), role, caller, req)
	if err != nil {
		writeRolesDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	role := r.PathValue("role")
	principal := r.PathValue("principal")
	resp, err := s.roles.Handler.RevokeRoleHandler(r.Context(), role, caller, roleshttp.RoleMutationRequest{
		Principal: principal,
	})
	if err != nil {
		writeRolesDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	resp, err := s.roles.Handler.MembersHandler(r.Context(), r.PathValue("role"))
	if err != nil {
		writeRolesDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRolesOf(w http.ResponseWriter, r *http.Request) {
	resp, err := s.roles.Handler.RolesOfHandler(r.Context(), r.PathValue("principal"))
	if err != nil {
		writeRolesDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProxyAdmin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"admin": s.ballot.Proxy.Admin().Hex(),
	})
}

func (s *Server) handleProxyImplementation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"implementation": s.ballot.Proxy.Implementation().Hex(),
	})
}

func (s *Server) handleProxyUpgrade(w http.ResponseWriter, r *http.Request) {
	callerHex := strings.TrimSpace(r.Header.Get("X-Caller-Address"))
	if callerHex == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_caller", "X-Caller-Address header is required")
		return
	}
	var req struct {
		Implementation string `json:"implementation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	err := s.ballot.Proxy.UpgradeTo(
		r.Context(),
		common.HexToAddress(req.Implementation),
		common.HexToAddress(callerHex),
	)
	if err != nil {
		writeProxyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"implementation": s.ballot.Proxy.Implementation().Hex(),
	})
}

// handleProxyInvoke is the raw forwarding surface: the request body goes to
// the implementation byte for byte, and the reply bytes come back untouched.
func (s *Server) handleProxyInvoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.requireCaller(w, r)
	if !ok {
		return
	}
	input, err := io.ReadAll(r.Body)
	if err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
		return
	}
	output, err := s.ballot.Proxy.Invoke(r.Context(), caller, input)
	if err != nil {
		writeProxyError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(output)
}

func (s *Server) requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := resolveCaller(r)
	if caller == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return caller, true
}

func resolveCaller(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func parseSessionID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := r.PathValue("session_id")
	sessionID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be an unsigned integer")
		return 0, false
	}
	return sessionID, true
}

func writeBallotDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, balloterrors.ErrInvalidSessionID):
		writeBallotError(w, http.StatusNotFound, "invalid_session", err.Error())
	case errors.Is(err, balloterrors.ErrUnknownProposal):
		writeBallotError(w, http.StatusNotFound, "unknown_proposal", err.Error())
	case errors.Is(err, balloterrors.ErrInvalidTimeRange),
		errors.Is(err, balloterrors.ErrZeroWeight),
		errors.Is(err, balloterrors.ErrInvalidPrincipal):
		writeBallotError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, balloterrors.ErrUnauthorized):
		writeBallotError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, balloterrors.ErrSessionNotOpen),
		errors.Is(err, balloterrors.ErrSessionClosed),
		errors.Is(err, balloterrors.ErrAlreadyClosed),
		errors.Is(err, balloterrors.ErrSessionNotClosed),
		errors.Is(err, balloterrors.ErrConflict):
		writeBallotError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, proxycall.ErrUnknownOperation):
		writeBallotError(w, http.StatusNotFound, "unknown_operation", err.Error())
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// writeProxyError maps façade-level failures first, then falls through to
// the ballot mapping because forwarded errors surface verbatim.
func writeProxyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upgradeproxy.ErrZeroAddress):
		writeBallotError(w, http.StatusBadRequest, "zero_address", err.Error())
	case errors.Is(err, upgradeproxy.ErrUnauthorized):
		writeBallotError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, upgradeproxy.ErrImplementationUnset):
		writeBallotError(w, http.StatusServiceUnavailable, "implementation_unset", err.Error())
	default:
		writeBallotDomainError(w, err)
	}
}

func writeRolesDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, roleserrors.ErrUnknownRole),
		errors.Is(err, roleserrors.ErrInvalidPrincipal):
		writeRolesError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, roleserrors.ErrUnauthorized):
		writeRolesError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, roleserrors.ErrNotMember):
		writeRolesError(w, http.StatusNotFound, "not_member", err.Error())
	case errors.Is(err, roleserrors.ErrConflict):
		writeRolesError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeRolesError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBallotError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeRolesError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, roleshttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
