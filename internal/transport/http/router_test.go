package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	accountservice "quorum/internal/account/service"
	accountstore "quorum/internal/account/store"
	"quorum/internal/authz"
	delegationservice "quorum/internal/delegation/service"
	delegationstore "quorum/internal/delegation/store"
	disputeservice "quorum/internal/dispute/service"
	disputestore "quorum/internal/dispute/store"
	"quorum/internal/engine"
	"quorum/internal/escrow"
	jwttoken "quorum/internal/jwt_token"
	"quorum/internal/platform/middleware"
	proposalservice "quorum/internal/proposal/service"
	proposalstore "quorum/internal/proposal/store"
	reputationservice "quorum/internal/reputation/service"
	reputationstore "quorum/internal/reputation/store"
	votingservice "quorum/internal/voting/service"
	votingstore "quorum/internal/voting/store"
	"quorum/pkg/domain"
	audit "quorum/pkg/platform/audit"
	auditmemory "quorum/pkg/platform/audit/store/memory"
)

const (
	owner      = "owner"
	alice      = "alice"
	bob        = "bob"
	arbitrator = "arb"
)

type TransportSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.JWTService
	ledger *escrow.InMemoryLedger
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	accounts := accountstore.NewInMemoryStore()
	auditor := audit.NewPublisher(auditmemory.NewInMemoryStore())
	s.ledger = escrow.NewInMemoryLedger()

	roles, err := authz.New(owner, authz.NewInMemoryStore(), auditor)
	s.Require().NoError(err)

	reputation, err := reputationservice.New(reputationstore.NewInMemoryStore(), accounts, roles, auditor)
	s.Require().NoError(err)

	delegations, err := delegationservice.New(delegationstore.NewInMemoryStore(), accounts, accounts, reputation, auditor)
	s.Require().NoError(err)

	accountSvc, err := accountservice.New(accounts, roles, delegations, auditor)
	s.Require().NoError(err)

	proposalStore := proposalstore.NewInMemoryStore()
	proposals, err := proposalservice.New(proposalStore, accounts, roles, auditor)
	s.Require().NoError(err)

	votes, err := votingservice.New(votingstore.NewInMemoryStore(), proposalStore, accounts, reputation, auditor)
	s.Require().NoError(err)

	disputes, err := disputeservice.New(disputestore.NewInMemoryStore(), accounts, roles, s.ledger, reputation, auditor,
		disputeservice.WithArbitrator(arbitrator))
	s.Require().NoError(err)

	eng, err := engine.New(engine.Config{
		Accounts:    accountSvc,
		Delegations: delegations,
		Proposals:   proposals,
		Votes:       votes,
		Reputation:  reputation,
		Disputes:    disputes,
		Roles:       roles,
		Auditor:     auditor,
		Runner:      engine.NewMemoryTx(),
	})
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler, err := NewHandler(eng, logger)
	s.Require().NoError(err)

	s.jwt = jwttoken.NewJWTService("test-signing-key", "quorum", "quorum-api")
	s.router = NewRouter(handler, jwttoken.NewMiddlewareAdapter(s.jwt), logger)
}

func (s *TransportSuite) token(account string) string {
	token, err := s.jwt.GenerateAccessToken(domain.AccountID(account), time.Hour)
	s.Require().NoError(err)
	return token
}

// do issues a request as the given account at the given sequence. A zero
// sequence leaves the header off, an empty account leaves the token off.
func (s *TransportSuite) do(method, path, account string, seq uint64, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if account != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(account))
	}
	if seq != 0 {
		req.Header.Set(middleware.SequenceHeader, fmt.Sprintf("%d", seq))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *TransportSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func aliceHash() string { return strings.Repeat("ab", 32) }

// registerVerified runs the whole setup at sequence 1; equal sequences are
// always admissible, so suites can set up several accounts in any order.
func (s *TransportSuite) registerVerified(account, hash string, shares uint64) {
	rec := s.do(http.MethodPost, "/accounts", account, 1, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/accounts/"+account+"/verify", owner, 1,
		verifyIdentityRequest{IdentityHash: hash})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	if shares > 0 {
		rec = s.do(http.MethodPost, "/accounts/"+account+"/mint", owner, 1,
			mintRequest{Amount: shares})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}
}

func (s *TransportSuite) TestHealthNeedsNoAuth() {
	rec := s.do(http.MethodGet, "/healthz", "", 0, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *TransportSuite) TestMissingTokenIsUnauthorized() {
	rec := s.do(http.MethodGet, "/accounts/alice", "", 0, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	var body map[string]string
	s.decode(rec, &body)
	s.Equal("unauthorized", body["error"])
}

func (s *TransportSuite) TestWriteWithoutSequenceIsRejected() {
	rec := s.do(http.MethodPost, "/accounts", alice, 0, nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
}

func (s *TransportSuite) TestMalformedBodyIsRejected() {
	req := httptest.NewRequest(http.MethodPost, "/proposals", strings.NewReader("not json"))
	req.Header.Set("Authorization", "Bearer "+s.token(alice))
	req.Header.Set(middleware.SequenceHeader, "5")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TransportSuite) TestAccountLifecycle() {
	s.registerVerified(alice, aliceHash(), 500)

	rec := s.do(http.MethodGet, "/accounts/alice", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var account accountResponse
	s.decode(rec, &account)
	s.Equal(alice, account.ID)
	s.True(account.Verified)
	s.Equal(uint64(500), account.Shares)
	s.Equal(uint64(500), account.VotingPower)
	s.Equal(aliceHash(), account.IdentityHash)

	rec = s.do(http.MethodGet, "/accounts/by-hash/"+aliceHash(), alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &account)
	s.Equal(alice, account.ID)

	rec = s.do(http.MethodGet, "/accounts/nobody", alice, 0, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *TransportSuite) TestDuplicateIdentityHashConflicts() {
	s.registerVerified(alice, aliceHash(), 0)

	rec := s.do(http.MethodPost, "/accounts", bob, 3, nil)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/accounts/bob/verify", owner, 4,
		verifyIdentityRequest{IdentityHash: aliceHash()})
	s.Equal(http.StatusConflict, rec.Code, rec.Body.String())
}

func (s *TransportSuite) TestProposalVotingFlow() {
	s.registerVerified(alice, aliceHash(), 500)
	s.registerVerified(bob, strings.Repeat("cd", 32), 300)

	rec := s.do(http.MethodPost, "/proposals", alice, 5, createProposalRequest{
		Title:       "Adopt the new charter",
		Description: "Replace the founding bylaws.",
		StartSeq:    10,
		EndSeq:      100,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var proposal proposalResponse
	s.decode(rec, &proposal)
	s.Equal(uint64(1), proposal.ID)
	s.Equal("pending", proposal.Status)

	rec = s.do(http.MethodPost, "/proposals/1/activate", alice, 10, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/proposals/1/votes", alice, 20, castVoteRequest{Choice: "for"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var vote voteResponse
	s.decode(rec, &vote)
	s.Equal(uint64(500), vote.Weight)

	rec = s.do(http.MethodPost, "/proposals/1/votes", bob, 21, castVoteRequest{Choice: "against"})
	s.Require().Equal(http.StatusCreated, rec.Code)

	// Double voting is a conflict and leaves tallies alone.
	rec = s.do(http.MethodPost, "/proposals/1/votes", alice, 22, castVoteRequest{Choice: "against"})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/proposals/1/votes", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var votes []voteResponse
	s.decode(rec, &votes)
	s.Len(votes, 2)

	rec = s.do(http.MethodPost, "/proposals/1/finalize", bob, 101, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &proposal)
	s.Equal("approved", proposal.Status)
	s.Equal(uint64(500), proposal.VotesFor)
	s.Equal(uint64(300), proposal.VotesAgainst)

	// Execution is governor-only; the owner holds every role.
	rec = s.do(http.MethodPost, "/proposals/1/execute", alice, 102, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/proposals/1/execute", owner, 102, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &proposal)
	s.Equal("executed", proposal.Status)
}

func (s *TransportSuite) TestSequenceRegressionIsRejected() {
	s.registerVerified(alice, aliceHash(), 500)

	rec := s.do(http.MethodPost, "/proposals", alice, 50, createProposalRequest{
		Title:       "First",
		Description: "d",
		StartSeq:    60,
		EndSeq:      160,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/proposals", alice, 49, createProposalRequest{
		Title:       "Stale",
		Description: "d",
		StartSeq:    60,
		EndSeq:      160,
	})
	s.Equal(http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func (s *TransportSuite) TestDisputeFlow() {
	s.registerVerified(alice, aliceHash(), 500)
	s.registerVerified(bob, strings.Repeat("cd", 32), 300)
	s.ledger.Credit(context.Background(), escrow.Pool, 1000)
	s.ledger.Credit(context.Background(), domain.AccountID(alice), 500)

	rec := s.do(http.MethodPost, "/disputes", alice, 10, reportDisputeRequest{
		Target:      bob,
		Description: "Vote buying in the charter proposal",
		Stake:       100,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var dispute disputeResponse
	s.decode(rec, &dispute)
	s.Equal(uint64(1), dispute.ID)
	s.Equal("pending", dispute.Status)

	rec = s.do(http.MethodPost, "/disputes/1/evidence", alice, 11, addEvidenceRequest{
		Hash: "deadbeef", Kind: "document",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/disputes/1/resolve", arbitrator, 12, resolveDisputeRequest{
		Valid: true, Reason: "evidence checks out",
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &dispute)
	s.Equal("resolved_valid", dispute.Status)
	s.Require().NotNil(dispute.Resolution)
	s.Equal(arbitrator, dispute.Resolution.By)

	rec = s.do(http.MethodGet, "/accounts/bob/reputation", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var rep reputationResponse
	s.decode(rec, &rep)
	s.Equal(uint64(1), rep.ValidDisputes)
}

func (s *TransportSuite) TestAuditLogReadSurface() {
	s.registerVerified(alice, aliceHash(), 100)

	rec := s.do(http.MethodGet, "/audit/1", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var entry auditEntryResponse
	s.decode(rec, &entry)
	s.Equal(uint64(1), entry.ID)
	s.Equal("account_registered", entry.Action)
	s.Equal(alice, entry.Actor)

	rec = s.do(http.MethodGet, "/audit/999", alice, 0, nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/audit", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var entries []auditEntryResponse
	s.decode(rec, &entries)
	s.Require().NotEmpty(entries)

	rec = s.do(http.MethodGet, "/audit?actor="+owner, alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &entries)
	s.Require().NotEmpty(entries)
	for _, e := range entries {
		s.Equal(owner, e.Actor)
	}

	rec = s.do(http.MethodGet, "/audit?limit=bogus", alice, 0, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TransportSuite) TestCountersTrackActivity() {
	s.registerVerified(alice, aliceHash(), 100)

	rec := s.do(http.MethodGet, "/counters", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var counters countersResponse
	s.decode(rec, &counters)
	s.Zero(counters.Proposals)
	s.Zero(counters.Disputes)
	s.NotZero(counters.AuditEntries)

	rec = s.do(http.MethodPost, "/proposals", alice, 2, createProposalRequest{
		Title: "Adopt the new charter", StartSeq: 5, EndSeq: 50,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/counters", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &counters)
	s.Equal(uint64(1), counters.Proposals)
}

func (s *TransportSuite) TestRoleManagementIsOwnerOnly() {
	s.registerVerified(alice, aliceHash(), 0)

	rec := s.do(http.MethodPost, "/accounts/alice/roles", bob, 5, roleRequest{Role: "governor"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/accounts/alice/roles", owner, 5, roleRequest{Role: "governor"})
	s.Require().Equal(http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/accounts/alice/roles", alice, 0, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var roles rolesResponse
	s.decode(rec, &roles)
	s.Equal([]string{"governor"}, roles.Roles)

	rec = s.do(http.MethodDelete, "/accounts/alice/roles/governor", owner, 6, nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)
}
