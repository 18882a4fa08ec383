//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/account/models"
	"quorum/internal/account/store"
	"quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "accounts")
	s.Require().NoError(err)
}

func testHash(b byte) domain.IdentityHash {
	var h domain.IdentityHash
	for i := range h {
		h[i] = b
	}
	return h
}

func (s *PostgresStoreSuite) newAccount() models.Account {
	return models.NewAccount(domain.AccountID("acct-"+uuid.NewString()), 1)
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	account := s.newAccount()

	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))

	found, err := s.store.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(account.ID, found.ID)
	s.False(found.Verified)
	s.True(found.Active)
	s.Equal(domain.Sequence(1), found.CreatedAt)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	account := s.newAccount()

	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))
	s.ErrorIs(s.store.CreateIfAbsent(ctx, account), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindUnknownAccount() {
	_, err := s.store.FindByID(context.Background(), "no-such-account")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestBindIdentityAndResolve() {
	ctx := context.Background()
	account := s.newAccount()
	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))

	hash := testHash(0x5a)
	s.Require().NoError(s.store.BindIdentity(ctx, account, hash))

	found, err := s.store.FindByIdentityHash(ctx, hash)
	s.Require().NoError(err)
	s.Equal(account.ID, found.ID)
	s.True(found.Verified)
	s.Equal(hash, found.IdentityHash)
}

func (s *PostgresStoreSuite) TestBindIdentityAlreadyVerified() {
	ctx := context.Background()
	account := s.newAccount()
	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))
	s.Require().NoError(s.store.BindIdentity(ctx, account, testHash(0x01)))

	err := s.store.BindIdentity(ctx, account, testHash(0x02))
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

// TestConcurrentIdentityHashCollision verifies that the partial unique index
// lets exactly one of many racing verifications claim an identity hash.
func (s *PostgresStoreSuite) TestConcurrentIdentityHashCollision() {
	ctx := context.Background()
	hash := testHash(0xee)
	const goroutines = 20

	accounts := make([]models.Account, goroutines)
	for i := range accounts {
		accounts[i] = s.newAccount()
		s.Require().NoError(s.store.CreateIfAbsent(ctx, accounts[i]))
	}

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(account models.Account) {
			defer wg.Done()
			switch err := s.store.BindIdentity(ctx, account, hash); {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}(accounts[i])
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestAdjustVotingPower() {
	ctx := context.Background()
	account := s.newAccount()
	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))

	s.Require().NoError(s.store.AdjustVotingPower(ctx, account.ID, 500))
	s.Require().NoError(s.store.AdjustVotingPower(ctx, account.ID, -200))

	found, err := s.store.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(uint64(300), found.VotingPower)
}

func (s *PostgresStoreSuite) TestAdjustVotingPowerUnderflow() {
	ctx := context.Background()
	account := s.newAccount()
	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))
	s.Require().NoError(s.store.AdjustVotingPower(ctx, account.ID, 100))

	err := s.store.AdjustVotingPower(ctx, account.ID, -101)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	found, err := s.store.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(uint64(100), found.VotingPower)
}

// TestConcurrentPowerAdjustments verifies the row-level guard serializes
// concurrent deltas without losing any.
func (s *PostgresStoreSuite) TestConcurrentPowerAdjustments() {
	ctx := context.Background()
	account := s.newAccount()
	s.Require().NoError(s.store.CreateIfAbsent(ctx, account))

	const goroutines = 25
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.AdjustVotingPower(ctx, account.ID, 10))
		}()
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(uint64(goroutines*10), found.VotingPower)
}

func (s *PostgresStoreSuite) TestSaveUnknownAccount() {
	err := s.store.Save(context.Background(), s.newAccount())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
