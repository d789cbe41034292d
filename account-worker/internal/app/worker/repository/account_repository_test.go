package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const purgeQuery = `DELETE FROM "users" WHERE is_active = $1 AND is_verified = $2 AND created_at < $3`

// AccountRepositoryTestSuite тестовый suite для GORM репозитория
type AccountRepositoryTestSuite struct {
	suite.Suite
	db    *gorm.DB
	mock  sqlmock.Sqlmock
	repo  AccountRepository
	sqlDB *sql.DB
}

func TestAccountRepositorySuite(t *testing.T) {
	suite.Run(t, new(AccountRepositoryTestSuite))
}

func (s *AccountRepositoryTestSuite) SetupTest() {
	var err error
	s.sqlDB, s.mock, err = sqlmock.New()
	require.NoError(s.T(), err)

	dialector := postgres.New(postgres.Config{
		Conn:       s.sqlDB,
		DriverName: "postgres",
	})

	s.db, err = gorm.Open(dialector, &gorm.Config{})
	require.NoError(s.T(), err)

	s.repo = NewAccountRepository(s.db)
}

func (s *AccountRepositoryTestSuite) TearDownTest() {
	s.sqlDB.Close()
}

// ===================== PurgeUnactivated Tests =====================

func (s *AccountRepositoryTestSuite) TestPurgeUnactivated_Success() {
	ctx := context.Background()
	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(purgeQuery)).
		WithArgs(false, false, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	s.mock.ExpectCommit()

	// Act
	purged, err := s.repo.PurgeUnactivated(ctx, cutoff)

	// Assert
	s.NoError(err)
	s.Equal(int64(3), purged)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *AccountRepositoryTestSuite) TestPurgeUnactivated_NothingToPurge() {
	ctx := context.Background()
	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(purgeQuery)).
		WithArgs(false, false, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.mock.ExpectCommit()

	// Act
	purged, err := s.repo.PurgeUnactivated(ctx, cutoff)

	// Assert
	s.NoError(err)
	s.Zero(purged)
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *AccountRepositoryTestSuite) TestPurgeUnactivated_DBError() {
	ctx := context.Background()
	cutoff := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(purgeQuery)).
		WithArgs(false, false, cutoff).
		WillReturnError(sql.ErrConnDone)
	s.mock.ExpectRollback()

	// Act
	purged, err := s.repo.PurgeUnactivated(ctx, cutoff)

	// Assert
	s.Error(err)
	s.Zero(purged)
	s.Contains(err.Error(), "failed to purge unactivated accounts")
	s.NoError(s.mock.ExpectationsWereMet())
}
