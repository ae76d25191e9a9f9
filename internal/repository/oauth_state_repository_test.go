package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateConsumeReturnsRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"state", "platform", "user_id", "redirect_url", "code_verifier", "created_at", "expires_at"}).
		AddRow("state-1", "twitter", int64(42), "https://app.example.com/accounts", "verifier-1", now.Add(-time.Minute), now.Add(9*time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM oauth_states")).
		WithArgs("state-1", models.PlatformTwitter, sqlmock.AnyArg()).
		WillReturnRows(rows)

	st, err := repo.Consume(context.Background(), "state-1", models.PlatformTwitter, now)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "state-1", st.State)
	assert.Equal(t, models.PlatformTwitter, st.Platform)
	assert.Equal(t, "verifier-1", st.CodeVerifier)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateConsumeMissIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM oauth_states")).
		WithArgs("state-gone", models.PlatformTwitter, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"state", "platform", "user_id", "redirect_url", "code_verifier", "created_at", "expires_at"}))

	st, err := repo.Consume(context.Background(), "state-gone", models.PlatformTwitter, time.Now())
	require.NoError(t, err)
	assert.Nil(t, st)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO oauth_states")).
		WithArgs("state-1", models.PlatformFacebook, int64(42), "https://app.example.com/accounts", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Create(context.Background(), &models.OAuthState{
		State:       "state-1",
		Platform:    models.PlatformFacebook,
		UserID:      42,
		RedirectURL: "https://app.example.com/accounts",
		ExpiresAt:   now.Add(10 * time.Minute),
	})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateDeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewOAuthStateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM oauth_states WHERE expires_at <= $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
