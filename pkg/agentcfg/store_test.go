package agentcfg

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opschat/opschat/pkg/apperr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestCreateBedrockActiveDeactivatesPrior(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bedrock_settings SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("INSERT INTO bedrock_settings").
		WithArgs("AGENT1", "ALIAS1", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectCommit()

	settings := &BedrockSettings{AgentID: "AGENT1", AgentAliasID: "ALIAS1", IsActive: true}
	require.NoError(t, store.CreateBedrock(context.Background(), settings))
	assert.Equal(t, int64(5), settings.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBedrockInactiveSkipsDeactivation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bedrock_settings").
		WithArgs("AGENT1", "ALIAS1", false, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectCommit()

	settings := &BedrockSettings{AgentID: "AGENT1", AgentAliasID: "ALIAS1"}
	require.NoError(t, store.CreateBedrock(context.Background(), settings))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveBedrockNewestWins(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bedrock_settings(.+)ORDER BY id DESC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "agent_alias_id", "is_active", "created_at"}).
			AddRow(9, "NEWEST", "ALIAS", true, time.Now()))

	settings, err := store.ActiveBedrock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NEWEST", settings.AgentID)
}

func TestActiveBedrockNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bedrock_settings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "agent_alias_id", "is_active", "created_at"}))

	_, err := store.ActiveBedrock(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateADKActiveDeactivatesPrior(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE adk_settings SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO adk_settings").
		WithArgs("https://agent.example.com/apps/ops/users/u1/sessions", "https://agent.example.com/run", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	settings := &ADKSettings{
		SessionEndpoint: "https://agent.example.com/apps/ops/users/u1/sessions",
		RunEndpoint:     "https://agent.example.com/run",
		IsActive:        true,
	}
	require.NoError(t, store.CreateADK(context.Background(), settings))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveADKNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM adk_settings").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_endpoint", "run_endpoint", "is_active", "created_at"}))

	_, err := store.ActiveADK(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
