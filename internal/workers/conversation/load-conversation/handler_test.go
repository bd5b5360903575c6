// internal/workers/conversation/load-conversation/handler_test.go
package loadconversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-advisor-workers/internal/common/logger"
	"pump-advisor-workers/internal/engine"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:     10 * time.Second,
		CacheTTL:    5 * time.Minute,
		MaxMessages: 50,
	}
}

const (
	selectConversation = `SELECT state, last_action FROM conversations WHERE id = $1`
	selectMessages     = `SELECT role, text FROM conversation_messages
		 WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_LoadFromDB(t *testing.T) {
	db, mock := newMockDB(t)

	stateJSON := `{"application":"heating","floors":3}`
	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow(stateJSON, "ask"))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}).
			AddRow("user", "I need a heating pump").
			AddRow("assistant", "How many floors does the building have?").
			AddRow("user", "3 floors"))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-1"})

	require.NoError(t, err)
	require.NotNil(t, output)
	assert.Equal(t, "conv-1", output.ConversationID)
	assert.False(t, output.FromCache)
	assert.Equal(t, "ask", output.LastAction)
	assert.Equal(t, engine.AppHeating, output.State.Application)
	assert.Equal(t, 3, output.State.Floors)
	require.Len(t, output.Messages, 3)
	assert.Equal(t, "user", output.Messages[0].Role)
	assert.Equal(t, "I need a heating pump", output.Messages[0].Content)
	assert.Equal(t, "assistant", output.Messages[1].Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_LatestMessageStoredAndAppended(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("{}", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}).
			AddRow("user", "hello"))
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO conversation_messages (conversation_id, role, text) VALUES ($1, 'user', $2)`)).
		WithArgs("conv-1", "my house has low pressure").
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		ConversationID: "conv-1",
		LatestMessage:  "my house has low pressure",
	})

	require.NoError(t, err)
	require.Len(t, output.Messages, 2)
	assert.Equal(t, "user", output.Messages[1].Role)
	assert.Equal(t, "my house has low pressure", output.Messages[1].Content)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_InboundInsertFailureIsNotFatal(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("{}", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}))
	mock.ExpectExec(regexp.QuoteMeta(
		`INSERT INTO conversation_messages (conversation_id, role, text) VALUES ($1, 'user', $2)`)).
		WithArgs("conv-1", "hi").
		WillReturnError(errors.New("insert failed"))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		ConversationID: "conv-1",
		LatestMessage:  "hi",
	})

	// The turn proceeds with the message held in memory.
	require.NoError(t, err)
	require.Len(t, output.Messages, 1)
	assert.Equal(t, "hi", output.Messages[0].Content)
}

func TestHandler_Execute_NotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "missing"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.Nil(t, output)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_EmptyConversationID(t *testing.T) {
	db, _ := newMockDB(t)

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.Nil(t, output)
}

func TestHandler_Execute_QueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-1").
		WillReturnError(errors.New("connection reset"))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-1"})

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueryExecutionFailed))
	assert.Nil(t, output)
}

func TestHandler_Execute_CorruptStoredState(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-1").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("not valid json {{", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}).
			AddRow("user", "hello"))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-1"})

	// Corrupt state is discarded, not fatal.
	require.NoError(t, err)
	assert.True(t, output.State.Empty())
	assert.Len(t, output.Messages, 1)
}

func TestHandler_Execute_NoMessages(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-new").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-new", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}))

	handler := NewHandler(createTestConfig(), db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-new"})

	require.NoError(t, err)
	assert.Empty(t, output.Messages)
	assert.Empty(t, output.LastAction)
}

// ==========================
// Cache Tests
// ==========================

func TestHandler_Execute_CacheHit(t *testing.T) {
	redisClient := newTestRedis(t)

	cached := &Output{
		ConversationID: "conv-cached",
		Messages:       []engine.Message{{Role: "user", Content: "hi"}},
		LastAction:     "greet",
	}
	data, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, redisClient.Set(context.Background(), "advisor:conv:conv-cached", data, 0).Err())

	// No DB expectations registered; a DB round trip would fail the test.
	db, mock := newMockDB(t)

	handler := NewHandler(createTestConfig(), db, redisClient, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-cached"})

	require.NoError(t, err)
	assert.True(t, output.FromCache)
	assert.Equal(t, "greet", output.LastAction)
	require.Len(t, output.Messages, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_CacheMissPopulatesCache(t *testing.T) {
	redisClient := newTestRedis(t)
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-2").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow(`{"floors":2}`, "ask"))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-2", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}).
			AddRow("user", "2 floors"))

	handler := NewHandler(createTestConfig(), db, redisClient, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-2"})
	require.NoError(t, err)
	assert.False(t, output.FromCache)

	val, err := redisClient.Get(context.Background(), "advisor:conv:conv-2").Result()
	require.NoError(t, err)

	var stored Output
	require.NoError(t, json.Unmarshal([]byte(val), &stored))
	assert.Equal(t, "conv-2", stored.ConversationID)
	assert.Equal(t, 2, stored.State.Floors)
}

func TestHandler_Execute_CorruptCacheFallsThrough(t *testing.T) {
	redisClient := newTestRedis(t)
	require.NoError(t, redisClient.Set(context.Background(), "advisor:conv:conv-3", "garbage", 0).Err())

	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-3").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-3", 50).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}))

	handler := NewHandler(createTestConfig(), db, redisClient, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-3"})

	require.NoError(t, err)
	assert.False(t, output.FromCache)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Edge Cases
// ==========================

func TestHandler_Execute_MaxMessagesLimit(t *testing.T) {
	db, mock := newMockDB(t)

	config := createTestConfig()
	config.MaxMessages = 2

	mock.ExpectQuery(regexp.QuoteMeta(selectConversation)).
		WithArgs("conv-long").
		WillReturnRows(sqlmock.NewRows([]string{"state", "last_action"}).
			AddRow("", ""))
	mock.ExpectQuery(regexp.QuoteMeta(selectMessages)).
		WithArgs("conv-long", 2).
		WillReturnRows(sqlmock.NewRows([]string{"role", "text"}).
			AddRow("user", "first").
			AddRow("assistant", "second"))

	handler := NewHandler(config, db, nil, logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{ConversationID: "conv-long"})

	require.NoError(t, err)
	assert.Len(t, output.Messages, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
