package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func newTestGormStore(t *testing.T) *GormMessageStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "messages.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := NewGormMessageStore(db)
	require.NoError(t, err)
	return store
}

func TestGormMessageStoreAppendAndRecent(t *testing.T) {
	store := newTestGormStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, body := range []string{"first", "second", "third"} {
		require.NoError(t, store.Append(ctx, chat.ChatMessage{
			Room:     "general",
			Username: "alice",
			Body:     body,
			SentAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Append(ctx, chat.ChatMessage{
		Room: "random", Username: "bob", Body: "elsewhere", SentAt: base,
	}))

	msgs, err := store.Recent(ctx, "general", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "second", msgs[0].Body)
	assert.Equal(t, "third", msgs[1].Body)
	assert.True(t, base.Add(2*time.Minute).Equal(msgs[1].SentAt), "sent_at round-trips")

	msgs, err = store.Recent(ctx, "random", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].Username)

	msgs, err = store.Recent(ctx, "empty", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestGormMessageStoreBehindSink(t *testing.T) {
	store := newTestGormStore(t)
	sink := NewSink(Config{QueueSize: 8, Workers: 1, WriteTimeout: time.Second}, store, quietLogger())
	require.NoError(t, sink.Start(context.Background()))

	require.True(t, sink.Append(chat.ChatMessage{
		Room: "general", Username: "A", Body: "hi", SentAt: time.Now(),
	}))
	require.NoError(t, sink.Stop(context.Background()))

	msgs, err := store.Recent(context.Background(), "general", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Body)
}
