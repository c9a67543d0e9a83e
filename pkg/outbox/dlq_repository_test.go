package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/referralz-backend/pkg/db/dbtest"
	"github.com/angelmondragon/referralz-backend/pkg/db/models"
	"github.com/angelmondragon/referralz-backend/pkg/enums"
)

func TestDLQRepositoryInsertClipsAndPrunes(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)

	long := strings.Repeat("é", maxDeadLetterMessage)
	entry := func(failedAt time.Time) models.OutboxDLQ {
		return models.OutboxDLQ{
			EventID:       uuid.New(),
			EventType:     enums.EventReferralRewardPending,
			AggregateType: enums.AggregateReferralEvent,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &long,
			AttemptCount:  10,
			FailedAt:      failedAt,
		}
	}
	require.NoError(t, repo.InsertTx(conn, entry(now.Add(-40*24*time.Hour))))
	require.NoError(t, repo.InsertTx(conn, entry(now.Add(-time.Hour))))
	assert.Error(t, repo.InsertTx(nil, entry(now)))
	bad := entry(now)
	bad.ErrorReason = "gave_up"
	assert.Error(t, repo.InsertTx(conn, bad))

	var stored []models.OutboxDLQ
	require.NoError(t, conn.Order("failed_at").Find(&stored).Error)
	require.Len(t, stored, 2)
	require.NotNil(t, stored[0].ErrorMessage)
	assert.LessOrEqual(t, len(*stored[0].ErrorMessage), maxDeadLetterMessage)
	assert.True(t, utf8.ValidString(*stored[0].ErrorMessage))

	deleted, err := repo.DeleteFailedBefore(context.Background(), nil, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}
