package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/workflows"
	pkgerrors "verdict/pkg/errors"
)

func TestWorkflowEventRepository(t *testing.T) {
	infra := SetupTestInfra(t)
	repo := workflows.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	first := createTestEvent("WF-100", false)
	require.NoError(t, repo.CreateEvent(ctx, first))
	time.Sleep(timestampDelay)

	second := createTestEvent("WF-100", true)
	require.NoError(t, repo.CreateEvent(ctx, second))

	latest, err := repo.GetLatestEvent(ctx, "WF-100")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, true, latest.Attributes["mfa_used"])

	history, err := repo.GetEvents(ctx, "WF-100")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	before, err := repo.GetLatestEventBefore(ctx, "WF-100", second.SubmittedAt.Add(-time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, first.ID, before.ID)

	_, err = repo.GetEvents(ctx, "WF-MISSING")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
