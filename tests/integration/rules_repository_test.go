package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/rules"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

func TestRuleRepositoryCRUD(t *testing.T) {
	infra := SetupTestInfra(t)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	rule := createTestRule("NYDFS-500.12", models.SeverityHigh)
	require.NoError(t, repo.CreateRule(ctx, rule))
	assert.NotEmpty(t, rule.ID)

	got, err := repo.GetRule(ctx, "NYDFS-500.12")
	require.NoError(t, err)
	assert.Equal(t, rule.RuleText, got.RuleText)
	assert.Equal(t, models.SeverityHigh, got.Severity)
	assert.Equal(t, "1", got.Version)

	got.RuleText = "MFA must be implemented for all remote access."
	got.Version = "2"
	require.NoError(t, repo.UpdateRule(ctx, got))

	updated, err := repo.GetRule(ctx, "NYDFS-500.12")
	require.NoError(t, err)
	assert.Equal(t, "2", updated.Version)
	assert.Equal(t, "MFA must be implemented for all remote access.", updated.RuleText)

	active, err := repo.ListActiveRules(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestRuleRepositoryDuplicateRuleID(t *testing.T) {
	infra := SetupTestInfra(t)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	require.NoError(t, repo.CreateRule(ctx, createTestRule("GLBA-313.4", models.SeverityMedium)))

	err := repo.CreateRule(ctx, createTestRule("GLBA-313.4", models.SeverityMedium))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConflict))
}

func TestStructuredRuleRepositoryVersions(t *testing.T) {
	infra := SetupTestInfra(t)
	repo := rules.NewRepository(infra.PostgresDB)
	ctx := context.Background()

	v1 := createTestStructuredRule("NYDFS-500.12", "1", models.SeverityHigh)
	require.NoError(t, repo.CreateStructuredRule(ctx, v1))
	time.Sleep(timestampDelay)

	v2 := createTestStructuredRule("NYDFS-500.12", "2", models.SeverityHigh)
	v2.Obligations = []string{"multi-factor authentication must be used", "sessions must be logged"}
	require.NoError(t, repo.CreateStructuredRule(ctx, v2))

	latest, err := repo.GetLatestStructuredRule(ctx, "NYDFS-500.12")
	require.NoError(t, err)
	assert.Equal(t, "2", latest.Version)
	assert.Len(t, latest.Obligations, 2)

	pinned, err := repo.GetStructuredRuleVersion(ctx, models.RuleVersionKey{RuleID: "NYDFS-500.12", Version: "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", pinned.Version)
	assert.Len(t, pinned.Obligations, 1)

	all, err := repo.ListStructuredRules(ctx, "NYDFS-500.12")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = repo.GetLatestStructuredRule(ctx, "UNKNOWN")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
