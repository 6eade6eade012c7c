package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/logger"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

type fakeRepository struct {
	rules      map[string]*models.ComplianceRule
	structured []models.StructuredRule

	deleteCalls []string
	updateCalls []models.ComplianceRule

	failStructuredCreate bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{rules: make(map[string]*models.ComplianceRule)}
}

func (f *fakeRepository) CreateRule(ctx context.Context, rule *models.ComplianceRule) error {
	if _, exists := f.rules[rule.RuleID]; exists {
		return pkgerrors.ErrConflict.WithDetail("rule_id", rule.RuleID)
	}
	if rule.ID == "" {
		rule.ID = "id-" + rule.RuleID
	}
	stored := *rule
	f.rules[rule.RuleID] = &stored
	return nil
}

func (f *fakeRepository) GetRule(ctx context.Context, ruleID string) (*models.ComplianceRule, error) {
	rule, ok := f.rules[ruleID]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", ruleID)
	}
	copied := *rule
	return &copied, nil
}

func (f *fakeRepository) ListRules(ctx context.Context, limit, offset int) ([]models.ComplianceRule, error) {
	var out []models.ComplianceRule
	for _, rule := range f.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (f *fakeRepository) ListActiveRules(ctx context.Context) ([]models.ComplianceRule, error) {
	var out []models.ComplianceRule
	for _, rule := range f.rules {
		if rule.Status == models.RuleStatusActive {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateRule(ctx context.Context, rule *models.ComplianceRule) error {
	f.updateCalls = append(f.updateCalls, *rule)
	stored := *rule
	f.rules[rule.RuleID] = &stored
	return nil
}

func (f *fakeRepository) DeleteRule(ctx context.Context, id string) error {
	f.deleteCalls = append(f.deleteCalls, id)
	for ruleID, rule := range f.rules {
		if rule.ID == id {
			delete(f.rules, ruleID)
			return nil
		}
	}
	return pkgerrors.ErrNotFound.WithDetail("id", id)
}

func (f *fakeRepository) CreateStructuredRule(ctx context.Context, rule *models.StructuredRule) error {
	if f.failStructuredCreate {
		return pkgerrors.ErrInternal
	}
	f.structured = append(f.structured, *rule)
	return nil
}

func (f *fakeRepository) ListStructuredRules(ctx context.Context, ruleID string) ([]models.StructuredRule, error) {
	var out []models.StructuredRule
	for i := len(f.structured) - 1; i >= 0; i-- {
		if f.structured[i].RuleID == ruleID {
			out = append(out, f.structured[i])
		}
	}
	return out, nil
}

func (f *fakeRepository) GetLatestStructuredRule(ctx context.Context, ruleID string) (*models.StructuredRule, error) {
	for i := len(f.structured) - 1; i >= 0; i-- {
		if f.structured[i].RuleID == ruleID {
			copied := f.structured[i]
			return &copied, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", ruleID)
}

func (f *fakeRepository) GetStructuredRuleVersion(ctx context.Context, key models.RuleVersionKey) (*models.StructuredRule, error) {
	for i := len(f.structured) - 1; i >= 0; i-- {
		if f.structured[i].RuleID == key.RuleID && f.structured[i].Version == key.Version {
			copied := f.structured[i]
			return &copied, nil
		}
	}
	return nil, pkgerrors.ErrNotFound.WithDetail("rule_id", key.RuleID)
}

type fakeInterpreter struct {
	err   error
	calls []models.ComplianceRule
}

func (f *fakeInterpreter) Interpret(ctx context.Context, rule models.ComplianceRule) (models.StructuredRule, error) {
	f.calls = append(f.calls, rule)
	if f.err != nil {
		return models.StructuredRule{}, f.err
	}
	return models.StructuredRule{
		RuleID:                  rule.RuleID,
		Version:                 rule.Version,
		ApplicabilityConditions: []string{"always"},
		Obligations:             []string{"comply"},
		Exceptions:              []string{},
		Severity:                rule.Severity,
		RawModelOutput:          "{}",
	}, nil
}

func validCreateRequest() CreateRuleRequest {
	return CreateRuleRequest{
		RuleID:   "PRIV-001",
		Category: "PRIVACY",
		RuleText: "Customer PII must not be accessed without an approved request.",
		Severity: "HIGH",
	}
}

func TestCreateRule(t *testing.T) {
	repo := newFakeRepository()
	interp := &fakeInterpreter{}
	svc := NewService(repo, interp, logger.NopLogger())

	rule, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "PRIV-001", rule.RuleID)
	assert.Equal(t, "1", rule.Version)
	assert.Equal(t, models.RuleStatusActive, rule.Status)

	require.Len(t, interp.calls, 1)
	require.Len(t, repo.structured, 1)
	assert.Equal(t, "PRIV-001", repo.structured[0].RuleID)
	assert.Equal(t, "1", repo.structured[0].Version)
	assert.Equal(t, models.SeverityHigh, repo.structured[0].Severity)
}

func TestCreateRuleValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeInterpreter{}, logger.NopLogger())

	req := validCreateRequest()
	req.Severity = "EXTREME"

	_, err := svc.CreateRule(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, repo.rules)
}

func TestCreateRuleDuplicate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, &fakeInterpreter{}, logger.NopLogger())

	_, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	_, err = svc.CreateRule(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrConflict))
}

func TestCreateRuleRollsBackOnInterpretationFailure(t *testing.T) {
	repo := newFakeRepository()
	interp := &fakeInterpreter{err: pkgerrors.ErrInterpretationTimeout}
	svc := NewService(repo, interp, logger.NopLogger())

	_, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrRuleMutationRolledBack))

	// The rule write must be undone; a rule never goes live uninterpreted.
	assert.Empty(t, repo.rules)
	assert.Len(t, repo.deleteCalls, 1)
	assert.Empty(t, repo.structured)
}

func TestCreateRuleRollsBackOnStructuredWriteFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.failStructuredCreate = true
	svc := NewService(repo, &fakeInterpreter{}, logger.NopLogger())

	_, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.Empty(t, repo.rules)
}

func TestUpdateRule(t *testing.T) {
	repo := newFakeRepository()
	interp := &fakeInterpreter{}
	svc := NewService(repo, interp, logger.NopLogger())

	_, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	newText := "Customer PII must not be accessed without an approved and logged request."
	updated, err := svc.UpdateRule(context.Background(), "PRIV-001", UpdateRuleRequest{RuleText: &newText})
	require.NoError(t, err)

	assert.Equal(t, "2", updated.Version)
	assert.Equal(t, newText, updated.RuleText)

	// Each edit produces a new structured version.
	require.Len(t, repo.structured, 2)
	assert.Equal(t, "2", repo.structured[1].Version)
}

func TestUpdateRuleRollsBackOnInterpretationFailure(t *testing.T) {
	repo := newFakeRepository()
	interp := &fakeInterpreter{}
	svc := NewService(repo, interp, logger.NopLogger())

	_, err := svc.CreateRule(context.Background(), validCreateRequest())
	require.NoError(t, err)

	interp.err = pkgerrors.ErrMalformedOutput
	newText := "changed text"
	_, err = svc.UpdateRule(context.Background(), "PRIV-001", UpdateRuleRequest{RuleText: &newText})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrRuleMutationRolledBack))

	// The previous revision must be back in place.
	rule, err := svc.GetRule(context.Background(), "PRIV-001")
	require.NoError(t, err)
	assert.Equal(t, "1", rule.Version)
	assert.Equal(t, validCreateRequest().RuleText, rule.RuleText)
	require.Len(t, repo.structured, 1)
}

func TestUpdateRuleNotFound(t *testing.T) {
	svc := NewService(newFakeRepository(), &fakeInterpreter{}, logger.NopLogger())

	newText := "text"
	_, err := svc.UpdateRule(context.Background(), "GHOST-1", UpdateRuleRequest{RuleText: &newText})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestNextVersion(t *testing.T) {
	assert.Equal(t, "2", nextVersion("1"))
	assert.Equal(t, "10", nextVersion("9"))
	assert.Equal(t, "v1.1", nextVersion("v1"))
}
