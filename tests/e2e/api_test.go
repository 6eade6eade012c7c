package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/audit"
	"verdict/internal/rules"
	"verdict/internal/workflows"
	"verdict/pkg/models"
)

// These tests run against a deployed audit service with a reasoning provider
// configured. Set AUDIT_SERVICE_URL to override the default address.
var auditServiceURL = serviceURL()

func serviceURL() string {
	if url := os.Getenv("AUDIT_SERVICE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func TestHealth(t *testing.T) {
	resp, err := http.Get(fmt.Sprintf("%s/health", auditServiceURL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&health)
	require.NoError(t, err)
	assert.NotNil(t, health["status"])
}

func TestRuleLifecycle(t *testing.T) {
	ruleID := fmt.Sprintf("E2E-%d", time.Now().UnixNano())

	created := createRule(t, rules.CreateRuleRequest{
		RuleID:   ruleID,
		Category: "SECURITY",
		RuleText: "Multi-Factor Authentication must be implemented for any individual accessing internal networks from an external network.",
		Severity: "HIGH",
	})
	assert.Equal(t, ruleID, created.RuleID)
	assert.Equal(t, "1", created.Version)

	got := getRule(t, ruleID)
	assert.Equal(t, created.RuleText, got.RuleText)

	// Interpretation runs synchronously inside create, so the structured
	// form must already exist.
	structured := listStructuredRules(t, ruleID)
	require.NotEmpty(t, structured)
	assert.Equal(t, created.Severity, structured[len(structured)-1].Severity)

	updated := updateRule(t, ruleID, rules.UpdateRuleRequest{
		RuleText: stringPtr("MFA must be implemented for all remote network access without exception."),
	})
	assert.Equal(t, "2", updated.Version)

	structured = listStructuredRules(t, ruleID)
	require.GreaterOrEqual(t, len(structured), 2)
}

func TestWorkflowAuditAndReplay(t *testing.T) {
	workflowID := fmt.Sprintf("WF-E2E-%d", time.Now().UnixNano())

	createWorkflowEvent(t, workflows.CreateEventRequest{
		WorkflowID:   workflowID,
		WorkflowType: "DATA_ACCESS_REQUEST",
		Attributes: map[string]interface{}{
			"access_type": "external",
			"mfa_used":    false,
		},
		ActorID:      "e2e_runner",
		SourceSystem: "e2e_suite",
	})

	decision := auditWorkflow(t, workflowID)
	assert.Equal(t, workflowID, decision.WorkflowID)
	assert.Contains(t, []models.DecisionOutcome{
		models.OutcomeCompliant,
		models.OutcomeNonCompliant,
		models.OutcomeRequiresReview,
	}, decision.Decision)
	assert.NotEmpty(t, decision.ID)

	replayed := replayDecision(t, workflowID, decision.ID)
	assert.NotEqual(t, decision.ID, replayed.ID)
	assert.Equal(t, decision.RuleVersions, replayed.RuleVersions)

	history := getWorkflowDecisions(t, workflowID)
	assert.GreaterOrEqual(t, len(history), 2)

	stats := getDashboardStats(t)
	assert.GreaterOrEqual(t, stats.TotalAudits, int64(2))
}

func createRule(t *testing.T, req rules.CreateRuleRequest) models.ComplianceRule {
	t.Helper()

	var rule models.ComplianceRule
	postJSON(t, "/api/v1/rules", req, http.StatusCreated, &rule)
	return rule
}

func getRule(t *testing.T, ruleID string) models.ComplianceRule {
	t.Helper()

	var rule models.ComplianceRule
	getJSON(t, fmt.Sprintf("/api/v1/rules/%s", ruleID), &rule)
	return rule
}

func updateRule(t *testing.T, ruleID string, req rules.UpdateRuleRequest) models.ComplianceRule {
	t.Helper()

	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(
		"PUT",
		fmt.Sprintf("%s/api/v1/rules/%s", auditServiceURL, ruleID),
		bytes.NewBuffer(body),
	)
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rule models.ComplianceRule
	err = json.NewDecoder(resp.Body).Decode(&rule)
	require.NoError(t, err)

	return rule
}

func listStructuredRules(t *testing.T, ruleID string) []models.StructuredRule {
	t.Helper()

	var structured []models.StructuredRule
	getJSON(t, fmt.Sprintf("/api/v1/rules/%s/structured", ruleID), &structured)
	return structured
}

func createWorkflowEvent(t *testing.T, req workflows.CreateEventRequest) models.WorkflowEvent {
	t.Helper()

	var event models.WorkflowEvent
	postJSON(t, "/api/v1/workflows", req, http.StatusCreated, &event)
	return event
}

func auditWorkflow(t *testing.T, workflowID string) models.ComplianceDecision {
	t.Helper()

	var decision models.ComplianceDecision
	postJSON(t, fmt.Sprintf("/api/v1/workflows/%s/audit", workflowID), nil, http.StatusCreated, &decision)
	return decision
}

func replayDecision(t *testing.T, workflowID, decisionID string) models.ComplianceDecision {
	t.Helper()

	var decision models.ComplianceDecision
	postJSON(t, fmt.Sprintf("/api/v1/workflows/%s/replay/%s", workflowID, decisionID), nil, http.StatusCreated, &decision)
	return decision
}

func getWorkflowDecisions(t *testing.T, workflowID string) []models.ComplianceDecision {
	t.Helper()

	var decisions []models.ComplianceDecision
	getJSON(t, fmt.Sprintf("/api/v1/decisions/%s", workflowID), &decisions)
	return decisions
}

func getDashboardStats(t *testing.T) audit.DashboardStats {
	t.Helper()

	var stats audit.DashboardStats
	getJSON(t, "/api/v1/dashboard/stats", &stats)
	return stats
}

func postJSON(t *testing.T, path string, payload interface{}, wantStatus int, out interface{}) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}

	resp, err := http.Post(auditServiceURL+path, "application/json", &body)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode)

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func getJSON(t *testing.T, path string, out interface{}) {
	t.Helper()

	resp, err := http.Get(auditServiceURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func stringPtr(s string) *string {
	return &s
}
