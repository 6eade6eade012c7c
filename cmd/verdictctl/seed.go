package main

import (
	"time"

	"github.com/spf13/cobra"

	"verdict/internal/rules"
	"verdict/internal/workflows"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

// seedCmd loads a starter rule set and sample workflow events. Rules are
// inserted without structured forms so seeding works with no reasoning
// provider configured; run interpret-rules afterwards to backfill them.
func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample compliance rules and workflow events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, log, db, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rulesRepo := rules.NewRepository(db)
			for _, rule := range seedRules() {
				r := rule
				if err := rulesRepo.CreateRule(ctx, &r); err != nil {
					if pkgerrors.Is(err, pkgerrors.ErrConflict) {
						log.Infow("Rule already exists, skipping", "rule_id", r.RuleID)
						continue
					}
					return err
				}
				log.Infow("Rule created", "rule_id", r.RuleID)
			}

			eventsRepo := workflows.NewRepository(db)
			for _, event := range seedEvents() {
				e := event
				if _, err := eventsRepo.GetLatestEvent(ctx, e.WorkflowID); err == nil {
					log.Infow("Workflow already has events, skipping", "workflow_id", e.WorkflowID)
					continue
				}
				if err := eventsRepo.CreateEvent(ctx, &e); err != nil {
					return err
				}
				log.Infow("Workflow event created", "workflow_id", e.WorkflowID)
			}

			log.InfowCtx(ctx, "Seeding completed")
			return nil
		},
	}
}

func seedRules() []models.ComplianceRule {
	rule := func(id string, category models.RuleCategory, severity models.RuleSeverity, text string) models.ComplianceRule {
		return models.ComplianceRule{
			RuleID:   id,
			Category: category,
			RuleText: text,
			Severity: severity,
			Version:  "1",
			Status:   models.RuleStatusActive,
		}
	}

	return []models.ComplianceRule{
		rule("NYDFS-500.12", models.CategorySecurity, models.SeverityHigh,
			"Multi-Factor Authentication must be implemented for any individual accessing the Covered Entity's internal networks from an external network."),
		rule("NYDFS-500.17", models.CategoryOperational, models.SeverityHigh,
			"Each Covered Entity shall notify the Superintendent as promptly as possible but in no event later than 72 hours from a determination that a Cybersecurity Event has occurred."),
		rule("HIPAA-164.502(b)", models.CategoryPrivacy, models.SeverityMedium,
			"When using or disclosing protected health information or when requesting protected health information from another covered entity, a covered entity must make reasonable efforts to limit protected health information to the minimum necessary to accomplish the intended purpose."),
		rule("GLBA-313.4", models.CategoryPrivacy, models.SeverityMedium,
			"A financial institution must provide a clear and conspicuous notice that accurately reflects its privacy policies and practices to individuals who become the institution's customers."),
		rule("NAIC-Claims-Ack", models.CategoryOperational, models.SeverityMedium,
			"Insurers must acknowledge receipt of a claim within 15 working days of receiving the claim notification."),
		rule("NYDFS-500.11", models.CategorySecurity, models.SeverityHigh,
			"Covered Entities must implement written policies and procedures designed to ensure the security of Information Systems and Nonpublic Information that are accessible to, or held by, Third Party Service Providers."),
		rule("HIPAA-164.308(a)(1)", models.CategorySecurity, models.SeverityHigh,
			"Conduct an accurate and thorough assessment of the potential risks and vulnerabilities to the confidentiality, integrity, and availability of electronic protected health information held by the covered entity."),
		rule("GLBA-Safeguards", models.CategorySecurity, models.SeverityHigh,
			"Develop, implement, and maintain a comprehensive information security program that contains administrative, technical, and physical safeguards appropriate to the entity's size and complexity."),
	}
}

func seedEvents() []models.WorkflowEvent {
	now := time.Now()

	return []models.WorkflowEvent{
		{
			WorkflowID:   "WF-001",
			WorkflowType: models.WorkflowClaimProcessing,
			ActorID:      "agent_smith",
			SourceSystem: "claims_portal_v2",
			Attributes: map[string]interface{}{
				"claim_id":            "CLM-101",
				"submission_date":     now.Add(-48 * time.Hour).Format(time.RFC3339),
				"acknowledgment_sent": true,
				"acknowledgment_date": now.Add(-24 * time.Hour).Format(time.RFC3339),
				"description":         "Standard auto glass claim.",
			},
		},
		{
			WorkflowID:   "WF-002",
			WorkflowType: models.WorkflowClaimProcessing,
			ActorID:      "agent_jones",
			SourceSystem: "claims_portal_v2",
			Attributes: map[string]interface{}{
				"claim_id":            "CLM-102",
				"submission_date":     now.Add(-20 * 24 * time.Hour).Format(time.RFC3339),
				"acknowledgment_sent": false,
				"description":         "Delayed property damage claim.",
			},
		},
		{
			WorkflowID:   "WF-003",
			WorkflowType: models.WorkflowDataAccessRequest,
			ActorID:      "remote_user_01",
			SourceSystem: "vpn_gateway",
			Attributes: map[string]interface{}{
				"access_type":     "external",
				"network_segment": "internal_prod",
				"mfa_used":        true,
				"mfa_method":      "TOTP",
				"ip_address":      "192.168.1.50",
			},
		},
		{
			WorkflowID:   "WF-004",
			WorkflowType: models.WorkflowDataAccessRequest,
			ActorID:      "remote_user_02",
			SourceSystem: "vpn_gateway",
			Attributes: map[string]interface{}{
				"access_type":     "external",
				"network_segment": "internal_prod",
				"mfa_used":        false,
				"ip_address":      "203.0.113.5",
			},
		},
		{
			WorkflowID:   "WF-005",
			WorkflowType: models.WorkflowPolicyIssuance,
			ActorID:      "underwriter_01",
			SourceSystem: "policy_admin_system",
			Attributes: map[string]interface{}{
				"customer_id":             "CUST-5001",
				"is_new_customer":         true,
				"privacy_notice_provided": true,
				"notice_delivery_method":  "email",
				"policy_type":             "LIFE",
			},
		},
		{
			WorkflowID:   "WF-006",
			WorkflowType: models.WorkflowPolicyIssuance,
			ActorID:      "underwriter_02",
			SourceSystem: "policy_admin_system",
			Attributes: map[string]interface{}{
				"customer_id":             "CUST-5002",
				"is_new_customer":         true,
				"privacy_notice_provided": false,
				"policy_type":             "HEALTH",
			},
		},
		{
			WorkflowID:   "WF-007",
			WorkflowType: models.WorkflowDataAccessRequest,
			ActorID:      "nurse_joy",
			SourceSystem: "ehr_system",
			Attributes: map[string]interface{}{
				"data_type":                  "PHI",
				"purpose":                    "treatment",
				"fields_accessed":            []string{"patient_name", "current_medications"},
				"limit_to_minimum_necessary": true,
			},
		},
		{
			WorkflowID:   "WF-008",
			WorkflowType: models.WorkflowDataAccessRequest,
			ActorID:      "billing_clerk_01",
			SourceSystem: "ehr_system",
			Attributes: map[string]interface{}{
				"data_type":                  "PHI",
				"purpose":                    "billing_query",
				"fields_accessed":            []string{"full_medical_history", "genetic_data", "psych_notes"},
				"limit_to_minimum_necessary": false,
			},
		},
		{
			WorkflowID:   "WF-009",
			WorkflowType: models.WorkflowApprovalEscalation,
			ActorID:      "ciso_admin",
			SourceSystem: "siem_alert",
			Attributes: map[string]interface{}{
				"event_type":                          "Cybersecurity Event",
				"determination_time":                  now.Add(-24 * time.Hour).Format(time.RFC3339),
				"notification_sent_to_superintendent": true,
				"notification_time":                   now.Add(-2 * time.Hour).Format(time.RFC3339),
			},
		},
		{
			WorkflowID:   "WF-010",
			WorkflowType: models.WorkflowApprovalEscalation,
			ActorID:      "it_staff_01",
			SourceSystem: "siem_alert",
			Attributes: map[string]interface{}{
				"event_type":                          "Cybersecurity Event",
				"determination_time":                  now.Add(-100 * time.Hour).Format(time.RFC3339),
				"notification_sent_to_superintendent": true,
				"notification_time":                   now.Add(-1 * time.Hour).Format(time.RFC3339),
			},
		},
	}
}
