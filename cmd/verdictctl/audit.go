package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"verdict/internal/audit"
	"verdict/internal/reasoning"
	"verdict/internal/rules"
	"verdict/internal/workflows"
)

// auditCmd runs a one-off audit from the command line. The decision is
// persisted exactly as it would be through the API; no decision event is
// published and no cache is touched.
func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <workflow_id>",
		Short: "Audit a workflow and print the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			workflowID := args[0]

			cfg, log, db, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			completer := reasoning.Completer(reasoning.Unavailable())
			if client, err := reasoning.NewOpenAIClient(cfg.Reasoning); err != nil {
				log.Warnw("Reasoning provider unavailable, audit will require manual review", "error", err)
			} else {
				completer = reasoning.WithBreaker(client, cfg.CircuitBreaker)
			}
			reasoner := reasoning.NewReasoner(completer, cfg.Reasoning.EvaluateTimeout, log)

			svc := audit.NewService(
				audit.NewRepository(db),
				workflows.NewRepository(db),
				rules.NewRepository(db),
				reasoner,
				audit.NewDecisionCache(nil, 0, log),
				nil,
				log,
			)

			decision, err := svc.AuditWorkflow(ctx, workflowID)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
