package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"verdict/internal/reasoning"
	"verdict/internal/rules"
	pkgerrors "verdict/pkg/errors"
)

const interpretConcurrency = 4

// interpretRulesCmd backfills structured forms for rules that do not have one
// yet, such as rules loaded by seed. Each rule costs one reasoning call, so
// the backfill runs a few rules at a time.
func interpretRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interpret-rules",
		Short: "Interpret rules that have no structured form",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, log, db, cleanup, err := setup(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := reasoning.NewOpenAIClient(cfg.Reasoning)
			if err != nil {
				return err
			}
			completer := reasoning.WithBreaker(client, cfg.CircuitBreaker)
			interpreter := reasoning.NewInterpreter(completer, cfg.Reasoning.InterpretTimeout, log)

			repo := rules.NewRepository(db)
			active, err := repo.ListActiveRules(ctx)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(interpretConcurrency)

			for _, rule := range active {
				rule := rule

				if _, err := repo.GetLatestStructuredRule(ctx, rule.RuleID); err == nil {
					log.Infow("Rule already interpreted, skipping", "rule_id", rule.RuleID)
					continue
				} else if !pkgerrors.IsNotFound(err) {
					return err
				}

				g.Go(func() error {
					structured, err := interpreter.Interpret(gctx, rule)
					if err != nil {
						log.Errorw("Interpretation failed", "rule_id", rule.RuleID, "error", err)
						return err
					}
					if err := repo.CreateStructuredRule(gctx, &structured); err != nil {
						return err
					}
					log.Infow("Rule interpreted", "rule_id", rule.RuleID, "version", structured.Version)
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			log.InfowCtx(ctx, "Interpretation backfill completed")
			return nil
		},
	}
}
