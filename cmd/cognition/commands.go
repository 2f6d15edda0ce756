package main

// #region imports
import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aceylabs/cognition/internal/feedback"
	"github.com/aceylabs/cognition/internal/llm"
	"github.com/aceylabs/cognition/internal/loop"
	"github.com/aceylabs/cognition/internal/provenance"
	"github.com/aceylabs/cognition/internal/replay"
)

// #endregion

// #region process

// newProcessCmd governs one pre-generated action: the output already
// exists, the loop decides whether it ships, hedges, or defers.
func newProcessCmd(cfgPath *string) *cobra.Command {
	var (
		id, input, output, source, model string
		confidence                       float64
		causedBy, chat                   []string
		isTask                           bool
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one generated action through the governance loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			var events []feedback.ChatEvent
			for _, msg := range chat {
				events = append(events, feedback.ChatEvent{
					Type: feedback.EventMessage, Content: msg, Timestamp: time.Now().UTC(),
				})
			}

			res := a.orch.ProcessAction(loop.Action{
				ID:           id,
				Type:         provenance.Source(source),
				Input:        input,
				Output:       output,
				Confidence:   confidence,
				CausedBy:     causedBy,
				ModelVersion: model,
				IsTask:       isTask,
			}, nil, events)

			printResult(res)
			if !res.Success {
				return fmt.Errorf("action failed at stage %s: %s", res.Stage, res.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "action id (generated when empty)")
	cmd.Flags().StringVar(&input, "input", "", "prompt or trigger context")
	cmd.Flags().StringVar(&output, "output", "", "generated output text")
	cmd.Flags().StringVar(&source, "source", string(provenance.SourceSelfGenerated), "provenance source")
	cmd.Flags().StringVar(&model, "model", "", "model version that generated the output")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.5, "generation confidence [0,1]")
	cmd.Flags().StringSliceVar(&causedBy, "caused-by", nil, "parent memory ids")
	cmd.Flags().StringArrayVar(&chat, "chat", nil, "audience chat message (repeatable)")
	cmd.Flags().BoolVar(&isTask, "task", false, "the action answers a concrete task")
	cmd.MarkFlagRequired("output")
	return cmd
}

func printResult(res loop.ActionResult) {
	fmt.Printf("action   %s\n", res.Provenance.MemoryID)
	fmt.Printf("stage    %s\n", res.Stage)
	fmt.Printf("risk     %s (%.2f)\n", res.Hallucination.Risk, res.Hallucination.Score)
	for _, rec := range res.Hallucination.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
	fmt.Printf("evals    %d cases generated\n", len(res.EvalCases))
	if res.FeedbackSignal != nil {
		fmt.Printf("feedback +%.2f/-%.2f hype %.2f\n",
			res.FeedbackSignal.Positive, res.FeedbackSignal.Negative, res.FeedbackSignal.HypeLevel)
	}
	fmt.Printf("output   %s\n", res.FinalOutput)
}

// #endregion process

// #region host

// newHostCmd generates output through the LLM sidecar and immediately
// governs it, so nothing reaches the table ungoverned.
func newHostCmd(cfgPath *string) *cobra.Command {
	var (
		endpoint, model, prompt, context string
		chat                             []string
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Generate host output via the LLM endpoint and govern it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			client := llm.NewClient(endpoint, os.Getenv("COGNITION_LLM_KEY"), model)
			text, confidence, err := client.Generate(cmd.Context(), prompt, context)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			var events []feedback.ChatEvent
			for _, msg := range chat {
				events = append(events, feedback.ChatEvent{
					Type: feedback.EventMessage, Content: msg, Timestamp: time.Now().UTC(),
				})
			}

			res := a.orch.ProcessAction(loop.Action{
				Type:         provenance.SourceSelfGenerated,
				Input:        prompt,
				Output:       text,
				Confidence:   confidence,
				ModelVersion: model,
			}, nil, events)

			printResult(res)
			if !res.Success {
				return fmt.Errorf("action failed at stage %s: %s", res.Stage, res.FailureReason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8080/v1", "OpenAI-compatible endpoint")
	cmd.Flags().StringVar(&model, "model", "host-model", "model name")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt for the host")
	cmd.Flags().StringVar(&context, "context", "", "system context")
	cmd.Flags().StringArrayVar(&chat, "chat", nil, "audience chat message (repeatable)")
	cmd.MarkFlagRequired("prompt")
	return cmd
}

// #endregion host

// #region gate

func newGateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gate",
		Short: "Evaluate the training gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			gate, err := a.orch.RunTrainingGate()
			if err != nil {
				return err
			}
			verdict := "BLOCKED"
			if gate.CanProceed {
				verdict = "PROCEED"
			}
			fmt.Printf("%s — %s\n", verdict, gate.Reason)
			fmt.Printf("evaluations: %s (avg %.2f over %d cases)\n",
				favorable(gate.EvaluationStatus.CanProceed), gate.EvaluationStatus.AverageScore, gate.EvaluationStatus.CaseCount)
			fmt.Printf("hallucination: %s (%s)\n", favorable(gate.HallucinationStatus.Favorable), gate.HallucinationStatus.Detail)
			fmt.Printf("feedback: %s (%s)\n", favorable(gate.FeedbackStatus.Favorable), gate.FeedbackStatus.Detail)
			if !gate.CanProceed {
				return fmt.Errorf("training gate blocked")
			}
			return nil
		},
	}
}

func favorable(ok bool) string {
	if ok {
		return "favorable"
	}
	return "unfavorable"
}

// #endregion gate

// #region status

func newStatusCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report subsystem health",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.orch.Status()
			if err != nil {
				return err
			}
			fmt.Printf("overall        %s\n", status.Overall)
			fmt.Printf("provenance     %-8s %s\n", status.Provenance, status.Detail["provenance"])
			fmt.Printf("hallucination  %-8s %s\n", status.Hallucination, status.Detail["hallucination"])
			fmt.Printf("evaluation     %-8s %s\n", status.Evaluation, status.Detail["evaluation"])
			fmt.Printf("feedback       %-8s %s\n", status.Feedback, status.Detail["feedback"])
			return nil
		},
	}
}

// #endregion status

// #region suspicious

func newSuspiciousCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "suspicious",
		Short: "List low-confidence self-generated memory chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			chains, err := a.orch.FindSuspiciousChains()
			if err != nil {
				return err
			}
			if len(chains) == 0 {
				fmt.Println("no suspicious chains")
				return nil
			}
			for _, c := range chains {
				fmt.Printf("%.2f  %v\n      %s\n", c.Confidence, c.Chain, c.Reason)
			}
			return nil
		},
	}
}

// #endregion suspicious

// #region suites

func newSuitesCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suites",
		Short: "Inspect and run evaluation suites",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List suites with status and scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			ids, err := a.evalSt.ListSuiteIDs()
			if err != nil {
				return err
			}
			for _, id := range ids {
				suite, err := a.evalSt.GetSuite(id)
				if err != nil {
					return err
				}
				fmt.Printf("%-24s %-10s %3d cases  avg %.2f\n", suite.ID, suite.Status, len(suite.Cases), suite.AverageScore)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run <suite-id>",
		Short: "Run every case in a suite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			suite, err := a.evalMgr.RunSuite(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s — avg %.2f over %d cases\n", suite.ID, suite.Status, suite.AverageScore, len(suite.Cases))
			for _, c := range suite.Cases {
				fmt.Printf("  %-18s %.2f  %s\n", c.Type, c.Score, c.ID)
			}
			return nil
		},
	})

	return cmd
}

// #endregion suites

// #region replay

func newReplayCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay a recorded fixture against the current scorer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			fixture, err := replay.Load(args[0])
			if err != nil {
				return err
			}
			report := replay.NewRunner(a.scorer).Run(fixture)
			fmt.Printf("%s: %d entries, %d divergent\n", report.Fixture, report.Total, report.Divergent)
			for _, d := range report.Divergences {
				fmt.Printf("  %s %s: recorded %s, replay %s\n", d.ActionID, d.Field, d.Expected, d.Got)
			}
			if !report.Clean() {
				return fmt.Errorf("replay diverged")
			}
			return nil
		},
	}
}

func newExportFixtureCmd(cfgPath *string) *cobra.Command {
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Snapshot recent decisions into a replay fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			fixture, err := replay.FromAuditLog(a.auditLog, time.Now().UTC().Format("2006-01-02"), limit)
			if err != nil {
				return err
			}
			if err := replay.Save(fixture, out); err != nil {
				return err
			}
			fmt.Printf("wrote %d entries to %s\n", len(fixture.Entries), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "fixture.json", "output path")
	cmd.Flags().IntVar(&limit, "limit", 100, "max decisions to export")
	return cmd
}

// #endregion replay

// #region persona

func newPersonaCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage the host persona baseline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <utterance>",
		Short: "Add a baseline utterance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.persona.Add(args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List baseline utterances",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			utterances, err := a.persona.All()
			if err != nil {
				return err
			}
			for _, u := range utterances {
				fmt.Printf("%4d  %s\n", u.ID, u.Text)
			}
			return nil
		},
	})

	return cmd
}

// #endregion persona

// #region prune

func newPruneCmd(cfgPath *string) *cobra.Command {
	var maxAgeHours float64

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove memory nodes older than the age cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			hours := maxAgeHours
			if hours <= 0 {
				hours = a.cfg.Provenance.PruneMaxAgeHours
			}
			if hours <= 0 {
				return fmt.Errorf("no age cutoff: pass --max-age-hours or set provenance.prune_max_age_hours")
			}
			removed, err := a.prov.Prune(time.Duration(hours * float64(time.Hour)))
			if err != nil {
				return err
			}
			fmt.Printf("removed %d nodes\n", removed)
			return nil
		},
	}

	cmd.Flags().Float64Var(&maxAgeHours, "max-age-hours", 0, "age cutoff in hours (overrides config)")
	return cmd
}

// #endregion prune
