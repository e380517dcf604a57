package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/schaermu/contentsync/internal/reconcile"
)

type planOutput struct {
	Actions []reconcile.Action `json:"actions"`
	Counts  reconcile.Counts   `json:"counts"`
}

// checkPlanFormat rejects formats renderPlan cannot produce.
func checkPlanFormat(format string) error {
	switch format {
	case "text", "json", "":
		return nil
	default:
		return fmt.Errorf("unknown plan format: %s (must be text or json)", format)
	}
}

// renderPlan writes the scheduled actions in the requested format.
func renderPlan(w io.Writer, actions []reconcile.Action, format string) error {
	if err := checkPlanFormat(format); err != nil {
		return err
	}
	counts := reconcile.Count(actions)

	if format == "json" {
		if actions == nil {
			actions = []reconcile.Action{}
		}
		data, err := json.MarshalIndent(planOutput{Actions: actions, Counts: counts}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	if len(actions) == 0 {
		_, err := fmt.Fprintln(w, "nothing to do, destination is in sync")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, a := range actions {
		if a.Kind == reconcile.KindDelete {
			fmt.Fprintf(tw, "%s\t%s\n", a.Kind, a.Target)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s -> %s\n", a.Kind, a.Source, a.Target)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d action(s): %d copy, %d move, %d delete\n",
		counts.Total(), counts.Copy, counts.Move, counts.Delete)
	return err
}
