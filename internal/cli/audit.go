package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/session"
	"github.com/ppiankov/crowdframe/internal/worker"
)

var (
	auditConcurrency int
	auditTimeout     time.Duration
	auditList        bool
	auditReport      string
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit <dir|file>",
	Short: "Replay gold checks over stored session snapshots in parallel",
	Long: `Audit re-runs the gold check of every stored session snapshot:
- Read every *.json snapshot in a directory (or paths listed in a file)
- Rebuild the gold answers from the recorded dimension value ledger
- Re-evaluate the gold policy the session resolved
- Flag snapshots whose replayed checks differ from the recorded ones

Example:
  crowdframe audit ./snapshots
  crowdframe audit paths.txt --list --concurrency 8
  crowdframe audit ./snapshots --report audit.json`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)

	auditCmd.Flags().IntVar(&auditConcurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	auditCmd.Flags().DurationVar(&auditTimeout, "timeout", 10*time.Minute, "total timeout for the audit")
	auditCmd.Flags().BoolVar(&auditList, "list", false, "treat the argument as a file of snapshot paths (one per line)")
	auditCmd.Flags().StringVar(&auditReport, "report", "", "write the audit reports as JSON to this path")
}

// auditEntry is the JSON shape of one audited snapshot
type auditEntry struct {
	Path   string             `json:"path"`
	Report *model.AuditReport `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func runAudit(cmd *cobra.Command, args []string) error {
	target := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Crowdframe Gold Audit\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", target)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", auditConcurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", auditTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	processor := worker.NewBatchProcessor(session.Auditor{}, auditConcurrency)

	var (
		results []*worker.AuditResult
		err     error
	)
	if auditList {
		results, err = processor.ProcessFile(ctx, target)
	} else {
		results, err = processor.ProcessDir(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Audited %d snapshots\n\n", len(results))

	var passed, failed, inconsistent, broken int
	for _, r := range results {
		name := filepath.Base(r.Path)
		if r.Error != nil {
			broken++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", name, r.Error)
			continue
		}

		rep := r.Report
		if rep.Passed {
			passed++
		} else {
			failed++
		}
		switch {
		case !rep.Consistent:
			inconsistent++
			fmt.Fprintf(os.Stderr, "✗ %s: worker %s try %d replayed %v, recorded %v\n",
				name, rep.Worker, rep.TryCurrent, rep.Checks, rep.Recorded)
		case rep.Passed:
			fmt.Fprintf(os.Stderr, "✓ %s: worker %s try %d passed (%s)\n", name, rep.Worker, rep.TryCurrent, rep.Policy)
		default:
			fmt.Fprintf(os.Stderr, "· %s: worker %s try %d failed gold %v (%s)\n",
				name, rep.Worker, rep.TryCurrent, rep.Checks, rep.Policy)
		}
	}

	if auditReport != "" {
		entries := make([]auditEntry, 0, len(results))
		for _, r := range results {
			e := auditEntry{Path: r.Path, Report: r.Report}
			if r.Error != nil {
				e.Error = r.Error.Error()
			}
			entries = append(entries, e)
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(auditReport, data, 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Audit Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d snapshots\n", len(results))
	fmt.Fprintf(os.Stderr, "  Passed:       %d\n", passed)
	fmt.Fprintf(os.Stderr, "  Failed:       %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Inconsistent: %d\n", inconsistent)
	fmt.Fprintf(os.Stderr, "  Unreadable:   %d\n", broken)
	if auditReport != "" {
		fmt.Fprintf(os.Stderr, "  Report:       %s\n", auditReport)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if inconsistent > 0 {
		return fmt.Errorf("%d snapshots have gold checks that do not replay", inconsistent)
	}
	return nil
}
