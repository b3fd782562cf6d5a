package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/services/acl"
)

type policyFlags struct {
	role    string
	status  string
	mode    string
	at      string
	date    string
	time    string
	company string
}

var policyOpts policyFlags

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print which fields a role may edit on a record",
	Long: `Print the field policy matrix for one role against a sample record.

The record is described by its status, scheduled date and time, and
assigned company. --at sets the evaluation instant (RFC3339, default now).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := bootstrap()
		if err != nil {
			return err
		}
		loc, err := cfg.Policy.TimeLocation()
		if err != nil {
			return err
		}
		return runPolicy(cmd.OutOrStdout(), policyOpts, loc, time.Now())
	},
}

func init() {
	f := policyCmd.Flags()
	f.StringVar(&policyOpts.role, "role", string(models.RoleColaborador), "actor role")
	f.StringVar(&policyOpts.status, "status", "", "record status; empty for a new record")
	f.StringVar(&policyOpts.mode, "mode", string(models.ModeEdit), "form mode: NEW, EDIT or VIEW")
	f.StringVar(&policyOpts.at, "at", "", "evaluation instant in RFC3339")
	f.StringVar(&policyOpts.date, "date", "", "scheduled date (YYYY-MM-DD)")
	f.StringVar(&policyOpts.time, "time", "", "scheduled time (HH:MM)")
	f.StringVar(&policyOpts.company, "company", "", "assigned collaborator company")
}

func runPolicy(w io.Writer, opts policyFlags, loc *time.Location, now time.Time) error {
	role, ok := models.ParseRole(opts.role)
	if !ok {
		return fmt.Errorf("unknown role %q", opts.role)
	}
	mode := models.Mode(strings.ToUpper(strings.TrimSpace(opts.mode)))
	switch mode {
	case models.ModeNew, models.ModeEdit, models.ModeView:
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}

	at := now
	if strings.TrimSpace(opts.at) != "" {
		parsed, err := time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	rec := &models.InspectionRecord{
		Status:                      models.InspectionStatus(strings.ToUpper(strings.TrimSpace(opts.status))),
		ScheduledTime:               strings.TrimSpace(opts.time),
		AssignedCollaboratorCompany: strings.TrimSpace(opts.company),
	}
	if rec.Status != "" && !rec.Status.IsKnown() {
		return fmt.Errorf("unknown status %q", opts.status)
	}
	if d := strings.TrimSpace(opts.date); d != "" {
		parsed, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		rec.RequestDate = &parsed
	}

	policy := acl.NewPolicy(acl.WithLocation(loc))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tEDITABLE\tRULE")
	for _, d := range policy.Explain(role, mode, rec, at) {
		editable := "no"
		if d.Allowed {
			editable = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Field, editable, d.Rule)
	}
	return tw.Flush()
}
