package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/persistorai/spacestore/internal/models"
	"github.com/persistorai/spacestore/internal/service"
)

// parseAction parses an activity action name, case-insensitively.
func parseAction(s string) (models.Action, error) {
	a := models.Action(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case "", models.ActionCreate, models.ActionUpdate, models.ActionDelete:
		return a, nil
	}

	return "", fmt.Errorf("unknown action %q (want CREATE, UPDATE or DELETE)", s)
}

// parseSince accepts an RFC 3339 time or a duration back from now.
func parseSince(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("--since must be an RFC 3339 time or a positive duration, got %q", s)
	}

	t := now.Add(-d)
	return &t, nil
}

type activityOutput struct {
	Entries []models.ActivityEntry `json:"entries"`
	HasMore bool                   `json:"has_more"`
}

func activityRow(e *models.ActivityEntry) []string {
	diff := ""
	if e.Diff != nil {
		diff = fmt.Sprintf("+%d -%d ~%d", e.Diff.Add, e.Diff.Remove, e.Diff.Replace)
	}

	return []string{
		strconv.FormatInt(e.Seq, 10),
		e.ID,
		strconv.FormatInt(e.Version, 10),
		string(e.Action),
		diff,
		e.RecordedAt.UTC().Format(time.RFC3339),
	}
}

func newActivityCmd() *cobra.Command {
	var featureID, action, since string
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "activity <space>",
		Short: "Query the activity log of a space, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := models.ActivityQueryOpts{FeatureID: featureID, Limit: limit, Offset: offset}

			var err error
			if opts.Action, err = parseAction(action); err != nil {
				return err
			}
			if opts.Since, err = parseSince(since, time.Now()); err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := service.NewActivityService(a.backend.Activity, a.log)
			entries, hasMore, err := svc.QueryActivity(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for i := range entries {
				rows = append(rows, activityRow(&entries[i]))
			}

			return output(cmd.OutOrStdout(), activityOutput{Entries: entries, HasMore: hasMore}, &tableView{
				headers: []string{"SEQ", "ID", "VERSION", "ACTION", "DIFF", "RECORDED"},
				rows:    rows,
			}, strconv.Itoa(len(entries)))
		},
	}
	cmd.Flags().StringVar(&featureID, "feature", "", "Only entries of this feature")
	cmd.Flags().StringVar(&action, "action", "", "Only entries with this action (CREATE|UPDATE|DELETE)")
	cmd.Flags().StringVar(&since, "since", "", "Only entries recorded since an RFC 3339 time or a duration ago")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")

	cmd.AddCommand(newActivityPurgeCmd())

	return cmd
}

func newActivityPurgeCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "purge [space]",
		Short: "Delete activity entries older than the retention period",
		Long:  "Deletes entries older than --days (default ACTIVITY_RETENTION_DAYS) from one space, or every space when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("days") {
				days = a.cfg.ActivityRetentionDays
			}
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			space := ""
			if len(args) == 1 {
				space = args[0]
			}

			deleted, err := service.NewActivityService(a.backend.Activity, a.log).PurgeOldEntries(cmd.Context(), space, days)
			if err != nil {
				return err
			}

			out := map[string]int{"deleted": deleted}
			return output(cmd.OutOrStdout(), out, &tableView{
				headers: []string{"DELETED"},
				rows:    [][]string{{strconv.Itoa(deleted)}},
			}, strconv.Itoa(deleted))
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Retention in days")

	return cmd
}
