package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fastygo/taskhub/repository"
	taskUC "github.com/fastygo/taskhub/usecase/task"
)

type reportRow struct {
	taskUC.Workload
	Name  string `json:"name"`
	Email string `json:"email"`
}

func reportCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print task counts per assignee",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := openStorage(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.close()

			rows, err := buildReport(ctx, st.store, projectID, time.Now().UTC())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(rows)
			}
			renderReport(os.Stdout, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "only count tasks of this project")
	return cmd
}

// buildReport summarizes tasks per assignee. Assignees that no longer exist
// keep their id and an empty name.
func buildReport(ctx context.Context, store repository.Store, projectID string, now time.Time) ([]reportRow, error) {
	tasks, err := store.Tasks.List(ctx, repository.TaskFilter{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	users, err := store.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(users))
	for i := range users {
		byID[users[i].ID] = i
	}

	workloads := taskUC.Summarize(tasks, now)
	rows := make([]reportRow, 0, len(workloads))
	for _, w := range workloads {
		row := reportRow{Workload: w}
		if i, ok := byID[w.AssigneeID]; ok {
			row.Name = users[i].Name
			row.Email = users[i].Email
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func renderReport(w io.Writer, rows []reportRow) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Assignee", "Email", "To Do", "In Progress", "Done", "Overdue", "Total"})

	var total taskUC.Workload
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = r.AssigneeID
		}
		tw.AppendRow(table.Row{name, r.Email, r.ToDo, r.InProgress, r.Done, r.Overdue, r.Total})
		total.ToDo += r.ToDo
		total.InProgress += r.InProgress
		total.Done += r.Done
		total.Overdue += r.Overdue
		total.Total += r.Total
	}
	tw.AppendFooter(table.Row{"Total", "", total.ToDo, total.InProgress, total.Done, total.Overdue, total.Total})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	tw.Render()
}
