package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для просмотра задач.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect import tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskAnalysisCmd(clientFn, outputFn),
		newTaskDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

var taskHeaders = []string{"ID", "TYPE", "STATUS", "DATASET", "INDEX", "READS", "WRITES", "FILES", "UPDATED"}

func taskRow(t TaskResponse) []string {
	return []string{
		t.ID, t.Type, t.Status, t.DatasetID, t.Index,
		strconv.Itoa(t.Reads), strconv.Itoa(t.Writes), strconv.Itoa(t.FilesProcessed),
		t.UpdatedAt,
	}
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListTasksOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, total, err := client.ListTasks(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			out.Print(taskHeaders, rows, tasks)
			out.Success(fmt.Sprintf("%d of %d tasks", len(tasks), total))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "Filter by type (TASK_CREATE, TASK_CONCAT, TASK_APPEND, ...)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (INIT, INDEX_CREATED, READ, SAVED, ERROR, ...)")
	cmd.Flags().StringVar(&opts.DatasetID, "dataset", "", "Filter by dataset ID")
	cmd.Flags().StringVar(&opts.CreatedAt, "created-at", "", "Created on day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.CreatedBefore, "created-before", "", "Created before day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.CreatedAfter, "created-after", "", "Created on or after day (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "Page number (starts at 1)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "Page size (max 100)")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			out.Details([][2]string{
				{"ID", task.ID},
				{"Type", task.Type},
				{"Status", task.Status},
				{"Dataset", task.DatasetID},
				{"Index", task.Index},
				{"Elastic task", task.ElasticTaskID},
				{"Reads", strconv.Itoa(task.Reads)},
				{"Writes", strconv.Itoa(task.Writes)},
				{"Files processed", strconv.Itoa(task.FilesProcessed)},
				{"Events", strconv.Itoa(len(task.Logs))},
				{"Error", task.Error},
				{"Created", task.CreatedAt},
				{"Updated", task.UpdatedAt},
			}, task)
			return nil
		},
	}
}

func newTaskAnalysisCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "analysis TASK_ID",
		Short: "Show per-file read/write diagnostics (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			a, err := client.GetTaskAnalysis(args[0])
			if err != nil {
				return err
			}

			files := make([]string, 0, len(a.FileData))
			for f := range a.FileData {
				files = append(files, f)
			}
			sort.Strings(files)

			rows := make([][]string, len(files))
			for i, f := range files {
				fd := a.FileData[f]
				rows[i] = []string{
					f,
					strconv.Itoa(fd.ReadFile),
					strconv.Itoa(fd.ReadData),
					strconv.Itoa(fd.WrittenData),
					strconv.Itoa(len(fd.MismatchingReads)),
					strconv.Itoa(len(fd.MismatchingWrites)),
				}
			}

			out.Print([]string{"FILE", "READ_FILE", "READ_DATA", "WRITTEN", "UNWRITTEN", "UNREAD"}, rows, a)
			out.Success(fmt.Sprintf("urls=%d files=%d reads=%d writes=%d",
				a.OriginalURLCount, a.FilesProcessedOnTask, a.ReadsOnTask, a.WritesOnTask))
			return nil
		},
	}
}

func newTaskDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete a task record (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.DeleteTask(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task deleted: %s (%s)", task.ID, task.Status))
			return nil
		},
	}
}
