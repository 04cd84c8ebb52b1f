package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"taskboard/internal/export/googletasks"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

func purgeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete tasks whose trash retention has elapsed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			trash := service.NewTrashService(a.tasks, service.SystemClock(), a.cfg.TrashRetention, a.logger)
			n, err := trash.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d task(s)\n", n)
			return nil
		},
	}
}

// importFile is the YAML layout accepted by the import command.
type importFile struct {
	Tasks []service.ImportRow `yaml:"tasks"`
}

func importCmd(configPath *string) *cobra.Command {
	var (
		file       string
		adminEmail string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-create admin-assigned tasks from a YAML file",
		Long: `Bulk-create admin-assigned tasks from a YAML file.

Example rows.yaml:
  tasks:
    - title: Prepare invoices
      assignedTo: alice@example.com
      dueDate: 2024-06-01T09:00:00Z
      priority: High`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readImportFile(file)
			if err != nil {
				return err
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			admin, err := a.userService().FindByEmail(cmd.Context(), adminEmail)
			if err != nil {
				return err
			}
			imports := service.NewImportService(a.tasks, a.users, a.logger)
			result, err := imports.Import(cmd.Context(), service.ActorFor(admin), rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d, failed %d\n", result.CreatedCount, result.FailedCount)
			for _, f := range result.Failed {
				fmt.Fprintf(out, "  row %d (%s): %s\n", f.Row, f.Title, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a tasks list")
	cmd.Flags().StringVar(&adminEmail, "admin", "", "email of the admin assigning the tasks")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}

func readImportFile(path string) ([]service.ImportRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f importFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f.Tasks, nil
}

func exportGoogleCmd(configPath *string) *cobra.Command {
	var (
		email  string
		listID string
	)
	cmd := &cobra.Command{
		Use:   "export-google",
		Short: "Push a user's active tasks to Google Tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return runExportGoogle(cmd.Context(), a, email, listID, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account whose tasks are exported")
	cmd.Flags().StringVar(&listID, "list", googletasks.DefaultListID, "Google Tasks list id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runExportGoogle(ctx context.Context, a *app, email, listID string, out io.Writer) error {
	user, err := a.userService().FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	tasks := service.NewTaskService(a.tasks, a.users, service.SystemClock(), a.logger)
	items, err := tasks.List(ctx, service.ActorFor(user), repository.TaskFilter{})
	if err != nil {
		return err
	}

	client, err := googletasks.New(ctx, a.cfg.GoogleDir)
	if err != nil {
		return err
	}
	res := client.Export(ctx, listID, items)
	fmt.Fprintf(out, "exported %d of %d task(s)\n", res.Exported, len(items))
	for id, err := range res.Failed {
		a.logger.Error("export task", "task_id", id, "err", err)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d task(s) failed to export", len(res.Failed))
	}
	return nil
}
