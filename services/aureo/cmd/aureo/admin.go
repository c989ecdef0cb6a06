package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miquiestampas/Aureo/pkg/queue"
)

func newMigrateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := openCore(*cfgPath)
			if err != nil {
				return err
			}
			defer c.Close()
			c.logger.Info("database migrated")
			return nil
		},
	}
}

func newCreateSuperAdminCmd(cfgPath *string) *cobra.Command {
	var username, name string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create the SuperAdmin account (password from AUREO_SUPERADMIN_PASSWORD)",
		RunE: func(_ *cobra.Command, _ []string) error {
			password := os.Getenv("AUREO_SUPERADMIN_PASSWORD")
			if strings.TrimSpace(password) == "" {
				return fmt.Errorf("AUREO_SUPERADMIN_PASSWORD is not set")
			}
			c, err := openCore(*cfgPath)
			if err != nil {
				return err
			}
			defer c.Close()
			user, err := c.app.EnsureSuperAdmin(username, name, password)
			if err != nil {
				return fmt.Errorf("create superadmin: %w", err)
			}
			c.logger.Info("superadmin created", "user_id", user.ID, "username", user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "login name")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	return cmd
}

func newReprocessCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <activity-id>",
		Short: "Reset a file activity to Pending and process it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openCore(*cfgPath)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx := cmd.Context()
			activity, err := c.app.Reprocess(ctx, args[0], "")
			if err != nil {
				return fmt.Errorf("reprocess %s: %w", args[0], err)
			}
			if _, ok := c.queue.(*queue.WorkerPool); !ok {
				c.logger.Info("activity queued", "activity_id", activity.ID)
				return nil
			}
			// the in-process pool dies with this command, so run the task here
			if err := c.app.ProcessActivity(ctx, queue.Task{ActivityID: activity.ID, FileType: activity.FileType}); err != nil {
				return err
			}
			done, err := c.app.GetActivity(activity.ID)
			if err != nil {
				return err
			}
			c.logger.Info("activity processed", "activity_id", done.ID, "status", done.Status, "error", done.ErrorMessage)
			return nil
		},
	}
}
