// Command codeforge is a thin CLI front-end over the core: enough to
// exercise sync, watch, and the query services without the HTTP/WebSocket
// or stdio JSON-RPC transports those live behind in production (§1, §6).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"codeforge/internal/app"
	"codeforge/internal/config"
	"codeforge/internal/logging"
	"codeforge/internal/model"
)

var (
	configPath  string
	projectSlug string
	workspace   string
)

var rootCmd = &cobra.Command{
	Use:   "codeforge",
	Short: "codeforge - code-intelligence and workflow-coordination core",
	Long: `codeforge ingests a source tree into a knowledge graph and search
index, and exposes plan/task/note workflow queries over it.

This binary is a direct caller of the core components (§1, §6); it is not
the HTTP/WebSocket API or the stdio JSON-RPC tool server those transports
implement separately.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults used when absent)")
	rootCmd.PersistentFlags().StringVar(&projectSlug, "project", "", "project slug (default: derived from --workspace)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "project root directory (default: current directory)")

	rootCmd.AddCommand(syncCmd, watchCmd, nextTaskCmd)
}

func buildApp() (*app.App, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return app.New(cfg)
}

func resolveProject(ctx context.Context, a *app.App) (model.Project, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return model.Project{}, err
		}
		ws = cwd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return model.Project{}, err
	}
	slug := projectSlug
	if slug == "" {
		slug = filepath.Base(abs)
	}
	existing, err := a.Graph.GetProjectBySlug(ctx, slug)
	if err == nil {
		return existing, nil
	}
	return a.Graph.UpsertProject(ctx, model.Project{
		ID:        uuid.NewString(),
		Slug:      slug,
		Name:      slug,
		RootPath:  abs,
		CreatedAt: time.Now(),
	})
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Walk --workspace and reconcile the graph and search index with it (§4.D)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		project, err := resolveProject(ctx, a)
		if err != nil {
			return fmt.Errorf("resolve project: %w", err)
		}
		stats, err := a.Sync.Sync(ctx, project)
		if err != nil {
			return err
		}
		fmt.Printf("synced %s: %d files, %d failed, %dms\n", project.Slug, stats.FilesSynced, stats.FilesFailed, stats.DurationMs)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch --workspace and re-sync on change until interrupted (§4.E)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		project, err := resolveProject(ctx, a)
		if err != nil {
			return fmt.Errorf("resolve project: %w", err)
		}
		if _, err := a.Sync.Sync(ctx, project); err != nil {
			logging.Get(logging.CategoryBoot).Error("initial sync failed: %v", err)
		}
		if err := a.Watch(ctx, project); err != nil {
			return err
		}
		fmt.Printf("watching %s (%s); ctrl-C to stop\n", project.Slug, project.RootPath)
		<-ctx.Done()
		return nil
	},
}

var nextTaskCmd = &cobra.Command{
	Use:   "next-task <plan-id>",
	Short: "Print the highest-priority unblocked task in a plan (§4.F)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		task, ok, err := a.Workflow.NextTask(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no available task")
			return nil
		}
		fmt.Printf("%s\t%s\t(priority %d)\n", task.ID, task.Title, task.Priority)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
