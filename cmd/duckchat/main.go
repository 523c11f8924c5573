package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"duckchat/internal/app"
	"duckchat/internal/tui"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func newApplication(backendFlag string) (*app.Application, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return nil, err
	}
	if backendFlag != "" {
		cfg.BackendURL = app.NormalizeBackendURL(backendFlag)
	}
	return app.NewApplication(cfg), nil
}

func requestContext(application *app.Application) (context.Context, context.CancelFunc) {
	timeout := time.Duration(application.Config.RequestTimeoutMs) * time.Millisecond
	return context.WithTimeout(context.Background(), timeout)
}

func main() {
	var backendFlag string

	root := &cobra.Command{
		Use:     "duckchat",
		Short:   "Terminal client for the DuckDB analytics agent",
		Long:    "duckchat is a terminal client for the DuckDB analytics agent.\n\nUse without arguments for the interactive chat UI, or with the 'sessions' and 'settings' subcommands for scripted access.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}

			p := tea.NewProgram(tui.New(application), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "", "Backend base URL (overrides config)")

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage conversations",
	}

	sessionsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(application)
			defer cancel()

			list, err := application.Client.ListConversations(ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("No conversations.")
				return nil
			}
			for _, s := range list {
				title := "(untitled)"
				if s.Title != nil && *s.Title != "" {
					title = *s.Title
				}
				fmt.Printf("%s  [%s]  %s\n", s.ID, s.Status, title)
				if s.LastMessagePreview != nil && *s.LastMessagePreview != "" {
					fmt.Printf("    %s\n", *s.LastMessagePreview)
				}
			}
			return nil
		},
	}

	sessionsShowCmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one conversation as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(application)
			defer cancel()

			withEvents, _ := cmd.Flags().GetBool("events")
			detail, err := application.Client.GetConversation(ctx, args[0], withEvents)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(detail, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	sessionsShowCmd.Flags().Bool("events", false, "Include persisted agent events")

	sessionsDeleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(application)
			defer cancel()

			if err := application.Client.DeleteConversation(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	root.AddCommand(sessionsCmd)

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and update backend settings",
	}

	settingsGetCmd := &cobra.Command{
		Use:   "get",
		Short: "Print backend settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(application)
			defer cancel()

			settings, err := application.Client.GetSettings(ctx)
			if err != nil {
				return err
			}
			key := "(not set)"
			if settings.LLMAPIKey != "" {
				key = "********"
			}
			fmt.Printf("llm_api_key: %s\n", key)
			fmt.Printf("llm_model:   %s\n", settings.LLMModel)
			return nil
		},
	}

	var setKey, setModel string
	settingsSetCmd := &cobra.Command{
		Use:   "set",
		Short: "Update backend settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if setKey == "" && setModel == "" {
				return fmt.Errorf("nothing to update: pass --api-key and/or --model")
			}
			application, err := newApplication(backendFlag)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(application)
			defer cancel()

			settings, err := application.Client.UpdateSettings(ctx, app.Settings{
				LLMAPIKey: setKey,
				LLMModel:  setModel,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Updated. llm_model is now %q\n", settings.LLMModel)
			return nil
		},
	}
	settingsSetCmd.Flags().StringVar(&setKey, "api-key", "", "LLM API key")
	settingsSetCmd.Flags().StringVar(&setModel, "model", "", "LLM model identifier")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	root.AddCommand(settingsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
