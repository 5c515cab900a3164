package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/catalyst/backend/internal/analysis/feasibility"
	"github.com/zhouzirui/catalyst/backend/internal/config"
	"github.com/zhouzirui/catalyst/backend/internal/export"
	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

type storeFlags struct {
	backend string
	path    string
}

// openStore resolves the store from the environment, with flag overrides.
func (f *storeFlags) openStore(ctx context.Context) (storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	storeCfg := cfg.Store
	if f.backend != "" {
		storeCfg.Backend = f.backend
	}
	if f.path != "" {
		storeCfg.Path = f.path
	}
	return storage.Open(ctx, storeCfg)
}

func newRootCmd() *cobra.Command {
	flags := &storeFlags{}

	rootCmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect and maintain saved Catalyst sessions",
		Long: titleStyle.Render("sessionctl") + `

Reads the session store configured by CATALYST_STORE and friends.

` + dimStyle.Render("Use 'sessionctl [command] --help' for more information."),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.backend, "store", "", "store backend: file, sqlite or redis")
	rootCmd.PersistentFlags().StringVar(&flags.path, "path", "", "store file path for file and sqlite backends")

	rootCmd.AddCommand(
		newListCmd(flags),
		newShowCmd(flags),
		newDeleteCmd(flags),
		newExportCmd(flags),
	)
	return rootCmd
}

func loadSessions(cmd *cobra.Command, flags *storeFlags) (storage.Store, []chat.Session, error) {
	store, err := flags.openStore(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	sessions, err := store.Load(cmd.Context())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	return store, sessions, nil
}

func findSession(sessions []chat.Session, id string) (chat.Session, error) {
	idx := slices.IndexFunc(sessions, func(s chat.Session) bool { return s.ID == id })
	if idx < 0 {
		return chat.Session{}, fmt.Errorf("%w: %s", chat.ErrSessionNotFound, id)
	}
	return sessions[idx], nil
}

func newListCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, sessions, err := loadSessions(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, dimStyle.Render("No sessions saved yet."))
				return nil
			}

			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))
			fmt.Fprintln(out)
			for _, s := range sessions {
				fmt.Fprintf(out, "  %s  %-8s %s\n",
					dimStyle.Render(time.UnixMilli(s.Date).Format("2006-01-02 15:04")),
					s.Mode,
					s.Title,
				)
				fmt.Fprintf(out, "  %s\n", dimStyle.Render(s.ID))
			}
			return nil
		},
	}
}

func newShowCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a session transcript and its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, sessions, err := loadSessions(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := findSession(sessions, args[0])
			if err != nil {
				return err
			}
			renderSession(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func renderSession(out io.Writer, s chat.Session) {
	fmt.Fprintln(out, titleStyle.Render(s.Title))
	fmt.Fprintf(out, "%s  %s\n\n", dimStyle.Render(s.ID), dimStyle.Render(time.UnixMilli(s.Date).Format(time.RFC1123)))

	for _, m := range s.Messages {
		speaker := "Catalyst"
		if m.Role == chat.RoleUser {
			speaker = "You"
		}
		label := successStyle.Render(speaker + ":")
		if m.IsError {
			label = errorStyle.Render(speaker + ":")
		}
		fmt.Fprintf(out, "%s %s\n", label, m.Text)
	}

	r := s.AnalysisResult
	if r == nil {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("Analysis: "+r.IdeaName))
	fmt.Fprintf(out, "Overall score: %s\n", scoreStyle(r.OverallScore).Render(fmt.Sprintf("%d/100", r.OverallScore)))
	for _, m := range r.Metrics {
		fmt.Fprintf(out, "  %-14s %s  %s\n", m.Metric, scoreStyle(m.Score).Render(fmt.Sprintf("%3d", m.Score)), dimStyle.Render(m.Reasoning))
	}
	if r.Recommendation != "" {
		fmt.Fprintf(out, "\n%s\n", r.Recommendation)
	}
}

func scoreStyle(score int) lipgloss.Style {
	switch feasibility.BandFor(score) {
	case feasibility.Strong:
		return successStyle
	case feasibility.Moderate:
		return warnStyle
	default:
		return errorStyle
	}
}

func newDeleteCmd(flags *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, sessions, err := loadSessions(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := findSession(sessions, args[0]); err != nil {
				return err
			}
			remaining := slices.DeleteFunc(sessions, func(s chat.Session) bool { return s.ID == args[0] })
			if err := store.Save(cmd.Context(), remaining); err != nil {
				return fmt.Errorf("failed to save sessions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deleted "+args[0]))
			return nil
		},
	}
}

func newExportCmd(flags *storeFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "export [csv|pdf] [session-id]",
		Short:     "Export a session's feasibility analysis",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"csv", "pdf"},
		RunE: func(cmd *cobra.Command, args []string) error {
			format := strings.ToLower(args[0])
			write, name := export.WriteCSV, export.CSVFileName
			switch format {
			case "csv":
			case "pdf":
				write, name = export.WritePDF, export.PDFFileName
			default:
				return fmt.Errorf("unknown format %q, want csv or pdf", args[0])
			}

			store, sessions, err := loadSessions(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			s, err := findSession(sessions, args[1])
			if err != nil {
				return err
			}
			if s.AnalysisResult == nil {
				return export.ErrNoAnalysis
			}

			path := output
			if path == "" {
				path = name(s.AnalysisResult)
			}
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := write(f, s.AnalysisResult); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Wrote "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default derived from the idea name)")
	return cmd
}
