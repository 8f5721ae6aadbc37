// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vitakit/vita-chat/internal/export"
	"github.com/vitakit/vita-chat/internal/session"
)

var (
	flagExportFormat string
	flagExportDir    string
	flagListAll      bool
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Manage stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions grouped by date",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		sessions := app.Store.Listed()
		if flagListAll {
			sessions = app.Store.Sessions()
		}
		if len(sessions) == 0 {
			fmt.Println(infoStyle.Render("No sessions yet. Start one with: vita chat"))
			return nil
		}
		printGroupedSessions(cmd.OutOrStdout(), sessions, time.Now())
		return nil
	},
}

var sessionsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search sessions by title and content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		results := session.SearchSessions(app.Store.Sessions(), args[0])
		if len(results) == 0 {
			fmt.Println(infoStyle.Render("No matching sessions."))
			return nil
		}
		printSessionTable(cmd.OutOrStdout(), results)
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		sess, err := findSession(app.Store, args[0])
		if err != nil {
			return err
		}
		title := sess.Title
		app.Store.Delete(sess.ID)
		fmt.Println(commandStyle.Render(fmt.Sprintf("Deleted %q.", title)))
		return nil
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a session to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		sess, err := findSession(app.Store, args[0])
		if err != nil {
			return err
		}

		opts := export.DefaultOptions()
		if flagExportDir != "" {
			opts.OutputDir = flagExportDir
		}
		exporter, err := export.ForFormat(flagExportFormat, opts)
		if err != nil {
			return err
		}

		path, err := export.ExportToFile(sess, exporter, opts)
		if err != nil {
			return err
		}
		fmt.Println(commandStyle.Render("Exported to " + path))
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().BoolVarP(&flagListAll, "all", "a", false, "Include archived sessions")
	sessionsExportCmd.Flags().StringVarP(&flagExportFormat, "format", "f", "markdown", "Export format (markdown, json, yaml)")
	sessionsExportCmd.Flags().StringVarP(&flagExportDir, "out", "o", "", "Output directory (default current directory)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsSearchCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// =============================================================================
// TABLE RENDERING
// =============================================================================

const (
	titleColWidth = 38
	idColWidth    = 10
)

// printGroupedSessions renders sessions under date-bucket headers.
func printGroupedSessions(w io.Writer, sessions []*session.Session, now time.Time) {
	for _, group := range session.GroupByDate(sessions, now) {
		fmt.Fprintln(w, headerStyle.Render(string(group.Bucket)))
		for _, sess := range group.Sessions {
			fmt.Fprintln(w, formatSessionLine(sess))
		}
		fmt.Fprintln(w)
	}
}

// printSessionTable renders a flat session list.
func printSessionTable(w io.Writer, sessions []*session.Session) {
	for _, sess := range sessions {
		fmt.Fprintln(w, formatSessionLine(sess))
	}
}

// formatSessionLine renders one session row with fixed-width columns.
// Wide runes in titles are measured, not counted, so CJK titles line up.
func formatSessionLine(sess *session.Session) string {
	marker := "  "
	if sess.IsPinned {
		marker = pinStyle.Render("* ")
	}

	title := sess.Title
	if sess.IsArchived {
		title += " (archived)"
	}
	title = padCell(title, titleColWidth)

	id := padCell(sess.ID, idColWidth)

	return fmt.Sprintf("%s%s  %s  %s  %s",
		marker,
		titleStyle.Render(title),
		idStyle.Render(id),
		dateStyle.Render(sess.UpdatedAt.Format("Jan 02 15:04")),
		infoStyle.Render(fmt.Sprintf("%d msgs", sess.MessageCount)),
	)
}

// padCell truncates to width (display cells, not runes) and pads with
// spaces to exactly width.
func padCell(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width-1, "…")
	}
	return runewidth.FillRight(s, width)
}
