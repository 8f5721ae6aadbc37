// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/vitakit/vita-chat/internal/ai"
	"github.com/vitakit/vita-chat/internal/config"
	"github.com/vitakit/vita-chat/internal/export"
	"github.com/vitakit/vita-chat/internal/model"
	"github.com/vitakit/vita-chat/internal/session"
	"github.com/vitakit/vita-chat/internal/util"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat with streaming responses.

Interactive commands:
  /help             Show available commands
  /new [title]      Start a new session
  /list             List sessions
  /switch <id>      Switch to another session
  /title <text>     Rename the current session
  /pin, /unpin      Pin or unpin the current session
  /archive          Archive the current session
  /delete [id]      Delete a session (current if no id)
  /search <query>   Search sessions
  /mode [m]         Show or set search mode (off, web, health)
  /model [name]     Show or switch model
  /regen            Regenerate the last answer
  /edit             Edit and resubmit your last message
  /export [format]  Export the current session (markdown, json, yaml)
  /quit             Exit
  Ctrl+C            Cancel current generation`,
}

func init() {
	chatCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runChat()
	}
	chatCmd.Flags().StringVarP(&flagModel, "model", "m", "", "Model to use for this session")
	rootCmd.AddCommand(chatCmd)
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// inputReader wraps liner with persistent history.
type inputReader struct {
	line        *liner.State
	historyFile string
}

func newInputReader() *inputReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &inputReader{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *inputReader) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// readWithSuggestion pre-fills the input line, for edit-and-resubmit.
func (r *inputReader) readWithSuggestion(prompt, text string) (string, error) {
	input, err := r.line.PromptWithSuggestion(prompt, text, len(text))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *inputReader) close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// repl holds per-run interactive state.
type repl struct {
	app        *App
	input      *inputReader
	renderer   *glamour.TermRenderer
	searchMode model.SearchMode
}

func runChat() error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	r := &repl{
		app:      app,
		input:    newInputReader(),
		renderer: newMarkdownRenderer(),
	}
	defer r.input.close()

	printWelcome(app)

	// Config edits take effect on the next request without a restart.
	if path, err := configFilePath(); err == nil {
		if w, werr := config.NewWatcher(path, app.Log, func(cfg *config.Config) {
			app.Engine.SetRequestParams(cfg.Temperature, cfg.SystemPrompt, cfg.StreamingEnabled)
		}); werr == nil {
			if werr := w.Watch(); werr != nil {
				app.Log.Debugf("config watch unavailable: %v", werr)
			}
			defer w.Close()
		}
	}

	// Ctrl+C during generation cancels it; liner handles Ctrl+C at the
	// prompt itself.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if app.Engine.Busy() {
				app.Engine.Stop()
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Stopped]"))
			}
		}
	}()

	for {
		input, err := r.input.read(promptStyle.Render("vita> "))
		if err != nil {
			// Ctrl+C or Ctrl+D at the prompt exits gracefully.
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			quit := r.handleSlashCommand(input)
			if quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		r.send(input)
	}
}

func printWelcome(app *App) {
	fmt.Println(welcomeStyle.Render("vita — your health assistant"))
	active := app.Store.Active()
	if active != nil {
		title := util.TruncateRunes(active.Title, 48)
		fmt.Println(infoStyle.Render(fmt.Sprintf("session: %s | model: %s", title, app.Engine.Model())))
	}
	fmt.Println(infoStyle.Render("Type /help for commands, Ctrl+C to stop a response."))
	fmt.Println()
}

// =============================================================================
// SENDING AND STREAMING OUTPUT
// =============================================================================

func (r *repl) send(text string) {
	if err := r.app.Engine.Send(text, r.searchMode); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}
	r.drainResponse()
}

// drainResponse prints streamed tokens as they land in the live view
// and finishes with sources and error reporting.
func (r *repl) drainResponse() {
	printed := 0
	for {
		if content, ok := r.app.Store.StreamingContent(); ok && len(content) > printed {
			fmt.Print(content[printed:])
			printed = len(content)
		}
		if !r.app.Engine.Busy() {
			break
		}
		time.Sleep(40 * time.Millisecond)
	}

	last := lastAssistantMessage(r.app.Store)
	if last == nil {
		fmt.Println()
		return
	}

	// Single-shot answers (and any tail the poll loop missed) land here.
	content := last.DisplayContent()
	if len(content) > printed {
		fmt.Print(content[printed:])
	}
	fmt.Println()

	if last.IsError {
		r.explainError()
		return
	}
	if len(last.Sources) > 0 {
		fmt.Println()
		fmt.Println(infoStyle.Render("Sources:"))
		for _, src := range last.Sources {
			if src.URL != "" {
				fmt.Println(infoStyle.Render(fmt.Sprintf("  - %s (%s)", src.Title, src.URL)))
			} else {
				fmt.Println(infoStyle.Render("  - " + src.Title))
			}
		}
	}
	fmt.Println()
}

func (r *repl) explainError() {
	err := r.app.Engine.LastError()
	switch {
	case err == nil:
	case ai.IsNotRunning(err):
		fmt.Fprintln(os.Stderr, warningStyle.Render("The answer service is not reachable. Is it running?"))
	case ai.IsModelNotFound(err):
		fmt.Fprintln(os.Stderr, warningStyle.Render(fmt.Sprintf("Model %q is not available.", r.app.Engine.Model())))
	case ai.IsTimeout(err):
		fmt.Fprintln(os.Stderr, warningStyle.Render("The request timed out."))
	default:
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
	}
	r.app.Engine.ClearError()
}

func lastAssistantMessage(store *session.Store) *model.Message {
	msgs := store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant {
			return msgs[i]
		}
	}
	return nil
}

func lastUserMessage(store *session.Store) *model.Message {
	msgs := store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleUser {
			return msgs[i]
		}
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand executes an interactive command. Returns true when
// the REPL should exit.
func (r *repl) handleSlashCommand(input string) bool {
	parts := strings.SplitN(input, " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	app := r.app
	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		fmt.Println(chatCmd.Long)

	case "/new", "/n":
		app.Store.NewSession(arg)
		fmt.Println(commandStyle.Render("Started a new session."))

	case "/list", "/l":
		printGroupedSessions(os.Stdout, app.Store.Listed(), time.Now())

	case "/switch", "/s":
		sess, err := findSession(app.Store, arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			break
		}
		app.Store.Load(sess.ID)
		fmt.Println(commandStyle.Render("Switched to: " + sess.Title))

	case "/title":
		if arg == "" {
			fmt.Fprintln(os.Stderr, warningStyle.Render("Usage: /title <new title>"))
			break
		}
		app.Store.SetTitle(app.Store.ActiveID(), arg)
		fmt.Println(commandStyle.Render("Renamed."))

	case "/pin", "/unpin":
		app.Store.SetPinned(app.Store.ActiveID(), cmd == "/pin")
		fmt.Println(commandStyle.Render("Done."))

	case "/archive", "/unarchive":
		app.Store.SetArchived(app.Store.ActiveID(), cmd == "/archive")
		fmt.Println(commandStyle.Render("Done."))

	case "/delete", "/d":
		id := app.Store.ActiveID()
		if arg != "" {
			sess, err := findSession(app.Store, arg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
				break
			}
			id = sess.ID
		}
		app.Store.Delete(id)
		fmt.Println(commandStyle.Render("Deleted."))

	case "/duplicate", "/dup":
		app.Store.Duplicate(app.Store.ActiveID())
		fmt.Println(commandStyle.Render("Duplicated; now working in the copy."))

	case "/search":
		if arg == "" {
			fmt.Fprintln(os.Stderr, warningStyle.Render("Usage: /search <query>"))
			break
		}
		results := session.SearchSessions(app.Store.Sessions(), arg)
		if len(results) == 0 {
			fmt.Println(infoStyle.Render("No matching sessions."))
			break
		}
		printSessionTable(os.Stdout, results)

	case "/mode":
		r.setSearchMode(arg)

	case "/model", "/m":
		r.switchModel(arg)

	case "/regen", "/r":
		if err := app.Engine.Regenerate(); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			break
		}
		r.drainResponse()

	case "/edit", "/e":
		r.editAndResubmit()

	case "/export":
		r.exportActive(arg)

	case "/history":
		r.printHistory()

	default:
		fmt.Fprintln(os.Stderr, warningStyle.Render("Unknown command. Type /help for the list."))
	}
	return false
}

func (r *repl) setSearchMode(arg string) {
	switch strings.ToLower(arg) {
	case "":
		name := "off"
		switch r.searchMode {
		case model.SearchModeWeb:
			name = "web"
		case model.SearchModeHealthDB:
			name = "health"
		}
		fmt.Println(infoStyle.Render("Search mode: " + name))
	case "off":
		r.searchMode = model.SearchModeOff
		fmt.Println(commandStyle.Render("Search mode off."))
	case "web":
		r.searchMode = model.SearchModeWeb
		fmt.Println(commandStyle.Render("Answers will search the web."))
	case "health", "health_db":
		r.searchMode = model.SearchModeHealthDB
		fmt.Println(commandStyle.Render("Answers will search your health records."))
	default:
		fmt.Fprintln(os.Stderr, warningStyle.Render("Usage: /mode [off|web|health]"))
	}
}

func (r *repl) switchModel(arg string) {
	if arg == "" {
		fmt.Println(infoStyle.Render("Current model: " + r.app.Engine.Model()))
		return
	}
	r.app.Engine.SetModel(arg)
	if err := r.app.Snapshot.SaveSelectedModel(arg); err != nil {
		r.app.Log.Warnf("persist model selection: %v", err)
	}
	if !ai.SupportsStreaming(arg) {
		fmt.Println(infoStyle.Render(arg + " does not stream; answers arrive in one piece."))
	}
	fmt.Println(commandStyle.Render("Model set to " + arg + "."))
}

func (r *repl) editAndResubmit() {
	last := lastUserMessage(r.app.Store)
	if last == nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render("Nothing to edit yet."))
		return
	}
	content, err := r.app.Engine.EditAndResubmit(last.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}
	edited, err := r.input.readWithSuggestion(promptStyle.Render("edit> "), content)
	if err != nil || strings.TrimSpace(edited) == "" {
		fmt.Println(infoStyle.Render("Edit cancelled; message removed from the conversation."))
		return
	}
	r.send(edited)
}

func (r *repl) exportActive(format string) {
	if format == "" {
		format = "markdown"
	}
	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}
	r.app.Store.Flush()
	active := r.app.Store.Active()
	if active == nil {
		fmt.Fprintln(os.Stderr, warningStyle.Render("No active session."))
		return
	}
	path, err := export.ExportToFile(active, exporter, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		return
	}
	fmt.Println(commandStyle.Render("Exported to " + path))
}

func (r *repl) printHistory() {
	for _, msg := range r.app.Store.Messages() {
		label := msg.Role.DisplayName()
		switch {
		case msg.IsError:
			fmt.Printf("%s %s\n", errorStyle.Render("["+label+"]"), msg.DisplayContent())
		case msg.Role == model.RoleAssistant:
			rendered := strings.TrimRight(renderMarkdown(r.renderer, msg.DisplayContent()), "\n")
			fmt.Printf("%s\n%s\n", headerStyle.Render("["+label+"]"), rendered)
		default:
			fmt.Printf("%s %s\n", promptStyle.Render("["+label+"]"), msg.DisplayContent())
		}
	}
}
