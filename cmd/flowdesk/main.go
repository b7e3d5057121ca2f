package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flowdesk/internal/chat"
	"flowdesk/internal/config"
	"flowdesk/internal/dispatch"
	"flowdesk/internal/prompt"
	"flowdesk/internal/quiz"
	"flowdesk/internal/session"
	"flowdesk/internal/store"
	"flowdesk/internal/types"
)

var version = "1.0.0"

var (
	// Global flags
	verbose    bool
	configPath string
	apiKey     string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flowdesk",
	Short: "FlowDesk - adaptive task assistant engine",
	Long: `FlowDesk is an adaptive assistant engine. It watches activity signals
(keystrokes, idle time, tab switches, session length), classifies the
user's behavioral state, and adapts its single-task assistant to match:
strict in deep focus, gentle after a long session, nudging when idle.

Run without arguments to start the interactive workspace.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkspace()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("flowdesk %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "flowdesk.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "assistant service API key (overrides config and env)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// workspace bundles the wired engine for the interactive loop.
type workspace struct {
	cfg     *config.Config
	store   *store.Store
	engine  *session.Engine
	chat    *chat.Chat
	quizzes *quiz.Generator

	tasks    []types.Task
	activeID string
	lines    chan string
}

func runWorkspace() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if apiKey != "" {
		cfg.Dispatch.APIKey = apiKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	engine := session.NewEngine(cfg.Adaptive, cfg.Adaptive.Thresholds, logger, nil)
	engine.Start(ctx)
	defer engine.Stop()

	watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
		engine.SetThresholds(next.Adaptive.Thresholds)
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	dispatcher := dispatch.NewEngine(dispatch.NewClient(cfg.Dispatch, logger), cfg.Dispatch, logger)

	ws := &workspace{
		cfg:     cfg,
		store:   db,
		engine:  engine,
		chat:    chat.New(dispatcher, logger, nil),
		quizzes: quiz.NewGenerator(dispatcher, logger),
	}
	if err := ws.restore(); err != nil {
		return err
	}

	return ws.loop(ctx)
}

// restore loads persisted tasks and the locked task.
func (w *workspace) restore() error {
	tasks, err := w.store.LoadTasks()
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	w.tasks = tasks

	activeID, err := w.store.LoadActiveTask()
	if err != nil {
		return fmt.Errorf("failed to load active task: %w", err)
	}
	w.activeID = activeID

	if task := w.activeTask(); task != nil {
		w.chat.Welcome(*task)
		fmt.Printf("flowdesk %s | locked on: %s\n", version, task.Text)
	} else {
		fmt.Printf("flowdesk %s | no active task. /add <text> to create one, /help for commands.\n", version)
	}
	return nil
}

func (w *workspace) activeTask() *types.Task {
	for i := range w.tasks {
		if w.tasks[i].ID == w.activeID {
			return &w.tasks[i]
		}
	}
	return nil
}

func (w *workspace) persist() {
	if err := w.store.SaveTasks(w.tasks); err != nil {
		logger.Error("failed to save tasks", zap.Error(err))
	}
	if err := w.store.SaveActiveTask(w.activeID); err != nil {
		logger.Error("failed to save active task", zap.Error(err))
	}
}

// loop reads lines from stdin. Slash commands manage tasks and state;
// anything else is a chat message against the locked task.
func (w *workspace) loop(ctx context.Context) error {
	w.lines = make(chan string)
	go func() {
		defer close(w.lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			w.lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return nil
		case line, ok := <-w.lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			// Typing is activity regardless of what was typed.
			for range line {
				w.engine.RecordKeystroke()
			}
			if strings.HasPrefix(line, "/") {
				if quit := w.command(ctx, line); quit {
					return nil
				}
				continue
			}
			w.send(ctx, line, prompt.Freeform)
		}
	}
}

func (w *workspace) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/quit", "/q":
		return true
	case "/help":
		fmt.Println(`/add <text>    add a task
/tasks         list tasks (state-aware order)
/lock <n>      lock onto task n from the list
/done <n>      mark task n done
/chips         show suggestions for the locked task
/chip <n>      send suggestion n
/quiz          quiz yourself on the locked task
/away          mark the workspace hidden (counts a tab switch)
/back          return to the workspace
/exit-focus    manually leave deep focus
/state         show signals, state and service status
/quit          exit`)
	case "/add":
		if rest == "" {
			fmt.Println("usage: /add <text>")
			return
		}
		task := types.NewTask(rest)
		w.tasks = append(w.tasks, task)
		if w.activeID == "" {
			w.lock(task.ID)
		}
		w.persist()
		fmt.Printf("added [%s] %s\n", task.Priority, task.Text)
	case "/tasks":
		w.printTasks()
	case "/lock":
		if task := w.taskAt(rest); task != nil {
			w.lock(task.ID)
			w.persist()
		}
	case "/done":
		if task := w.taskAt(rest); task != nil {
			task.Done = true
			w.persist()
			fmt.Printf("done: %s\n", task.Text)
		}
	case "/chips":
		w.printChips()
	case "/chip":
		task := w.activeTask()
		if task == nil {
			fmt.Println("no locked task")
			return
		}
		chips := prompt.Suggestions(*task)
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > len(chips) {
			fmt.Printf("usage: /chip <1-%d>\n", len(chips))
			return
		}
		w.send(ctx, chips[n-1].Text, prompt.Structured)
	case "/quiz":
		w.runQuiz(ctx)
	case "/away":
		w.engine.SetHidden(true)
		fmt.Println("away")
	case "/back":
		if away := w.engine.SetHidden(false); away > 0 {
			fmt.Printf("welcome back, you were away %s\n", away.Round(time.Second))
		} else {
			fmt.Println("welcome back")
		}
	case "/exit-focus":
		w.engine.RequestExitFocus()
		fmt.Println("override armed: deep focus released for a bit")
	case "/state":
		w.printState()
	default:
		fmt.Printf("unknown command %s, try /help\n", cmd)
	}
	return false
}

func (w *workspace) lock(id string) {
	w.activeID = id
	if task := w.activeTask(); task != nil {
		w.chat.SwitchContext(*task)
		fmt.Printf("locked on: %s\n", task.Text)
	}
}

// taskAt resolves a 1-based index into the state-aware sorted order, the
// same order /tasks prints.
func (w *workspace) taskAt(arg string) *types.Task {
	sorted := session.PrioritySort(w.tasks, w.engine.Current().State)
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(sorted) {
		fmt.Printf("usage: give a task number between 1 and %d\n", len(sorted))
		return nil
	}
	id := sorted[n-1].ID
	for i := range w.tasks {
		if w.tasks[i].ID == id {
			return &w.tasks[i]
		}
	}
	return nil
}

func (w *workspace) printTasks() {
	state := w.engine.Current().State
	sorted := session.PrioritySort(w.tasks, state)
	if len(sorted) == 0 {
		fmt.Println("no tasks yet, /add <text> to create one")
		return
	}
	for i, t := range sorted {
		marker := " "
		if t.Done {
			marker = "x"
		}
		lock := ""
		if t.ID == w.activeID {
			lock = " *"
		}
		fmt.Printf("%2d. [%s] (%s) %s%s\n", i+1, marker, t.Priority, t.Text, lock)
	}
	if pick := session.TopPick(w.tasks, state); pick != nil && pick.ID != w.activeID {
		fmt.Printf("suggested next: %s\n", pick.Text)
	}
}

func (w *workspace) printChips() {
	task := w.activeTask()
	if task == nil {
		fmt.Println("no locked task")
		return
	}
	for i, s := range prompt.Suggestions(*task) {
		fmt.Printf("%2d. %s\n", i+1, s.Label)
	}
}

func (w *workspace) printState() {
	u := w.engine.Current()
	fmt.Printf("state: %s (override: %v)\n", u.State, u.OverrideActive)
	fmt.Printf("signals: idle=%ds kpm=%d switches=%d session=%dm\n",
		u.Signals.IdleSeconds, u.Signals.KeystrokesPerMinute, u.Signals.TabSwitches, u.Signals.SessionMinutes)
	fmt.Printf("service: %s\n", w.chat.Status())

	scores, err := w.store.LoadScores()
	if err == nil && len(scores) > 0 {
		fmt.Printf("comprehension: %d\n", quiz.Comprehension(scores))
	}
}

func (w *workspace) send(ctx context.Context, text string, contract prompt.Contract) {
	task := w.activeTask()
	if task == nil {
		fmt.Println("lock onto a task first: /tasks then /lock <n>")
		return
	}

	msg, err := w.chat.Send(ctx, text, contract, *task, w.tasks, w.engine.Current().State)
	if err != nil {
		fmt.Printf("(%v)\n", err)
		return
	}
	printPayload(msg.Payload)
}

func (w *workspace) runQuiz(ctx context.Context) {
	task := w.activeTask()
	if task == nil {
		fmt.Println("lock onto a task first")
		return
	}

	s := w.quizzes.Generate(ctx, *task)
	if s.Mode == quiz.ModeSelf {
		fmt.Println("(offline: rate yourself honestly)")
	}

	answers := make([]int, 0, len(s.Questions))
	for i, q := range s.Questions {
		fmt.Printf("\n%d. %s\n", i+1, q.Prompt)
		for j, opt := range q.Options {
			fmt.Printf("   %d) %s\n", j+1, opt)
		}
		fmt.Print("> ")
		answer := -1
		select {
		case <-ctx.Done():
			return
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				answer = n - 1
			}
		}
		answers = append(answers, answer)
	}

	result := quiz.Finish(s, answers)
	quiz.Apply(task, result)
	w.persist()

	scores, _ := w.store.LoadScores()
	scores = append(scores, result.Score)
	if err := w.store.SaveScores(scores); err != nil {
		logger.Error("failed to save scores", zap.Error(err))
	}

	if result.Passed {
		fmt.Printf("\nscore %d: passed. Task marked done.\n", result.Score)
	} else {
		fmt.Printf("\nscore %d: not yet. Task bumped to high priority.\n", result.Score)
	}
	fmt.Printf("comprehension: %d\n", quiz.Comprehension(scores))
}

func printPayload(p types.Payload) {
	if p.Text != "" {
		fmt.Println(p.Text)
	}
	if p.Code != nil {
		fmt.Printf("\n```%s\n%s\n```\n", p.Code.Language, p.Code.Snippet)
	}
	for _, c := range p.Concepts {
		fmt.Printf("  - %s: %s\n", c.Term, c.Definition)
	}
	if p.Comparison != nil {
		fmt.Println("  " + strings.Join(p.Comparison.Headers, " | "))
		for _, row := range p.Comparison.Rows {
			fmt.Println("  " + strings.Join(row, " | "))
		}
	}
	for i, q := range p.Quiz {
		fmt.Printf("  %d. %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Printf("     %d) %s\n", j+1, opt)
		}
	}
}
