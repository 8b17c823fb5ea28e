package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kshitijshah95/ai-assistant/internal/config"
	"github.com/kshitijshah95/ai-assistant/internal/dateparse"
	"github.com/kshitijshah95/ai-assistant/internal/goals"
	"github.com/kshitijshah95/ai-assistant/internal/habits"
	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
	"github.com/kshitijshah95/ai-assistant/internal/tasks"
)

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// --- note ---

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add, list and search notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a note",
	Long: `Add a note. Without --category the server picks one.

Examples:
  assistant note add "Try the ramen place on 5th" --tags food,nyc
  assistant note add --file ./meeting.md --title "Standup notes"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		category, _ := cmd.Flags().GetString("category")
		tagsStr, _ := cmd.Flags().GetString("tags")
		file, _ := cmd.Flags().GetString("file")

		content := strings.Join(args, " ")
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			content = string(data)
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("note content is required (argument or --file)")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/notes", notes.CreateInput{
			Title:    title,
			Content:  content,
			Category: category,
			Tags:     splitTags(tagsStr),
		})
		if err != nil {
			return err
		}
		var n storage.Note
		if err := decodeJSON(resp, &n); err != nil {
			return err
		}
		printSuccess("Saved note %s in %s", shortID(n.ID), n.Category)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		limit, _ := cmd.Flags().GetInt("limit")

		q := url.Values{"limit": {strconv.Itoa(limit)}}
		if category != "" {
			q.Set("category", category)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/notes?"+q.Encode())
		if err != nil {
			return err
		}
		var result struct {
			Notes []storage.Note `json:"notes"`
			Total int            `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(result.Notes) == 0 {
			fmt.Fprintln(out, "No notes found.")
			return nil
		}
		for _, n := range result.Notes {
			printNoteLine(out, n.ID, n.Category, n.Title, n.Content)
		}
		if result.Total > len(result.Notes) {
			fmt.Fprintf(out, "(%d of %d)\n", len(result.Notes), result.Total)
		}
		return nil
	},
}

var noteSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes by meaning, falling back to text match",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/notes/search", map[string]any{
			"query": strings.Join(args, " "),
			"limit": limit,
		})
		if err != nil {
			return err
		}
		var results []notes.SearchResult
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No matching notes.")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%s ", colorize(colorDim, fmt.Sprintf("[%.2f]", r.Similarity)))
			printNoteLine(out, r.ID, r.Category, r.Title, r.Content)
		}
		return nil
	},
}

var noteImportCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Import a web page or PDF URL as a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		tagsStr, _ := cmd.Flags().GetString("tags")
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Fetching %s", args[0])
		resp, err := client.post(cmd.Context(), "/api/notes/import", map[string]any{
			"url":      args[0],
			"category": category,
			"tags":     splitTags(tagsStr),
		})
		if err != nil {
			return err
		}
		var n storage.Note
		if err := decodeJSON(resp, &n); err != nil {
			return err
		}
		printSuccess("Imported %q as note %s", n.Title, shortID(n.ID))
		return nil
	},
}

func printNoteLine(out io.Writer, id, category, title, content string) {
	label := title
	if label == "" {
		label = content
	}
	fmt.Fprintf(out, "%s  %s  %s\n",
		colorize(colorCyan, shortID(id)),
		colorize(colorBold, category),
		truncate(label, 70),
	)
}

func init() {
	noteAddCmd.Flags().String("title", "", "note title")
	noteAddCmd.Flags().String("category", "", "category (default: picked automatically)")
	noteAddCmd.Flags().String("tags", "", "comma-separated tags")
	noteAddCmd.Flags().String("file", "", "read content from a file")
	noteListCmd.Flags().String("category", "", "only notes in this category")
	noteListCmd.Flags().Int("limit", 20, "maximum number of notes")
	noteSearchCmd.Flags().Int("limit", 10, "maximum number of results")
	noteImportCmd.Flags().String("category", "", "category (default: picked automatically)")
	noteImportCmd.Flags().String("tags", "", "comma-separated tags")
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteSearchCmd, noteImportCmd)
}

// --- task ---

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task. --due accepts natural dates.

Examples:
  assistant task add "Renew passport" --due "next friday" --priority high
  assistant task add "Book dentist" --due 2024-07-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, _ := cmd.Flags().GetString("due")
		priority, _ := cmd.Flags().GetString("priority")
		goalID, _ := cmd.Flags().GetString("goal")
		desc, _ := cmd.Flags().GetString("description")

		in := tasks.CreateInput{
			Title:       strings.Join(args, " "),
			Description: desc,
			Priority:    priority,
			GoalID:      goalID,
		}
		if due != "" {
			t, ok := dateparse.DueDate(due, time.Now())
			if !ok {
				return fmt.Errorf("could not understand due date %q", due)
			}
			in.DueDate = &t
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/tasks", in)
		if err != nil {
			return err
		}
		var t storage.Task
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		if t.DueDate != nil {
			printSuccess("Added task %s (due %s)", shortID(t.ID), formatWhen(*t.DueDate))
		} else {
			printSuccess("Added task %s", shortID(t.ID))
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		limit, _ := cmd.Flags().GetInt("limit")

		q := url.Values{"limit": {strconv.Itoa(limit)}}
		if status != "" {
			q.Set("status", status)
		}
		if priority != "" {
			q.Set("priority", priority)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/tasks?"+q.Encode())
		if err != nil {
			return err
		}
		var result struct {
			Tasks []storage.Task `json:"tasks"`
			Total int            `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printTasks(cmd.OutOrStdout(), result.Tasks, "No tasks found.")
		return nil
	},
}

var taskTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show tasks due today, and overdue ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		var overdue []storage.Task
		resp, err := client.get(cmd.Context(), "/api/tasks/overdue")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &overdue); err != nil {
			return err
		}
		if len(overdue) > 0 {
			fmt.Fprintln(out, colorize(colorRed, "Overdue"))
			printTasks(out, overdue, "")
			fmt.Fprintln(out)
		}

		var today []storage.Task
		resp, err = client.get(cmd.Context(), "/api/tasks/today")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, &today); err != nil {
			return err
		}
		fmt.Fprintln(out, colorize(colorBold, "Today"))
		printTasks(out, today, "Nothing due today.")
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/tasks/"+url.PathEscape(args[0])+"/complete", nil)
		if err != nil {
			return err
		}
		var t storage.Task
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		printSuccess("Completed %q", t.Title)
		return nil
	},
}

func printTasks(out io.Writer, list []storage.Task, empty string) {
	if len(list) == 0 {
		if empty != "" {
			fmt.Fprintln(out, empty)
		}
		return
	}
	for _, t := range list {
		mark := "[ ]"
		if t.Status == "completed" {
			mark = "[x]"
		}
		due := ""
		if t.DueDate != nil {
			due = colorize(colorDim, " due "+formatWhen(*t.DueDate))
		}
		fmt.Fprintf(out, "%s %s %s %s%s\n",
			colorize(colorCyan, shortID(t.ID)),
			mark,
			colorize(priorityColor(t.Priority), fmt.Sprintf("%-6s", t.Priority)),
			truncate(t.Title, 60),
			due,
		)
	}
}

func init() {
	taskAddCmd.Flags().String("due", "", `due date ("tomorrow", "next monday", 2024-07-01)`)
	taskAddCmd.Flags().String("priority", "", "low, medium, high or urgent")
	taskAddCmd.Flags().String("goal", "", "goal ID to link")
	taskAddCmd.Flags().String("description", "", "longer description")
	taskListCmd.Flags().String("status", "", "pending, in_progress, completed or cancelled")
	taskListCmd.Flags().String("priority", "", "only this priority")
	taskListCmd.Flags().Int("limit", 50, "maximum number of tasks")
	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskTodayCmd, taskDoneCmd)
}

// --- habit ---

var habitCmd = &cobra.Command{
	Use:   "habit",
	Short: "Track habits",
}

var habitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List habits with streaks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/habits")
		if err != nil {
			return err
		}
		var list []habits.Habit
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No habits yet.")
			return nil
		}
		for _, h := range list {
			mark := "[ ]"
			if h.CompletedToday {
				mark = colorize(colorGreen, "[x]")
			}
			fmt.Fprintf(out, "%s %s %-24s %s\n",
				colorize(colorCyan, shortID(h.ID)),
				mark,
				truncate(h.Name, 24),
				colorize(colorDim, fmt.Sprintf("%s, streak %d", h.Frequency, h.Streak)),
			)
		}
		return nil
	},
}

var habitLogCmd = &cobra.Command{
	Use:   "log <id>",
	Short: "Log a habit as done (or skipped) for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		skip, _ := cmd.Flags().GetBool("skip")
		note, _ := cmd.Flags().GetString("notes")

		completed := !skip
		body := map[string]any{"completed": completed}
		if date != "" {
			body["date"] = date
		}
		if note != "" {
			body["notes"] = note
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/api/habits/"+url.PathEscape(args[0])+"/log", body)
		if err != nil {
			return err
		}
		var l storage.HabitLog
		if err := decodeJSON(resp, &l); err != nil {
			return err
		}
		verb := "Logged"
		if !l.Completed {
			verb = "Marked skipped"
		}
		printSuccess("%s for %s", verb, l.LoggedDate.Format("Mon Jan 2"))
		return nil
	},
}

func init() {
	habitLogCmd.Flags().String("date", "", "day to log, YYYY-MM-DD (default today)")
	habitLogCmd.Flags().Bool("skip", false, "record the day as not completed")
	habitLogCmd.Flags().String("notes", "", "optional note")
	habitCmd.AddCommand(habitListCmd, habitLogCmd)
}

// --- goal ---

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Review goals",
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals with progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		path := "/api/goals"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var list []goals.Goal
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No goals found.")
			return nil
		}
		for _, g := range list {
			target := ""
			if g.TargetDate != nil {
				target = colorize(colorDim, " by "+formatWhen(*g.TargetDate))
			}
			fmt.Fprintf(out, "%s %s %3d%% %s%s\n",
				colorize(colorCyan, shortID(g.ID)),
				progressBar(g.Progress, 10),
				g.Progress,
				truncate(g.Title, 50),
				target,
			)
		}
		return nil
	},
}

func progressBar(pct, width int) string {
	pct = max(0, min(100, pct))
	filled := pct * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func init() {
	goalListCmd.Flags().String("status", "", "active, completed or archived")
	goalCmd.AddCommand(goalListCmd)
}

// --- event ---

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Show calendar events",
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List upcoming events, or a day, week or month view",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, _ := cmd.Flags().GetString("view")
		path := "/api/calendar/upcoming"
		if view != "" {
			path = "/api/calendar?view=" + url.QueryEscape(view)
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var events []storage.Event
		if err := decodeJSON(resp, &events); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(events) == 0 {
			fmt.Fprintln(out, "No events.")
			return nil
		}
		for _, ev := range events {
			fmt.Fprintf(out, "%s %s-%s %s\n",
				colorize(colorCyan, shortID(ev.ID)),
				formatWhen(ev.StartTime),
				ev.EndTime.Local().Format("15:04"),
				truncate(ev.Title, 60),
			)
		}
		return nil
	},
}

func init() {
	eventListCmd.Flags().String("view", "", "day, week or month (default: upcoming)")
	eventCmd.AddCommand(eventListCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, "("+k.EnvVar+")"))
		}
		fmt.Fprintf(out, "\nconfig file: %s\n", config.ConfigFilePath())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key> [value]",
	Short: "Store an API key in the local secrets file",
	Long: `Store an API key in secrets.json under the data dir. Without a value
argument the key is read from stdin. An empty value removes it.

Keys: ` + strings.Join(config.SecretKeys(), ", "),
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		key := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else {
			fmt.Fprintf(os.Stderr, "%s: ", key)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			value = strings.TrimSpace(line)
		}

		if err := config.SetSecret(cfg.Storage.DataDir, key, value); err != nil {
			return err
		}
		if value == "" {
			printSuccess("Removed %s", key)
		} else {
			printSuccess("Stored %s", key)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetSecretCmd)
}
