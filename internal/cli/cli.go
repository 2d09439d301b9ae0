// Package cli implements the studyplan command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/muaviaUsmani/studyplan/internal/config"
	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/plan"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/task"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// Version is reported by --version
var Version = "0.1.0"

// defaultUser owns plans generated from input files without a user_id
const defaultUser = "local"

// options are the persistent flags shared by every command
type options struct {
	prefsFile string
	logLevel  string
}

// BuildCLI builds the root command
func BuildCLI() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "studyplan",
		Short: "Study plan timeline generator",
		Long: `studyplan turns tasks with due dates and effort estimates into a
conflict-free study timeline that works around your existing commitments.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.prefsFile, "prefs", "", "YAML file with preferences and policy")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(buildGenerateCommand(opts))
	rootCmd.AddCommand(buildShowCommand(opts))
	rootCmd.AddCommand(buildLatestCommand(opts))
	rootCmd.AddCommand(buildFreeCommand(opts))
	rootCmd.AddCommand(buildPruneCommand(opts))

	return rootCmd
}

func buildGenerateCommand(opts *options) *cobra.Command {
	var (
		inputFile string
		nowFlag   string
		userID    string
		dbPath    string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a study timeline from an input file",
		Long: `Generate reads an input document with tasks, busy intervals and optional
preferences, and prints the resulting timeline. With --db the plan is stored
and versioned per user.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, inputFile)
			if err != nil {
				return err
			}
			if userID != "" {
				in.UserID = userID
			}
			if in.UserID == "" {
				in.UserID = defaultUser
			}
			now, err := parseNow(nowFlag)
			if err != nil {
				return err
			}
			prefs, policy, err := opts.scheduling()
			if err != nil {
				return err
			}

			if dbPath == "" {
				prefs, err = timeline.DecodePreferences(in.Preferences, prefs)
				if err != nil {
					return err
				}
				engine, err := timeline.NewEngine(prefs, policy)
				if err != nil {
					return err
				}
				result := engine.Generate(in.Tasks, in.BusyIntervals, now)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printResult(cmd.OutOrStdout(), result)
				return nil
			}

			svc, closeFn, err := opts.openService(cmd, dbPath, prefs, policy)
			if err != nil {
				return err
			}
			defer closeFn()

			req := service.RequestFromInput(in, metrics.TriggerCLI)
			req.Now = now
			p, err := svc.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return outputPlan(cmd.OutOrStdout(), p, asJSON)
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "input JSON file (- for stdin)")
	cmd.Flags().StringVar(&nowFlag, "now", "", "generation time in RFC 3339 (default: current time)")
	cmd.Flags().StringVar(&userID, "user", "", "user ID, overrides the input document")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the plan in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func buildShowCommand(opts *options) *cobra.Command {
	var (
		dbPath string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a stored plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService(cmd, dbPath, timeline.DefaultPreferences(), timeline.Policy{})
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := svc.GetPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputPlan(cmd.OutOrStdout(), p, asJSON)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "studyplan.db", "SQLite database path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func buildLatestCommand(opts *options) *cobra.Command {
	var (
		dbPath string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "latest <user-id>",
		Short: "Show the latest plan for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := opts.openService(cmd, dbPath, timeline.DefaultPreferences(), timeline.Policy{})
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := svc.Latest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return outputPlan(cmd.OutOrStdout(), p, asJSON)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "studyplan.db", "SQLite database path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// freeTimeOutput is the JSON shape printed by free --json
type freeTimeOutput struct {
	Report         timeline.FreeTimeReport `json:"report"`
	Recommendation timeline.Recommendation `json:"recommendation"`
}

func buildFreeCommand(opts *options) *cobra.Command {
	var (
		inputFile string
		nowFlag   string
		days      int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "free",
		Short: "Analyze free time and recommend a daily study load",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			in, err := readInput(cmd, inputFile)
			if err != nil {
				return err
			}
			now, err := parseNow(nowFlag)
			if err != nil {
				return err
			}
			prefs, _, err := opts.scheduling()
			if err != nil {
				return err
			}
			prefs, err = timeline.DecodePreferences(in.Preferences, prefs)
			if err != nil {
				return err
			}

			needed := 0.0
			for i := range in.Tasks {
				if in.Tasks[i].IsSchedulable() {
					needed += in.Tasks[i].EffortHours
				}
			}

			out := freeTimeOutput{Report: timeline.AnalyzeFreeTime(in.BusyIntervals, prefs, now, days)}
			out.Recommendation = timeline.Recommend(out.Report, needed, days)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printFreeTime(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "input JSON file (- for stdin)")
	cmd.Flags().StringVar(&nowFlag, "now", "", "analysis start in RFC 3339 (default: current time)")
	cmd.Flags().IntVar(&days, "days", 14, "number of days to analyze")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildPruneCommand(opts *options) *cobra.Command {
	var (
		dbPath    string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored plans older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %v", olderThan)
			}
			store, err := plan.OpenSQLiteStore(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d plan(s) older than %v\n", removed, olderThan)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "studyplan.db", "SQLite database path")
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age of the plans to delete")
	return cmd
}

// scheduling returns the default preferences and policy, overlaid with --prefs
func (o *options) scheduling() (timeline.Preferences, timeline.Policy, error) {
	if o.prefsFile == "" {
		return timeline.DefaultPreferences(), timeline.Policy{}, nil
	}
	return config.LoadSchedulingFile(o.prefsFile, timeline.DefaultPreferences())
}

func (o *options) newLogger(cmd *cobra.Command) (logger.Logger, error) {
	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.Format = logger.FormatText
	cfg.Console.Color = false
	cfg.Console.Output = cmd.ErrOrStderr()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return log.WithComponent(logger.ComponentCLI), nil
}

// openService opens the SQLite store at dbPath and wraps it in a service.
// The returned function closes the store and the logger.
func (o *options) openService(cmd *cobra.Command, dbPath string, prefs timeline.Preferences, policy timeline.Policy) (*service.Service, func(), error) {
	log, err := o.newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := plan.OpenSQLiteStore(ctx, dbPath)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	svc, err := service.New(store, prefs, policy,
		service.WithLogger(log),
		service.WithMetrics(metrics.NewCollector()),
	)
	if err != nil {
		store.Close()
		log.Close()
		return nil, nil, err
	}
	return svc, func() {
		store.Close()
		log.Close()
	}, nil
}

func readInput(cmd *cobra.Command, path string) (*task.Input, error) {
	if path == "-" {
		return task.DecodeInput(cmd.InOrStdin())
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()
	return task.DecodeInput(f)
}

func parseNow(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	now, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: %w", value, err)
	}
	return now, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var (
	headerColor  = color.New(color.Bold)
	dayColor     = color.New(color.FgCyan, color.Bold)
	warningColor = color.New(color.FgYellow)
)

func outputPlan(w io.Writer, p *plan.Plan, asJSON bool) error {
	if asJSON {
		return writeJSON(w, p)
	}
	headerColor.Fprintf(w, "Plan %s (version %d) for %s\n", p.ID, p.Version, p.UserID)
	fmt.Fprintf(w, "Generated at %s\n\n", p.GeneratedAt.Format(time.RFC3339))
	printResult(w, &timeline.Result{Blocks: p.Blocks, Metadata: p.Metadata})
	return nil
}

func printResult(w io.Writer, result *timeline.Result) {
	md := result.Metadata
	if len(result.Blocks) == 0 {
		fmt.Fprintln(w, "No study sessions scheduled.")
		if md.EmptyReason != timeline.EmptyNone {
			fmt.Fprintf(w, "Reason: %s\n", md.EmptyReason)
		}
	}

	for _, day := range timeline.GroupByDay(result.Blocks, nil) {
		dayColor.Fprintf(w, "%s %s (%.1fh)\n", day.Weekday[:3], day.Date, day.TotalHours)
		for _, b := range day.Blocks {
			fmt.Fprintf(w, "  %s-%s  %-24s %s\n",
				b.Start.Format("15:04"), b.End.Format("15:04"), b.TaskTitle, b.Reason)
		}
	}

	if len(result.Blocks) > 0 {
		fmt.Fprintf(w, "\nTotal: %.1fh across %d day(s), %d task(s) scheduled",
			md.TotalHours, md.Stats.DaysUsed, md.TasksScheduled)
		if md.Stats.BusiestDay != "" {
			fmt.Fprintf(w, ", busiest %s (%.1fh)", md.Stats.BusiestDay, md.Stats.BusiestDayHours)
		}
		fmt.Fprintln(w)
	}

	for _, p := range md.TasksPartial {
		warningColor.Fprintf(w, "Partial: %s is missing %.1fh\n", p.Title, p.RemainingHours)
	}
	for _, u := range md.TasksUnscheduled {
		warningColor.Fprintf(w, "Unscheduled: %s (%s)\n", u.Title, u.Reason)
	}
	if len(md.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, msg := range md.Warnings {
			warningColor.Fprintf(w, "  - %s\n", msg)
		}
	}
}

func printFreeTime(w io.Writer, out freeTimeOutput) {
	for _, day := range out.Report.Days {
		dayColor.Fprintf(w, "%s %s", day.Weekday[:3], day.Date)
		fmt.Fprintf(w, "  free %.1fh / %.1fh (%.0f%%), %d busy block(s)\n",
			day.FreeHours, day.WorkHours, day.FreePercentage, day.BusyBlocks)
	}
	fmt.Fprintf(w, "\nTotal free: %.1fh, average %.1fh/day\n", out.Report.TotalFreeHours, out.Report.AvgFreeHoursPerDay)

	rec := out.Recommendation
	headerColor.Fprintf(w, "Recommendation: %.1fh/day (%s)\n", rec.RecommendedHoursPerDay, rec.Feasibility)
	fmt.Fprintln(w, rec.Message)
}
