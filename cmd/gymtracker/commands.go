package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/workouts"
	"github.com/2beens/gymtracker/internal/workouts/filestore"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type cli struct {
	out    io.Writer
	errOut io.Writer

	dataDir         string
	catalogPath     string
	logLevel        string
	passwordHashing bool
	username        string

	store   *filestore.Store
	service *workouts.Service
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "gymtracker",
		Short:         "Track workouts and body weight on the local data files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// stdout is for command output only
			log.SetOutput(errOut)
			log.SetLevel(logging.GetLevel(c.logLevel))
			c.store = filestore.NewStore(c.dataDir, c.catalogPath)
			c.service = workouts.NewService(workouts.NewServiceParams{
				Store:           c.store,
				PasswordHashing: c.passwordHashing,
			})
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.dataDir, "data-dir", ".", "directory holding login.csv and userdata.json")
	flags.StringVar(&c.catalogPath, "catalog", "", "workouts catalog file (json or yaml), defaults to <data-dir>/workouts.json")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level")
	flags.BoolVar(&c.passwordHashing, "password-hashing", false, "store new passwords as bcrypt hashes")

	rootCmd.AddCommand(
		c.setupCmd(),
		c.createAccountCmd(),
		c.loginCmd(),
		c.workoutsCmd(),
		c.todayCmd(),
		c.checkCmd(),
		c.logCmd(),
		c.weighCmd(),
		c.pointsCmd(),
		c.graphCmd(),
		c.historyCmd(),
	)
	return rootCmd
}

// fail prints the user facing message (and code, when there is one) of err.
func (c *cli) fail(err error) error {
	if code, ok := workouts.FailureCode(err); ok {
		_, _ = fmt.Fprintf(c.errOut, "[%d] %s\n", code, workouts.Message(err))
	} else if workouts.IsUserFailure(err) {
		_, _ = fmt.Fprintln(c.errOut, workouts.Message(err))
	} else {
		_, _ = fmt.Fprintf(c.errOut, "error: %s\n", err)
	}
	return err
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) userFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&c.username, "user", "u", "", "username")
	_ = cmd.MarkFlagRequired("user")
}

func (c *cli) setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create empty login and user data files when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.store.Setup(); err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "data files ready in %s\n", c.dataDir)
			return nil
		},
	}
}

func (c *cli) createAccountCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.service.CreateAccount(cmd.Context(), c.username, password); err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "account %s created\n", c.username)
			return nil
		},
	}
	c.userFlag(cmd)
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and bring the user's log up to date with the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.service.Login(cmd.Context(), c.username, password); err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "welcome %s\n", c.username)
			return nil
		},
	}
	c.userFlag(cmd)
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func (c *cli) workoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workouts",
		Short: "List the workouts in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := c.service.WorkoutNames(cmd.Context())
			if err != nil {
				return c.fail(err)
			}
			for _, name := range names {
				_, _ = fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}
}

func (c *cli) todayCmd() *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Suggest workouts for a day of the user's planner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if day == "" {
				day = c.service.Today()
			}
			names, err := c.service.PickWorkout(cmd.Context(), day, c.username)
			if err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "%s:\n", day)
			for _, name := range names {
				if name == workouts.RestDay {
					_, _ = fmt.Fprintln(c.out, name)
					continue
				}
				prompt, err := c.service.AttributesPrompt(cmd.Context(), name)
				if err != nil {
					return c.fail(err)
				}
				_, _ = fmt.Fprintf(c.out, "%s\n  %s\n", name, prompt)
			}
			return nil
		},
	}
	c.userFlag(cmd)
	cmd.Flags().StringVar(&day, "day", "", "weekday name, defaults to today")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <workout name>",
		Short: "Check that a workout exists and show its input hint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := c.service.CheckWorkout(cmd.Context(), args[0])
			if err != nil {
				return c.fail(err)
			}
			if !exists {
				return c.fail(workouts.ErrWorkoutNotFound)
			}
			prompt, err := c.service.AttributesPrompt(cmd.Context(), args[0])
			if err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintln(c.out, prompt)
			return nil
		},
	}
}

func (c *cli) logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   `log "<workout name>=<date, weight, reps, sets, notes>"...`,
		Short: "Validate and record one or more log entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := make(map[string]string, len(args))
			for _, arg := range args {
				name, raw, found := strings.Cut(arg, "=")
				if !found {
					return c.fail(fmt.Errorf("expected <workout name>=<entry>, got %q", arg))
				}
				entries[strings.TrimSpace(name)] = raw
			}
			if err := c.service.CheckEdits(cmd.Context(), entries, c.username); err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "%d entries logged\n", len(entries))
			return nil
		},
	}
	c.userFlag(cmd)
	return cmd
}

func (c *cli) weighCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "weigh <weight>",
		Short: "Log body weight for a date, replacing an earlier value for that date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return c.fail(fmt.Errorf("%w: %q", workouts.ErrInvalidWeight, args[0]))
			}
			if date == "" {
				date = workouts.FormatDate(timeNow())
			}
			if err := c.service.LogWeight(cmd.Context(), weight, date, c.username); err != nil {
				return c.fail(err)
			}
			_, _ = fmt.Fprintf(c.out, "weight %d logged for %s\n", weight, date)
			return nil
		},
	}
	c.userFlag(cmd)
	cmd.Flags().StringVar(&date, "date", "", "MM/DD/YYYY, defaults to today")
	return cmd
}

func (c *cli) pointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points <tag> <focus>",
		Short: "Print the dates and values of weight or a workout id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := c.service.Points(cmd.Context(), args[0], args[1], c.username)
			if err != nil {
				return c.fail(err)
			}
			return c.printJSON(series)
		},
	}
	c.userFlag(cmd)
	return cmd
}

func (c *cli) graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <tag> <focus>",
		Short: "Print the chart data (points, labels and bounds) of weight or a workout id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := c.service.Graph(cmd.Context(), args[0], args[1], c.username)
			if errors.Is(err, workouts.ErrNoData) {
				_, _ = fmt.Fprintln(c.out, workouts.Message(err))
				return nil
			}
			if err != nil {
				return c.fail(err)
			}
			return c.printJSON(graph)
		},
	}
	c.userFlag(cmd)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <workout id>",
		Short: "Print the per day averages of a workout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := c.service.ExerciseHistory(cmd.Context(), args[0], c.username)
			if err != nil {
				return c.fail(err)
			}
			return c.printJSON(history)
		},
	}
	c.userFlag(cmd)
	return cmd
}
