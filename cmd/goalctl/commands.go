package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"go-align/internal/auth"
	"go-align/internal/cache"
	"go-align/internal/config"
	"go-align/internal/db"
	"go-align/internal/goal"
	"go-align/internal/service"
	"go-align/internal/store"
)

// cli carries what every subcommand needs once the config is loaded.
type cli struct {
	configPath string
	asOfFlag   string
	noCache    bool

	cfg  *config.Config
	rdb  *redis.Client
	svc  *service.AlignmentService
	asOf time.Time
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "goalctl",
		Short:         "Operate the goal alignment engine",
		Long:          `goalctl propagates goal hierarchies, prints analytics summaries and risk, and runs organisation recomputes against the configured database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.json", "path to config.json")
	root.PersistentFlags().StringVar(&c.asOfFlag, "as-of", "", "evaluation time, RFC3339 or YYYY-MM-DD (default: now, UTC)")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "bypass the redis summary cache")

	root.AddCommand(
		c.propagateCmd(),
		c.summarizeCmd(),
		c.riskCmd(),
		c.recomputeCmd(),
		c.tokenCmd(),
	)
	return root
}

func (c *cli) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	asOf, err := parseAsOf(c.asOfFlag, time.Now())
	if err != nil {
		return err
	}
	c.asOf = asOf

	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := db.Init(cfg); err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	c.cfg = cfg

	var summaries service.SummaryCache
	if !c.noCache {
		rdb := cache.NewClient(cfg)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[goalctl] redis unavailable, running without summary cache: %v", err)
		} else {
			c.rdb = rdb
			summaries = cache.NewSummaryCache(rdb, cfg.SummaryTTL())
		}
	}
	c.svc = service.NewAlignmentService(store.New(db.DB), summaries, service.Options{
		Propagate:        cfg.PropagateOptions(),
		Summary:          cfg.SummaryOptions(),
		StagnationWindow: cfg.StagnationWindow(),
	})
	return nil
}

func (c *cli) propagateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "propagate [rootGoalID]",
		Short: "Roll up progress for the hierarchy rooted at a goal and persist it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := c.svc.Propagate(cmd.Context(), args[0], c.asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), tree)
		},
	}
}

func (c *cli) summarizeCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "summarize [orgID]",
		Short: "Print the analytics summary for an organisation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.svc.Summary(cmd.Context(), args[0], goal.Level(level), c.asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "restrict to one level (company, department, team, personal)")
	return cmd
}

func (c *cli) riskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk [goalID]",
		Short: "Print progress, confidence and risk for one goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.svc.EvaluateGoal(cmd.Context(), args[0], c.asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
}

func (c *cli) recomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [orgID]",
		Short: "Recompute every hierarchy of an organisation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.svc.RecomputeOrg(cmd.Context(), args[0], c.asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		username string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token [userID]",
		Short: "Issue an API token and open its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.rdb == nil {
				return fmt.Errorf("token requires redis for the session store")
			}
			r := auth.Role(role)
			if r != auth.RoleAdmin && r != auth.RoleMember {
				return fmt.Errorf("unknown role %q", role)
			}
			if username == "" {
				username = args[0]
			}
			token, err := auth.GenerateJWT(c.cfg.Server.JWTSecret, args[0], username, r, ttl)
			if err != nil {
				return err
			}
			if err := auth.SetSession(cmd.Context(), c.rdb, args[0], token, ttl); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name (default: userID)")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleMember), "member or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.SessionTimeout, "token and session lifetime")
	return cmd
}

// parseAsOf reads --as-of; empty means now in UTC.
func parseAsOf(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --as-of %q: want RFC3339 or YYYY-MM-DD", raw)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
