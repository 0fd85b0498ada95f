package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/glasswallet/router/internal/models"
	"github.com/glasswallet/router/internal/service"
)

var (
	agentsFile string
	hoursMode  string
	nowFlag    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routectl",
		Short: "Route leads to agents from the command line",
		Long: `routectl runs the lead routing pipeline offline against a roster of
agents, either the built-in roster or a YAML file passed with --agents.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&agentsFile, "agents", "", "path to agents YAML file (defaults to the built-in roster)")
	rootCmd.PersistentFlags().StringVar(&hoursMode, "hours", service.WorkingHoursFixed, "working hours policy (fixed, schedule)")
	rootCmd.PersistentFlags().StringVar(&nowFlag, "now", "", "evaluate at this RFC3339 time instead of the wall clock")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(agentsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func routeCmd() *cobra.Command {
	var contextFile string
	var explain bool

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route one lead and print the decision as JSON",
		Long: `Reads a routing context as JSON from --context (or stdin when it is "-")
and prints the routing decision. With --explain the rule stages and the
full ranking are printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := readContext(cmd.InOrStdin(), contextFile)
			if err != nil {
				return err
			}
			router, err := buildRouter()
			if err != nil {
				return err
			}

			out := json.NewEncoder(cmd.OutOrStdout())
			out.SetIndent("", "  ")
			if explain {
				exp, err := router.Explain(rc)
				if encErr := out.Encode(exp); encErr != nil {
					return encErr
				}
				return err
			}

			decision, err := router.RouteLead(context.Background(), rc)
			if err != nil {
				return err
			}
			return out.Encode(decision)
		},
	}

	cmd.Flags().StringVar(&contextFile, "context", "-", "routing context JSON file, or - for stdin")
	cmd.Flags().BoolVar(&explain, "explain", false, "print rule stages and scores")
	return cmd
}

func rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List routing rules in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			router := service.NewRouter(service.NewRegistry(), zerolog.Nop())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRIORITY\tNAME\tDESCRIPTION")
			for _, r := range router.Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\n", r.Priority, r.Name, r.Description)
			}
			return w.Flush()
		},
	}
}

func agentsCmd() *cobra.Command {
	var onlyAvailable bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents and their current load",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := buildRegistry()
			if err != nil {
				return err
			}
			agents := registry.GetAllAgents()
			if onlyAvailable {
				agents = registry.GetAvailableAgents()
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCONVERSION\tLOAD")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d/%d\n",
					a.ID, a.Name, a.Availability.Status, a.Performance.ConversionRate,
					a.Performance.ActiveLeads, a.Performance.MaxLeads)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&onlyAvailable, "available", false, "only list agents that can take a lead now")
	return cmd
}

func clock() (service.Clock, error) {
	if nowFlag == "" {
		return time.Now, nil
	}
	t, err := time.Parse(time.RFC3339, nowFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --now: %w", err)
	}
	return func() time.Time { return t }, nil
}

func buildRegistry() (*service.Registry, error) {
	now, err := clock()
	if err != nil {
		return nil, err
	}
	def := service.DefaultWorkingHours()
	hours, err := service.NewWorkingHours(hoursMode, def.StartHour, def.EndHour)
	if err != nil {
		return nil, err
	}
	registry := service.NewRegistry(service.WithClock(now), service.WithWorkingHours(hours))
	if _, err := service.SeedRegistry(registry, agentsFile); err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	return registry, nil
}

func buildRouter() (*service.Router, error) {
	registry, err := buildRegistry()
	if err != nil {
		return nil, err
	}
	now, err := clock()
	if err != nil {
		return nil, err
	}
	return service.NewRouter(registry, zerolog.Nop(), service.WithRouterClock(now)), nil
}

func readContext(stdin io.Reader, path string) (models.RoutingContext, error) {
	var rc models.RoutingContext
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return rc, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&rc); err != nil {
		return rc, fmt.Errorf("decode context: %w", err)
	}
	if err := validator.New().Struct(rc); err != nil {
		return rc, fmt.Errorf("invalid context: %w", err)
	}
	return rc, nil
}
