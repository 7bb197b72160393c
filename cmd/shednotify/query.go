package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shednotify/internal/app"
	"shednotify/internal/config"
	"shednotify/internal/esp"
	logx "shednotify/pkg/logx"
)

var (
	jsonOut  bool
	areaTest string
)

var allowanceCmd = &cobra.Command{
	Use:   "allowance",
	Short: "Show the token's daily API allowance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, _, err := loadClient(cmd.Context())
		if err != nil {
			return err
		}
		al, err := c.Allowance(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), al)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d calls used today (%s), %d left\n", al.Count, al.Limit, al.Type, al.Remaining())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the current load-shedding status (uses one API call)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, _, err := loadClient(cmd.Context())
		if err != nil {
			return err
		}
		st, err := c.Status(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), st)
		}
		writeStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var areasCmd = &cobra.Command{
	Use:   "areas",
	Short: "Look up schedule areas",
}

var areasSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search areas by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := loadClient(cmd.Context())
		if err != nil {
			return err
		}
		areas, err := c.SearchAreas(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), areas)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tAREA")
		for _, a := range areas {
			fmt.Fprintf(tw, "%s\t%s\n", a.ID, a)
		}
		return tw.Flush()
	},
}

var areasInfoCmd = &cobra.Command{
	Use:   "info [area-id]",
	Short: "Show events and schedule for an area (default: first configured area)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cfg, err := loadClient(cmd.Context())
		if err != nil {
			return err
		}
		id := cfg.DefaultArea()
		if len(args) == 1 {
			id = strings.TrimSpace(args[0])
		}
		if id == "" {
			return fmt.Errorf("no area id given and none configured under areas")
		}
		info, err := c.AreaInfo(cmd.Context(), esp.AreaID(id), areaTest)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(cmd.OutOrStdout(), info)
		}
		writeAreaInfo(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	areasInfoCmd.Flags().StringVar(&areaTest, "test", "", `request test data ("current" or "future")`)

	areasCmd.AddCommand(areasSearchCmd, areasInfoCmd)
	rootCmd.AddCommand(allowanceCmd, statusCmd, areasCmd)
}

func loadClient(ctx context.Context) (*esp.Client, *config.Config, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	c, err := app.NewClient(cfg, logx.Nop())
	if err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStatus(w io.Writer, st esp.StatusMap) {
	ids := make([]string, 0, len(st))
	for id := range st {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tSTAGE\tUPDATED\tNEXT")
	for _, id := range ids {
		s := st[esp.AreaID(id)]
		next := "-"
		if len(s.NextStages) > 0 {
			n := s.NextStages[0]
			next = fmt.Sprintf("stage %s at %s", n.Stage, n.Start.Format("Mon 15:04"))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Stage, s.StageUpdated.Format(time.DateTime), next)
	}
	_ = tw.Flush()
}

func writeAreaInfo(w io.Writer, info esp.AreaInfo) {
	fmt.Fprintf(w, "%s (%s)\n", info.Name, info.Region)
	if len(info.Events) == 0 {
		fmt.Fprintln(w, "No upcoming events.")
	}
	for _, ev := range info.Events {
		fmt.Fprintf(w, "  %s - %s  %s\n", ev.Start.Format("Mon 02 Jan 15:04"), ev.End.Format("15:04"), ev.Note)
	}
	for _, day := range info.Schedule {
		fmt.Fprintf(w, "%s %s\n", day.Name, day.Date)
		for i, slots := range day.Stages {
			if len(slots) == 0 {
				continue
			}
			fmt.Fprintf(w, "  stage %d: %s\n", i+1, strings.Join(slots, ", "))
		}
	}
}
