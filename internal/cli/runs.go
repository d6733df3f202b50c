package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/molplace/pkg/store"
)

const defaultRunLimit = 20

// runsCommand creates the run history command.
func (c *CLI) runsCommand() *cobra.Command {
	var mongoURI string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded placement runs",
	}
	cmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", os.Getenv(envMongoURI), "read runs from MongoDB (env "+envMongoURI+")")

	openStore := func(cmd *cobra.Command) (store.Store, error) {
		return c.newStore(cmd.Context(), mongoURI)
	}

	cmd.AddCommand(c.runsListCommand(openStore))
	cmd.AddCommand(c.runsShowCommand(openStore))
	cmd.AddCommand(c.runsDeleteCommand(openStore))

	return cmd
}

type storeOpener func(*cobra.Command) (store.Store, error)

// runsListCommand creates the "runs list" subcommand.
func (c *CLI) runsListCommand(open storeOpener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := open(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), runTable(list))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRunLimit, "maximum number of runs")

	return cmd
}

// runsShowCommand creates the "runs show" subcommand.
func (c *CLI) runsShowCommand(open storeOpener) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := open(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			run, err := runs.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw record")

	return cmd
}

// runsDeleteCommand creates the "runs delete" subcommand.
func (c *CLI) runsDeleteCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a run record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := open(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			if err := runs.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			printSuccess("Deleted run %s", args[0])
			return nil
		},
	}
}

func printRun(r *store.Run) {
	fmt.Println(StyleTitle.Render(r.Composition) + " " + statusStyles[r.Status].Render(string(r.Status)))
	printKeyValue("id", r.ID)
	printKeyValue("seed", strconv.FormatUint(r.Seed, 10))
	printKeyValue("progress", strconv.Itoa(r.Progress)+"%")
	printKeyValue("particles", strconv.Itoa(r.Particles))
	if r.Skipped > 0 {
		printKeyValue("skipped", strconv.Itoa(r.Skipped))
	}
	printKeyValue("cached", strconv.FormatBool(r.CacheHit))
	printKeyValue("created", r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if r.Status.Done() {
		printKeyValue("duration", r.Duration.Round(time.Millisecond).String())
	}
	if r.Error != "" {
		printWarning("%s", r.Error)
	}
}
