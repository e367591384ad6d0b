package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vcontests/vscubing-back/internal/app/service"
)

type seedOptions struct {
	*rootOptions
	closePrevious bool
}

func newSeedCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &seedOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <contest.yaml>",
		Short: "Provision a contest with its disciplines and scrambles",
		Long: `Creates an ongoing contest from a YAML description.

Example:
  vscubing seed ./contests/42.yaml
  vscubing seed --close-previous ./contests/43.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			spec, err := service.ParseContestSpec(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if opts.closePrevious {
				spec.ClosePrevious = true
			}

			a, cleanup, err := bootstrap(cmd.Context(), !opts.skipMigrate)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.provisioningService().Provision(cmd.Context(), spec)
			if err != nil {
				return err
			}
			a.logger.Info("Contest provisioned",
				"contest_number", res.Contest.ContestNumber,
				"disciplines", len(res.Disciplines),
				"scrambles", res.Scrambles,
				"closed_previous", res.Closed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.closePrevious, "close-previous", false, "close contests that are still ongoing")
	return cmd
}
