package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/live"
)

func newWatchCmd(a *app) *cobra.Command {
	var reading bool
	cmd := &cobra.Command{
		Use:   "watch URL",
		Short: "Mirror a page from Chrome and print reader rebuilds as JSON lines",
		Long: `watch loads the page in Chrome and replays its DOM changes into the
in-memory page, where the stored preferences apply as usual. Every mirror
update and reader rebuild is written to stdout as one JSON object. Runs until
interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withEngine(ctx, true, false, func(eng *engine.Engine) error {
				sink := live.NewJSONLines(cmd.OutOrStdout())
				defer sink.Close()

				p, err := eng.Open(ctx, args[0], engine.OpenOptions{Live: true, Sink: sink})
				if err != nil {
					return err
				}
				defer p.Close()

				if reading {
					err := p.Do(ctx, func() {
						if r := p.Session().Reader(); !r.Enabled() {
							r.SetEnabled(true)
						}
					})
					if err != nil {
						return err
					}
				}
				a.log.Info("watch: mirroring", "url", p.URL(), "tab", p.TabID())

				select {
				case <-ctx.Done():
				case <-p.Done():
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reading, "reading", false, "force the reading view on for this page")
	return cmd
}
