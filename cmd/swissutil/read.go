package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/reader"
	"github.com/hazyhaar/swissutil/server"
)

func newReadCmd(a *app) *cobra.Command {
	var format, acquire string
	cmd := &cobra.Command{
		Use:   "read URL",
		Short: "Print the reading view of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := server.Render(&reader.Article{}, format); err != nil {
				return err
			}
			mode, err := engine.ParseAcquire(acquire)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withEngine(ctx, false, false, func(eng *engine.Engine) error {
				p, err := eng.Open(ctx, args[0], engine.OpenOptions{Acquire: mode})
				if err != nil {
					return err
				}
				defer p.Close()
				art, err := p.Read(ctx)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				body, _, err := server.Render(art, format)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, body)
				if !strings.HasSuffix(body, "\n") {
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: markdown, html, text, json")
	cmd.Flags().StringVar(&acquire, "acquire", "auto", "page acquisition: auto, http, browser")
	return cmd
}
