package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/swissutil/prefs"
)

func newPrefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show and edit the stored preferences",
	}
	cmd.AddCommand(
		newPrefsShowCmd(a),
		newPrefsDefaultsCmd(a),
		newPrefsSiteCmd(a),
		newPrefsReaderCmd(a),
		newPrefsCustomCmd(a),
		newPrefsResetCmd(a),
	)
	return cmd
}

// withStore opens the database without polling and runs fn.
func (a *app) withStore(ctx context.Context, fn func(prefs.Store) error) error {
	s, err := a.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()
	if _, err := prefs.Install(ctx, s); err != nil {
		return err
	}
	return fn(s)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q (want on or off)", s)
}

func newPrefsShowCmd(a *app) *cobra.Command {
	var host string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the defaults, site overrides and reader settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd.Context(), func(s prefs.Store) error {
				p, err := prefs.Load(cmd.Context(), s)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				host = strings.ToLower(strings.TrimSpace(host))
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if host != "" {
						return enc.Encode(p.Resolve(host))
					}
					return enc.Encode(p)
				}
				th := newTheme()
				if host != "" {
					fmt.Fprint(out, th.renderEffective(host, p.Resolve(host)))
					return nil
				}
				fmt.Fprint(out, th.renderPrefs(p))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "show what applies to this hostname")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newPrefsDefaultsCmd(a *app) *cobra.Command {
	var selection, reading string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Set the defaults applied to sites without an override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if selection == "" && reading == "" {
				return errors.New("nothing to set: use --selection and/or --reading")
			}
			return a.withStore(cmd.Context(), func(s prefs.Store) error {
				for u, v := range map[prefs.Utility]string{prefs.Selection: selection, prefs.Reading: reading} {
					if v == "" {
						continue
					}
					on, err := parseSwitch(v)
					if err != nil {
						return fmt.Errorf("--%s: %w", u, err)
					}
					if err := prefs.SetDefault(cmd.Context(), s, u, on); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&selection, "selection", "", "selection unlock default: on or off")
	cmd.Flags().StringVar(&reading, "reading", "", "reading view default: on or off")
	return cmd
}

func newPrefsSiteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "site HOST UTILITY on|off|clear",
		Short: "Override a utility for one hostname, or clear the override",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := strings.ToLower(strings.TrimSpace(args[0]))
			if host == "" {
				return errors.New("host is required")
			}
			u, err := prefs.ParseUtility(args[1])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(s prefs.Store) error {
				if strings.EqualFold(args[2], "clear") {
					return prefs.ClearSite(cmd.Context(), s, u, host)
				}
				on, err := parseSwitch(args[2])
				if err != nil {
					return err
				}
				return prefs.SetSite(cmd.Context(), s, u, host, on)
			})
		},
	}
}

func newPrefsReaderCmd(a *app) *cobra.Command {
	var (
		family      string
		size        float64
		line        float64
		width       float64
		theme       string
		hideImages  bool
		autoRebuild bool
	)
	cmd := &cobra.Command{
		Use:   "reader",
		Short: "Change the reading view settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			return a.withStore(cmd.Context(), func(s prefs.Store) error {
				p, err := prefs.Load(cmd.Context(), s)
				if err != nil {
					return err
				}
				rs := p.Reader
				if f.Changed("font-family") {
					rs.FontFamily = family
				}
				if f.Changed("font-size") {
					rs.FontSize = size
				}
				if f.Changed("line-height") {
					rs.LineHeight = line
				}
				if f.Changed("max-width") {
					rs.MaxWidth = width
				}
				if f.Changed("theme") {
					rs.Theme = theme
				}
				if f.Changed("hide-images") {
					rs.HideImages = hideImages
				}
				if f.Changed("auto-rebuild") {
					rs.AutoRebuild = autoRebuild
				}
				if err := rs.Validate(); err != nil {
					return err
				}
				if err := prefs.SetReader(cmd.Context(), s, rs); err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), newTheme().renderReader(rs))
				return nil
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&family, "font-family", "", "font family")
	fl.Float64Var(&size, "font-size", 0, "font size in px (14-24)")
	fl.Float64Var(&line, "line-height", 0, "line height (1.3-2.0)")
	fl.Float64Var(&width, "max-width", 0, "column width in px (560-980)")
	fl.StringVar(&theme, "theme", "", "palette: paper, warm, sepia, night")
	fl.BoolVar(&hideImages, "hide-images", false, "hide images in the reading view")
	fl.BoolVar(&autoRebuild, "auto-rebuild", true, "rebuild the view when the page changes")
	return cmd
}

func newPrefsCustomCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Manage per-site custom CSS and JavaScript",
	}
	cmd.AddCommand(newCustomSetCmd(a), newCustomClearCmd(a))
	return cmd
}

func newCustomSetCmd(a *app) *cobra.Command {
	var (
		css, js         string
		cssFile, jsFile string
		disable         bool
		follow          bool
	)
	cmd := &cobra.Command{
		Use:   "set HOST",
		Short: "Store custom CSS/JS for a hostname",
		Long: `set stores the custom entry for HOST. Code comes from --css/--js or from
files. With --follow the files are watched and re-saved on every change
until interrupted; open pages on that host pick the new code up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := strings.ToLower(strings.TrimSpace(args[0]))
			if host == "" {
				return errors.New("host is required")
			}
			if follow && cssFile == "" && jsFile == "" {
				return errors.New("--follow needs --css-file or --js-file")
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(s prefs.Store) error {
				p, err := prefs.Load(ctx, s)
				if err != nil {
					return err
				}
				base := p.SiteCustom[host]
				base.Enabled = !disable
				f := cmd.Flags()
				if f.Changed("css") {
					base.CSS = css
				}
				if f.Changed("js") {
					base.JS = js
				}
				src := customSource{cssFile: cssFile, jsFile: jsFile}
				save := func() error {
					st, err := src.read(base)
					if err != nil {
						return err
					}
					if err := prefs.SetSiteCustom(ctx, s, host, st); err != nil {
						return err
					}
					a.log.Info("prefs: custom saved", "host", host, "css_bytes", len(st.CSS), "js_bytes", len(st.JS))
					return nil
				}
				if err := save(); err != nil {
					return err
				}
				if !follow {
					return nil
				}
				return followFiles(ctx, src.paths(), a.cfg.Custom.SaveDebounce, a.log, save)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&css, "css", "", "CSS source")
	fl.StringVar(&js, "js", "", "JavaScript source")
	fl.StringVar(&cssFile, "css-file", "", "read CSS from a file")
	fl.StringVar(&jsFile, "js-file", "", "read JavaScript from a file")
	fl.BoolVar(&disable, "disable", false, "store the entry disabled")
	fl.BoolVar(&follow, "follow", false, "re-save when the files change")
	return cmd
}

// customSource overlays file contents on a custom entry.
type customSource struct {
	cssFile, jsFile string
}

func (c customSource) read(base prefs.CustomState) (prefs.CustomState, error) {
	if c.cssFile != "" {
		b, err := os.ReadFile(c.cssFile)
		if err != nil {
			return base, fmt.Errorf("read css: %w", err)
		}
		base.CSS = string(b)
	}
	if c.jsFile != "" {
		b, err := os.ReadFile(c.jsFile)
		if err != nil {
			return base, fmt.Errorf("read js: %w", err)
		}
		base.JS = string(b)
	}
	return base, nil
}

func (c customSource) paths() []string {
	var out []string
	for _, p := range []string{c.cssFile, c.jsFile} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newCustomClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear HOST",
		Short: "Remove the custom entry of a hostname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := strings.ToLower(strings.TrimSpace(args[0]))
			return a.withStore(cmd.Context(), func(s prefs.Store) error {
				return prefs.ClearSiteCustom(cmd.Context(), s, host)
			})
		},
	}
}

func newPrefsResetCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase every preference and restore the install defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset erases all site overrides and custom code: pass --yes to confirm")
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(s prefs.Store) error {
				if err := prefs.Reset(ctx, s); err != nil {
					return err
				}
				_, err := prefs.Install(ctx, s)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
