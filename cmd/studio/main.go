package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/physim/studio/internal/config"
	"github.com/physim/studio/internal/scene"
	"github.com/pkg/profile"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m          physim studio  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mstudio:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Commands ───────────────────────────────────────────────────────

type rootFlags struct {
	config string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Headless physics simulation studio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "",
		"config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")

	root.AddCommand(
		newRunCmd(flags),
		newPluginsCmd(flags),
		newSceneCmd(flags),
	)
	return root
}

// setup loads the config, builds the logger and the studio.
func setup(ctx context.Context, flags *rootFlags) (*studio, error) {
	cfg, err := config.Load(config.ResolvePath(flags.config))
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	log, err := newLogger(cfg.Logging, cfg.Studio.Name)
	if err != nil {
		return nil, eris.Wrap(err, "init logger")
	}
	s, err := newStudio(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return s, nil
}

type runFlags struct {
	frames  int
	scene   string
	save    string
	store   bool
	profile string
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Activate the enabled plugins and tick the world until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), root, flags)
		},
	}
	cmd.Flags().IntVar(&flags.frames, "frames", -1, "stop after this many ticks (overrides loop.max_frames)")
	cmd.Flags().StringVar(&flags.scene, "scene", "", "scene file or stored scene id to load (overrides scene.load)")
	cmd.Flags().StringVar(&flags.save, "save", "", "scene file written on exit (overrides scene.save)")
	cmd.Flags().BoolVar(&flags.store, "store", false, "store the final scene in the database (sets scene.store)")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "cpu, mem or off (overrides profile.mode)")
	return cmd
}

func run(ctx context.Context, root *rootFlags, flags *runFlags) error {
	s, err := setup(ctx, root)
	if err != nil {
		return err
	}
	defer s.close()
	defer s.log.Sync()
	cfg, log := s.cfg, s.log

	if flags.frames >= 0 {
		cfg.Loop.MaxFrames = flags.frames
	}
	if flags.scene != "" {
		cfg.Scene.Load = flags.scene
	}
	if flags.save != "" {
		cfg.Scene.Save = flags.save
	}
	if flags.store {
		cfg.Scene.Store = true
	}
	if cfg.Scene.Store && s.scenes == nil {
		return errNoDatabase
	}
	if flags.profile != "" {
		cfg.Profile.Mode = flags.profile
	}

	switch cfg.Profile.Mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Profile.Path), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(cfg.Profile.Path), profile.NoShutdownHook).Stop()
	}

	printBanner(cfg.Studio.Name)

	printSection("plugins")
	if err := s.activate(ctx); err != nil {
		return eris.Wrap(err, "activate plugins")
	}
	for _, name := range s.plugins.GetActivePluginNames() {
		printOK(name)
	}
	types := s.world.ComponentManager().RegisteredTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	printOK(fmt.Sprintf("%d component types: %s", len(types), strings.Join(names, ", ")))
	fmt.Println()

	if cfg.Scene.Load != "" {
		printSection("scene")
		if err := s.loadScene(ctx, cfg.Scene.Load); err != nil {
			return err
		}
		printOK(fmt.Sprintf("%s (%d entities)", cfg.Scene.Load, s.world.EntityManager().Count()))
		fmt.Println()
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	printSection("running")
	printReady(fmt.Sprintf("loop started (tick: %s)", cfg.Loop.TickRate))
	fmt.Println()

	frames := 0
	start := time.Now()
loop:
	for cfg.Loop.MaxFrames == 0 || frames < cfg.Loop.MaxFrames {
		select {
		case <-ticker.C:
			s.world.Update(cfg.Loop.TickRate)
			frames++
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			break loop
		case <-ctx.Done():
			break loop
		}
	}
	log.Info("loop stopped",
		zap.Int("frames", frames),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("entities", s.world.EntityManager().Count()))

	return s.saveOnExit(context.Background())
}

func newPluginsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List the plugins known to the studio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := setup(cmd.Context(), root)
			if err != nil {
				return err
			}
			defer s.close()

			title := cases.Title(language.English)
			enabled := s.enabled()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLUGIN\tKIND\tVERSION\tDEPENDS ON\tENABLED\tDESCRIPTION")
			for _, name := range s.plugins.GetAvailablePluginNames() {
				info, _ := s.plugins.Describe(name)
				deps := "-"
				if len(info.Dependencies) > 0 {
					deps = strings.Join(info.Dependencies, ", ")
				}
				on := "no"
				for _, e := range enabled {
					if e == name {
						on = "yes"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					title.String(name), s.kind(name), info.Version, deps, on, info.Description)
			}
			for _, e := range s.unknownCatalogEntries() {
				fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\tlisted in catalog, not registered\n", title.String(e.Name), e.Kind)
			}
			return tw.Flush()
		},
	}
}

type sceneFlags struct {
	from  string
	store bool
}

func newSceneCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Scene import, export and storage",
	}
	cmd.AddCommand(newSceneExportCmd(root), newSceneListCmd(root))
	return cmd
}

func newSceneExportCmd(root *rootFlags) *cobra.Command {
	flags := &sceneFlags{}
	cmd := &cobra.Command{
		Use:     "export <file>",
		Short:   "Activate the enabled plugins, optionally load a scene, and write the world to a file",
		Example: "studio scene export --from drop.yaml drop.json",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := setup(ctx, root)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.activate(ctx); err != nil {
				return eris.Wrap(err, "activate plugins")
			}
			if flags.from != "" {
				if err := s.loadScene(ctx, flags.from); err != nil {
					return err
				}
			}
			doc, err := s.saveScene(ctx, args[0], flags.store)
			if err != nil {
				return err
			}
			digest, err := scene.Digest(doc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %d entities  %s\n", args[0], len(doc.Entities), digest)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "scene file or stored scene id to load first")
	cmd.Flags().BoolVar(&flags.store, "store", false, "also store the scene in the database")
	return cmd
}

func newSceneListCmd(root *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored scenes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := setup(ctx, root)
			if err != nil {
				return err
			}
			defer s.close()
			if s.scenes == nil {
				return errNoDatabase
			}

			rows, err := s.scenes.List(ctx, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tENTITIES\tCREATED\tDIGEST")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.12s\n",
					r.ID, r.Name, r.Entities, r.CreatedAt.Format(time.RFC3339), r.Digest)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of scenes")
	return cmd
}
