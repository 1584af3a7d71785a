package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmihttp"
	"github.com/san-kum/bmiview/internal/config"
	"github.com/san-kum/bmiview/internal/coords"
	"github.com/san-kum/bmiview/internal/export"
	"github.com/san-kum/bmiview/internal/logging"
	"github.com/san-kum/bmiview/internal/render"
	"github.com/san-kum/bmiview/internal/session"
	"github.com/san-kum/bmiview/internal/storage"
	"github.com/san-kum/bmiview/internal/viz"
)

var (
	cfgFile string

	// Set in PersistentPreRunE.
	cfg    *config.Config
	logger = zap.NewNop()

	asJSON     bool
	saveSnap   bool
	shoreline  bool
	outPath    string
	meshCols   int
	meshRows   int
	configRoot string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bmiview",
		Short:         "render and drive BMI landscape models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(cfgFile, cmd.Flags()); err != nil {
				return err
			}
			if logger, err = logging.New(cfg.Log.Verbose, cfg.Log.Format); err != nil {
				return err
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file path (yaml)")
	pf.String("backend", config.DefaultBackend, "model backend (landscape, http)")
	pf.String("address", config.DefaultAddress, "address of the http backend")
	pf.Duration("timeout", config.DefaultTimeout, "per-call timeout for the http backend")
	pf.String("model-config", "", "configuration file passed to the model's initialize")
	pf.String("coords", "", "node coordinate cache (json, yaml, csv or npz)")
	pf.String("variable", config.DefaultVariable, "output variable to view")
	pf.String("output-dir", config.DefaultOutputDir, "directory for rendered images")
	pf.String("data-dir", config.DefaultDataDir, "snapshot store directory")
	pf.String("preset", "", "style preset")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("log-format", "console", "log format (console, json)")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "describe the model and its variables",
		RunE:  runInfo,
	}
	infoCmd.Flags().BoolVar(&asJSON, "json", false, "print as json")

	renderCmd := &cobra.Command{
		Use:   "render [output]",
		Short: "render the variable to an image (png, svg or gif)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRender,
	}
	addStyleFlags(renderCmd)
	renderCmd.Flags().BoolVar(&saveSnap, "save", false, "also keep the render in the snapshot store")

	meshCmd := &cobra.Command{
		Use:   "mesh",
		Short: "draw the model mesh in the terminal",
		RunE:  runMesh,
	}
	meshCmd.Flags().IntVar(&meshCols, "cols", 60, "canvas width in characters")
	meshCmd.Flags().IntVar(&meshRows, "rows", 24, "canvas height in characters")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the shoreline scenario and write its three images",
		RunE:  runScenario,
	}
	addStyleFlags(runCmd)
	addScenarioFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "advance the model with a live terminal view",
		RunE:  runLive,
	}
	addStyleFlags(liveCmd)
	addScenarioFlags(liveCmd)
	liveCmd.Flags().BoolVar(&shoreline, "shoreline", false, "apply the shoreline offset before running")
	liveCmd.Flags().StringVar(&outPath, "out", "", "render the final state to this file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve an in-process model over http",
		Long: `serve exposes an in-process model over http.

Clients may call initialize with a config path. That path is resolved
under --config-root and may not leave it, so only files in that
directory are readable by remote callers.`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVar(&configRoot, "config-root", ".", "directory remote initialize calls may read configs from")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored snapshots",
		RunE:  listSnapshots,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [snapshot_id]",
		Short: "plot the values of a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  plotSnapshot,
	}
	plotCmd.Flags().BoolVar(&asJSON, "json", false, "export the snapshot as json instead")

	coordsCmd := &cobra.Command{
		Use:   "coords [output]",
		Short: "write the node coordinate cache for the variable's grid",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCoords,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list style presets",
		RunE:  listPresets,
	}

	rootCmd.AddCommand(infoCmd, renderCmd, meshCmd, runCmd, liveCmd, serveCmd,
		listCmd, plotCmd, coordsCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func addStyleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("cmap", "viridis", "colour map")
	f.Float64("vmin", 0, "lower end of the colour scale")
	f.Float64("vmax", 0, "upper end of the colour scale")
	f.String("edge-color", "", "triangle outline colour")
	f.String("shading", render.ShadingFlat, "flat or gouraud")
	f.Int("width", render.DefaultWidth, "image width")
	f.Int("height", render.DefaultHeight, "image height")
}

func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("y-shore", config.DefaultYShore, "shoreline position")
	f.Float64("offset", config.DefaultOffset, "elevation offset either side of the shoreline")
	f.Float64("until", config.DefaultUntil, "model time to run to")
	f.Float64("step", config.DefaultStep, "model time between observations (0 uses the model's step)")
}

// openSession builds the configured backend and initializes it. cleanup
// finalizes the model.
func openSession(withStore bool) (*session.Session, func(), error) {
	model, err := session.NewRegistry().GetBackend(cfg.Backend, session.BackendOptions{
		Address: cfg.Address,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithVariable(cfg.Variable),
	}
	if withStore {
		st := storage.New(cfg.DataDir)
		if err := st.Init(); err != nil {
			return nil, nil, err
		}
		opts = append(opts, session.WithStore(st))
	}
	s := session.New(model, opts...)

	if err := s.Open(cfg.ModelConfig); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Warn("finalize failed", zap.Error(err))
		}
		if cl, ok := model.(interface{ Close() }); ok {
			cl.Close()
		}
	}
	return s, cleanup, nil
}

// openWithCoords is openSession plus the coordinate cache: the configured
// file if any, otherwise whatever the model reports.
func openWithCoords(withStore bool) (*session.Session, *coords.Cache, func(), error) {
	s, cleanup, err := openSession(withStore)
	if err != nil {
		return nil, nil, nil, err
	}

	var c *coords.Cache
	if cfg.Coords != "" {
		c, err = coords.Load(cfg.Coords)
	} else {
		c, err = coords.FromModel(s.Model(), cfg.Variable)
	}
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("coordinates: %w", err)
	}
	return s, c, cleanup, nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(false)
	if err != nil {
		return err
	}
	defer done()

	info, err := s.Info()
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Println(viz.InfoTable(info))
	return nil
}

func defaultImagePath() string {
	return filepath.Join(cfg.OutputDir, cfg.Variable+".png")
}

func runRender(cmd *cobra.Command, args []string) error {
	path := defaultImagePath()
	if len(args) == 1 {
		path = args[0]
	}

	s, c, done, err := openWithCoords(saveSnap)
	if err != nil {
		return err
	}
	defer done()

	var img *render.RenderedImage
	if saveSnap {
		snap, err := s.Snapshot(cfg.Variable, c, cfg.Style)
		if err != nil {
			return err
		}
		img = snap.Image
		fmt.Printf("snapshot: %s\n", snap.ID)
	} else if img, err = s.Render(cfg.Variable, c, cfg.Style); err != nil {
		return err
	}

	if err := export.Write(path, img, export.Options{EdgeColor: cfg.Style.EdgeColor}); err != nil {
		return err
	}
	fmt.Printf("%s: %d nodes, %d faces, range [%g, %g] -> %s\n",
		img.Label, len(img.Values), len(img.Mesh.Faces), img.Min, img.Max, path)
	return nil
}

func runMesh(cmd *cobra.Command, args []string) error {
	s, c, done, err := openWithCoords(false)
	if err != nil {
		return err
	}
	defer done()

	surf, err := render.New(render.WithLogger(logger)).Sample(s.Model(), cfg.Variable, c.X, c.Y)
	if err != nil {
		return err
	}

	canvas := viz.NewCanvas(meshCols, meshRows)
	viz.DrawMesh(canvas, surf.Mesh)
	fmt.Print(canvas.String())
	fmt.Printf("%d nodes, %d faces, %d edges\n", surf.Mesh.NodeCount(), len(surf.Mesh.Faces), len(surf.Mesh.Edges()))
	return nil
}

func scenario() session.Scenario {
	return session.Scenario{
		YShore: cfg.Scenario.YShore,
		Offset: cfg.Scenario.Offset,
		Until:  cfg.Scenario.Until,
		Step:   cfg.Scenario.Step,
	}
}

func runScenario(cmd *cobra.Command, args []string) error {
	s, c, done, err := openWithCoords(true)
	if err != nil {
		return err
	}
	defer done()

	paths, err := s.RunScenario(cmd.Context(), cfg.Variable, c, cfg.Style, scenario(), cfg.OutputDir)
	for _, p := range paths {
		fmt.Println(p)
	}
	if err != nil {
		return err
	}

	keys := make([]string, 0)
	metrics := s.Metrics()
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-14s %.4g\n", k, metrics[k])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	s, c, done, err := openWithCoords(false)
	if err != nil {
		return err
	}
	defer done()

	if shoreline {
		if err := s.ApplyShoreline(cfg.Variable, c, cfg.Scenario.YShore, cfg.Scenario.Offset); err != nil {
			return err
		}
	}

	surf, err := render.New(render.WithLogger(logger)).Sample(s.Model(), cfg.Variable, c.X, c.Y)
	if err != nil {
		return err
	}
	lm, err := viz.NewLiveModel(cmd.Context(), s, surf.Mesh, surf.Caption(), cfg.Scenario.Until, cfg.Scenario.Step)
	if err != nil {
		return err
	}
	if err := viz.RunLive(lm); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if outPath == "" {
		return nil
	}
	img, err := s.Render(cfg.Variable, c, cfg.Style)
	if err != nil {
		return err
	}
	if err := export.Write(outPath, img, export.Options{EdgeColor: cfg.Style.EdgeColor}); err != nil {
		return err
	}
	fmt.Println(outPath)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg.Backend == "http" {
		return fmt.Errorf("serve needs an in-process backend, got %q", cfg.Backend)
	}
	model, err := session.NewRegistry().GetBackend(cfg.Backend, session.BackendOptions{Logger: logger})
	if err != nil {
		return err
	}

	srv := bmihttp.NewServer(model, cfg.Address,
		bmihttp.WithServerLogger(logger),
		bmihttp.WithConfigRoot(configRoot))
	return srv.Serve(cmd.Context())
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	snaps, err := storage.New(cfg.DataDir).List()
	if err != nil {
		return err
	}

	if len(snaps) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVARIABLE\tMODEL TIME\tNODES\tMIN\tMAX\tSAVED")

	for _, snap := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%g %s\t%d\t%.4g\t%.4g\t%s\n",
			snap.ID,
			snap.Variable,
			snap.ModelTime,
			snap.TimeUnits,
			snap.Nodes,
			snap.Min,
			snap.Max,
			snap.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func plotSnapshot(cmd *cobra.Command, args []string) error {
	id := args[0]
	st := storage.New(cfg.DataDir)

	if asJSON {
		return st.ExportJSON(os.Stdout, id)
	}

	meta, err := st.Load(id)
	if err != nil {
		return err
	}
	values, err := st.LoadValues(id)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("snapshot: %s\n", meta.ID)
	fmt.Printf("component: %s\n", meta.Component)
	fmt.Printf("nodes: %d  faces: %d\n\n", meta.Nodes, meta.Faces)

	caption := fmt.Sprintf("%s (%s) by node at t=%g %s", meta.Variable, meta.Units, meta.ModelTime, meta.TimeUnits)
	fmt.Println(asciigraph.Plot(values,
		asciigraph.Height(15),
		asciigraph.Width(min(len(values), 100)),
		asciigraph.Caption(caption),
	))

	if len(meta.Metrics) > 0 {
		fmt.Println()
		keys := make([]string, 0, len(meta.Metrics))
		for k := range meta.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%-14s %.4g\n", k, meta.Metrics[k])
		}
	}
	return nil
}

func exportCoords(cmd *cobra.Command, args []string) error {
	path := "coords.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	_, c, done, err := openWithCoords(false)
	if err != nil {
		return err
	}
	defer done()

	if err := coords.Save(path, c); err != nil {
		return err
	}
	fmt.Printf("%d nodes -> %s\n", c.Len(), path)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCMAP\tRANGE\tEDGES\tSHADING")

	for _, name := range config.ListPresets() {
		p, _ := config.GetPreset(name)
		rng := "auto"
		if p.ValueMin != nil && p.ValueMax != nil {
			rng = fmt.Sprintf("%g..%g", *p.ValueMin, *p.ValueMax)
		}
		edges := p.EdgeColor
		if edges == "" {
			edges = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, p.ColorMap, rng, edges, p.Shading)
	}
	return w.Flush()
}
