package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chazu/forma/pkg/config"
	"github.com/chazu/forma/pkg/engine"
	"github.com/chazu/forma/pkg/graph"
	"github.com/chazu/forma/pkg/kernel/sdfx"
	"github.com/chazu/forma/pkg/tessellate"
	"github.com/chazu/forma/pkg/watch"
	"github.com/spf13/cobra"
)

const sourceExt = ".forma"

// env is the per-invocation state shared by subcommands.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	engine *engine.Engine
}

type envKey struct{}

func loadEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
		if _, err := cfg.Log.SlogLevel(); err != nil {
			return err
		}
	}
	log := cfg.Log.NewLogger()
	e := &env{
		cfg: cfg,
		log: log,
		engine: engine.NewEngine(
			engine.WithTimeout(cfg.Engine.Timeout.Std()),
			engine.WithLogger(log),
		),
	}
	cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
	return nil
}

func envFrom(cmd *cobra.Command) *env {
	return cmd.Context().Value(envKey{}).(*env)
}

// codecFor picks the codec for path from its extension.
func codecFor(path string) (graph.Codec, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "yml":
		ext = "yaml"
	case "mp", "msgp":
		ext = "msgpack"
	}
	c, err := graph.CodecByName(ext)
	if err != nil {
		return nil, fmt.Errorf("%s: cannot infer codec from extension (have %s)", path, strings.Join(graph.CodecNames(), ", "))
	}
	return c, nil
}

func (e *env) codec(cmd *cobra.Command) (graph.Codec, error) {
	if cmd.Flags().Lookup("codec") != nil {
		if name, _ := cmd.Flags().GetString("codec"); name != "" {
			return graph.CodecByName(name)
		}
	}
	return e.cfg.Codec()
}

// load evaluates .forma sources and decodes everything else.
func (e *env) load(ctx context.Context, path string) (*graph.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), sourceExt) {
		res, err := e.engine.Run(ctx, string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(res.Errors) > 0 {
			msgs := make([]string, 0, len(res.Errors))
			for _, ee := range res.Errors {
				msgs = append(msgs, ee.Error())
			}
			return nil, fmt.Errorf("%s: %s", path, strings.Join(msgs, "; "))
		}
		for _, w := range res.Warnings {
			e.log.Warn("source warning", "path", path, "message", w.Message)
		}
		return res.Document, nil
	}

	codec, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	return graph.Decode(data, codec)
}

func writeDocument(d *graph.Document, path string, codec graph.Codec) error {
	data, err := graph.Encode(d, codec)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func outputPath(source string, codec graph.Codec) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + "." + codec.Name()
}

func runBuild(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	codec, err := e.codec(cmd)
	if err != nil {
		return err
	}
	d, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = outputPath(args[0], codec)
	}
	if err := writeDocument(d, out, codec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d elements, %s)\n", out, d.Len(), codec.Name())
	return nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	d, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	gen := e.cfg.Generator()
	if ns, _ := cmd.Flags().GetString("namespace"); ns != "" {
		gen.Namespace = ns
	}
	if bare, _ := cmd.Flags().GetBool("bare"); bare {
		gen.Namespace = ""
	}
	script, err := gen.Generate(d)
	if err != nil {
		return err
	}
	if script != "" {
		fmt.Fprintln(cmd.OutOrStdout(), script)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	strict, _ := cmd.Flags().GetBool("strict")
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		d, err := e.load(cmd.Context(), path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		findings := graph.Validate(d)
		for _, f := range findings {
			fmt.Fprintf(out, "%s: %s\n", path, f.Error())
		}
		if graph.HasErrors(findings) || (strict && len(findings) > 0) {
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d elements)\n", path, d.Len())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed the check", failed, len(args))
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	d, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var codec graph.Codec
	if to, _ := cmd.Flags().GetString("to"); to != "" {
		if codec, err = graph.CodecByName(to); err != nil {
			return err
		}
	}
	var out string
	switch {
	case len(args) == 2:
		out = args[1]
		if codec == nil {
			if codec, err = codecFor(out); err != nil {
				return err
			}
		}
	case codec == nil:
		return errors.New("convert: need --to or an output path")
	default:
		out = outputPath(args[0], codec)
		if out == args[0] {
			return fmt.Errorf("convert: %s is already %s", args[0], codec.Name())
		}
	}

	if err := writeDocument(d, out, codec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", out, codec.Name())
	return nil
}

func runMesh(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	d, err := e.load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	cells := e.cfg.Kernel.MeshCells
	if n, _ := cmd.Flags().GetInt("cells"); n > 0 {
		cells = n
	}
	meshes, err := tessellate.TessellateContext(cmd.Context(), d, sdfx.New(sdfx.WithMeshCells(cells)),
		tessellate.WithParallelism(e.cfg.Kernel.Parallelism),
		tessellate.WithLogger(e.log),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range meshes {
		size := "-"
		if lo, hi, ok := m.Bounds(); ok {
			d := hi.Sub(lo)
			size = fmt.Sprintf("%.1fx%.1fx%.1f", d[0], d[1], d[2])
		}
		fmt.Fprintf(out, "%-16s id=%-4d triangles=%-8d size=%s\n", m.PartName, m.EntityID, m.TriangleCount(), size)
	}
	fmt.Fprintf(out, "%d meshes\n", len(meshes))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	e := envFrom(cmd)
	codec, err := e.codec(cmd)
	if err != nil {
		return err
	}
	for _, path := range args {
		if !strings.EqualFold(filepath.Ext(path), sourceExt) {
			return fmt.Errorf("%s: watch only accepts %s sources", path, sourceExt)
		}
	}

	out := cmd.OutOrStdout()
	rebuild := func(ctx context.Context, paths []string) error {
		var errs []error
		for _, path := range paths {
			d, err := e.load(ctx, path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			target := outputPath(path, codec)
			if err := writeDocument(d, target, codec); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Fprintf(out, "Rebuilt %s (%d elements)\n", target, d.Len())
		}
		return errors.Join(errs...)
	}

	w, err := watch.New(rebuild,
		watch.WithDebounce(e.cfg.Watch.Debounce.Std()),
		watch.WithLogger(e.log),
	)
	if err != nil {
		return err
	}
	for _, path := range args {
		if err := w.Add(path); err != nil {
			w.Close()
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial build so outputs exist before the first change.
	if err := rebuild(ctx, w.Files()); err != nil {
		e.log.Warn("initial build failed", "error", err)
	}
	fmt.Fprintf(out, "Watching %d file(s); press Ctrl-C to stop\n", len(args))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
