package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom/internal/pipeline"
	"github.com/KaramelBytes/cleanloom/internal/utils"
	"github.com/KaramelBytes/cleanloom/internal/visual"
)

var (
	runOut    string
	runSeed   int64
	runScript []string
	runCharts string
	runReader readerFlags
)

const maxShownRows = 10

var runCmd = &cobra.Command{
	Use:   "run <file|preset>",
	Short: "Clean a dataset interactively, one stage at a time",
	Long: `run loads a file (or a bundled preset such as "iris") and walks it through
the cleaning stages. Type an action keyword at each prompt, e.g. "impute-knn",
"delete", "more" or "finish-missing". --script supplies the keywords up front
for non-interactive use. When the download stage is reached the cleaned CSV
and the action log are written to --out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		opt, err := runReader.options(c.Ingest())
		if err != nil {
			return err
		}
		ds, name, err := loadInput(args[0], c.PresetsDir, opt)
		if err != nil {
			return err
		}
		popts := c.Pipeline()
		if cmd.Flags().Changed("seed") {
			popts.Forest.Seed = runSeed
		}
		if runCharts != "" {
			if err := utils.EnsureDir(runCharts); err != nil {
				return fmt.Errorf("create chart dir: %w", err)
			}
		}

		sess := pipeline.New(popts, nil, logger)
		out, err := sess.Load(ds, name)
		if err != nil {
			return err
		}
		r := &runner{sess: sess, w: cmd.OutOrStdout(), charts: runCharts, scripted: len(runScript) > 0}
		r.show(out)
		if err := r.loop(actionSource(cmd.InOrStdin(), runScript)); err != nil {
			return err
		}
		if sess.Stage() != pipeline.StageDownload {
			return nil
		}

		dir := runOut
		if dir == "" {
			dir = c.ExportDir
		}
		b, err := sess.Export(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.w, "✓ Wrote %d rows to %s\n", b.Rows, b.DataPath)
		fmt.Fprintf(r.w, "✓ Wrote action log to %s\n", b.LogPath)
		if sum, err := sess.Summary(); err == nil {
			fmt.Fprintf(r.w, "Dirtiness: %.3f → %.3f (%d → %d rows)\n", sum.Before, sum.After, sum.OriginalRows, sum.CurrentRows)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "export directory (default from config export_dir)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "isolation forest seed (overrides config)")
	runCmd.Flags().StringSliceVar(&runScript, "script", nil, "comma-separated action keywords to apply instead of prompting")
	runCmd.Flags().StringVar(&runCharts, "charts", "", "directory to write the chart of every step as PNG")
	addReaderFlags(runCmd, &runReader)
}

// actionSource yields keywords from the script when given, else from in.
func actionSource(in io.Reader, script []string) func() (string, bool) {
	if len(script) > 0 {
		i := 0
		return func() (string, bool) {
			if i >= len(script) {
				return "", false
			}
			i++
			return strings.TrimSpace(script[i-1]), true
		}
	}
	sc := bufio.NewScanner(in)
	return func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}
}

type runner struct {
	sess     *pipeline.Session
	w        io.Writer
	charts   string
	scripted bool
}

// loop applies actions until the download stage, "quit" or end of input.
func (r *runner) loop(next func() (string, bool)) error {
	for r.sess.Stage() != pipeline.StageDownload {
		if !r.scripted {
			fmt.Fprint(r.w, "> ")
		}
		kw, ok := next()
		if !ok {
			if r.scripted {
				st, _ := r.sess.State()
				return fmt.Errorf("script ended in stage %s", st.Stage)
			}
			return nil
		}
		switch kw {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(r.w, "Aborted; nothing exported")
			return nil
		}
		kind, err := pipeline.ParseActionKind(kw)
		if err == nil {
			var out *pipeline.Outcome
			out, err = r.sess.Do(pipeline.Action{Kind: kind})
			if err == nil {
				r.show(out)
				continue
			}
		}
		var blk *pipeline.BlockingError
		if errors.As(err, &blk) {
			fmt.Fprintf(r.w, "✗ %s\n", blk.Error())
		} else {
			fmt.Fprintf(r.w, "✗ %v\n", err)
		}
		if r.scripted {
			return err
		}
	}
	return nil
}

func (r *runner) show(out *pipeline.Outcome) {
	fmt.Fprintf(r.w, "\n== %s (step %d) ==\n", out.Stage, out.Step)
	if out.Message != "" {
		fmt.Fprintln(r.w, out.Message)
	}
	if out.Contamination > 0 {
		fmt.Fprintf(r.w, "contamination: %.4g\n", out.Contamination)
	}
	for _, m := range out.Missing {
		if m.Count > 0 {
			fmt.Fprintf(r.w, "  %s: %d missing\n", m.Column, m.Count)
		}
	}
	if out.Rows != nil {
		n := min(out.Rows.Len(), maxShownRows)
		fmt.Fprintln(r.w, strings.Join(out.Rows.Names(), " | "))
		for i := 0; i < n; i++ {
			fmt.Fprintln(r.w, strings.Join(out.Rows.Row(i), " | "))
		}
		if out.Rows.Len() > n {
			fmt.Fprintf(r.w, "... %d more rows\n", out.Rows.Len()-n)
		}
	}
	r.chart(out)
	if out.Stage == pipeline.StageDownload.String() {
		return
	}
	opts := make([]string, 0, len(out.Menu)+1)
	for _, k := range out.Menu {
		opts = append(opts, k.String())
	}
	if fin := r.sess.FinishAction(); fin != 0 {
		opts = append(opts, fin.String())
	}
	fmt.Fprintf(r.w, "actions: %s\n", strings.Join(opts, ", "))
}

func (r *runner) chart(out *pipeline.Outcome) {
	if out.Chart.Unavailable {
		fmt.Fprintln(r.w, "chart: none available")
		return
	}
	spec := out.Chart.Spec
	line := fmt.Sprintf("chart: %s %s × %s", spec.Mark, spec.X, spec.Y)
	if spec.Color != "" {
		line += " coloured by " + spec.Color
	}
	if out.Chart.MissingValues {
		line += " (missing values)"
	}
	if r.charts == "" {
		fmt.Fprintln(r.w, line)
		return
	}
	res, ds := r.sess.LastChart()
	path := filepath.Join(r.charts, fmt.Sprintf("step-%02d.png", out.Step))
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(r.w, "%s; cannot write PNG: %v\n", line, err)
		return
	}
	defer f.Close()
	if err := visual.RenderPNG(ds, res.Spec, f); err != nil {
		fmt.Fprintf(r.w, "%s; render failed: %v\n", line, err)
		return
	}
	fmt.Fprintf(r.w, "%s → %s\n", line, path)
}
