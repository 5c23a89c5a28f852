package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/cleanloom/internal/analysis"
	"github.com/KaramelBytes/cleanloom/internal/utils"
)

var (
	insOutputPath    string
	insJSON          bool
	insSampleRows    int
	insContamination float64
	insReader        readerFlags
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|preset>",
	Short: "Profile a dataset and preview what each cleaning stage would find",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		opt, err := insReader.options(c.Ingest())
		if err != nil {
			return err
		}
		ds, name, err := loadInput(args[0], c.PresetsDir, opt)
		if err != nil {
			return err
		}

		popt := analysis.DefaultOptions()
		popt.SampleRows = insSampleRows
		popt.Identifiers = c.IdentifierColumns
		popt.Forest = c.Pipeline().Forest
		if insContamination > 0 {
			popt.Contamination = insContamination
		}
		rep := analysis.Profile(name, ds, popt)

		var body []byte
		if insJSON {
			body, err = utils.PrettyJSON(rep)
			if err != nil {
				return err
			}
		} else {
			body = []byte(rep.Markdown())
		}

		// --output path, or stdout
		if insOutputPath != "" {
			if err := os.WriteFile(insOutputPath, body, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote profile to %s\n", insOutputPath)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVarP(&insOutputPath, "output", "o", "", "optional path to write the profile")
	inspectCmd.Flags().BoolVar(&insJSON, "json", false, "emit JSON instead of Markdown")
	inspectCmd.Flags().IntVar(&insSampleRows, "sample-rows", 5, "number of sample rows to include")
	inspectCmd.Flags().Float64Var(&insContamination, "contamination", 0, "contamination for the outlier preview (default 0.15)")
	addReaderFlags(inspectCmd, &insReader)
}

func addReaderFlags(cmd *cobra.Command, f *readerFlags) {
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	cmd.Flags().StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	cmd.Flags().StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to load")
	cmd.Flags().IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
}
