package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"utiligee/cellsio"
	"utiligee/celltools"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [tif_file] [output_path]",
	Short: "Aggregate an exported composite onto S2 cells",
	Long: `Aggregate every band of an exported composite GeoTIFF onto S2 cells,
	writing one row per band and cell. The output type follows the
	output_path extension: .parquet or .csv.

	Rasters in a projected CRS are warped to WGS84 before indexing.

	Options:
		--numWorkers: Number of workers to spawn for parallel processing. Not recommended
									to exceed number of CPU cores.
		--s2Lvl:			S2 cell level to generate results for. Essentially output resolution.
		--aggFunc:		Function to use when aggregating to S2 cell. Default is the mean,
									choose from: mean, sum, max, min
		--bands:			Names for the raster bands, in order.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[1]
		ext := strings.ToLower(filepath.Ext(out))
		if ext != ".parquet" && ext != ".csv" {
			return fmt.Errorf("output %s: want a .parquet or .csv file", out)
		}

		aggFunc, err := celltools.AggFuncByName(viper.GetString("aggFunc"))
		if err != nil {
			return err
		}

		opts := celltools.ConfigOpts{
			NumWorkers: viper.GetInt("numWorkers"),
			S2Lvl:      viper.GetInt("s2Lvl"),
			AggFunc:    aggFunc,
			BandNames:  viper.GetStringSlice("bands"),
		}

		cells, err := celltools.CompositeToS2(args[0], opts)
		if err != nil {
			return err
		}

		if ext == ".parquet" {
			err = cellsio.WriteToParquet(cells, out, viper.GetInt("rowBuffer"))
		} else {
			err = cellsio.WriteToCSV(cells, out)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cells to %s\n", len(cells), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().IntP("numWorkers", "n", 8, "Number of workers to spawn for parallel processing")
	indexCmd.Flags().IntP("s2Lvl", "l", 17, "S2 cell level to generate results for. Essentially output resolution")
	indexCmd.Flags().StringP("aggFunc", "a", "mean", "Function to use when aggregating to S2 cell: mean, sum, max, min")
	indexCmd.Flags().StringSlice("bands", []string{"R", "G", "B"}, "Names for the raster bands, in order")
	indexCmd.Flags().Int("rowBuffer", cellsio.DefaultRowBufferSize, "Rows buffered between parquet flushes")
}
