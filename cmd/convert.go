package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"utiligee/internal/raster"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert [tif_file]",
	Short: "Convert an exported GeoTIFF to a common image type",
	Long: `Convert a GeoTIFF exported from Earth Engine to png (default), jpg,
	webp, bmp or an 8-bit tif. Values are stretched onto 0-255, from --min
	and --max when both are given, otherwise from the data range.

	Options:
		--channels: Source bands (1-indexed) used for red, green and blue.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := raster.DefaultConvertOptions()
		opts.Format = viper.GetString("format")
		opts.OutputDir = viper.GetString("out")

		channels, err := cmd.Flags().GetIntSlice("channels")
		if err != nil {
			return err
		}
		if len(channels) != 3 {
			return fmt.Errorf("want 3 channels, got %d", len(channels))
		}
		copy(opts.Channels[:], channels)

		if cmd.Flags().Changed("min") || cmd.Flags().Changed("max") {
			min, max := viper.GetFloat64("min"), viper.GetFloat64("max")
			opts.Min, opts.Max = &min, &max
		}

		dst, err := raster.Convert(args[0], opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dst)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	defaults := raster.DefaultConvertOptions()
	convertCmd.Flags().StringP("out", "o", defaults.OutputDir, "Output directory")
	convertCmd.Flags().StringP("format", "f", defaults.Format, "Output image format")
	convertCmd.Flags().IntSlice("channels", defaults.Channels[:], "Source bands for red, green and blue")
	convertCmd.Flags().Float64("min", 0, "Minimum value of image data. Inferred from the image when unset")
	convertCmd.Flags().Float64("max", 255, "Maximum value of image data. Inferred from the image when unset")
}
