package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
	"utiligee/internal/jobs"
	"utiligee/internal/pipeline"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Composite a dataset and export it clipped to a region",
	Long: `Select a dataset and date range, average the chosen bands over time,
	show the composite on a map and export it to Google Drive or Cloud Storage.

	The export is queued remotely and fetch returns its job id. Pass --wait
	to poll until the job finishes.

	Options:
		--dataset:   Earth Engine catalog id.
		--start/end: Date range, start inclusive, end exclusive (YYYY-MM-DD).
		--bands:     Bands to composite, in order.
		--region:    Bounding rectangle xmin,ymin,xmax,ymax.
		--geometry:  GeoJSON file with the region. Takes precedence over --region.
		--mpp:       Meters per pixel. Smaller values yield higher resolution images.`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := regionFromConfig()
		if err != nil {
			return err
		}
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}

		session, err := newSession(cmd.Context(), &region)
		if err != nil {
			return err
		}

		logrus.Info("Extracting GeoTIFF")
		res, err := pipeline.Run(cmd.Context(), session, region, cfg)
		if err != nil {
			return err
		}
		if res.View != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Map centered at %.6f, %.6f (zoom %d), layer %q: %s\n",
				res.View.Center.Lat, res.View.Center.Lng, res.View.Zoom, res.View.Layer.Label, res.View.Layer.TileURL)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Working on export task (id: %s).\n", res.Job.ID)

		if !viper.GetBool("wait") {
			return nil
		}
		monitor := jobs.NewMonitor(session, viper.GetDuration("pollInterval"))
		job, err := monitor.Wait(cmd.Context(), res.Job.ID, logProgress)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Export complete. %s\n", destinationMessage(cfg.Destination, job))
		return nil
	},
}

func logProgress(job ee.Job) {
	logrus.WithFields(logrus.Fields{"job": job.ID, "state": job.State}).Infof("Export %.0f%%", job.Progress*100)
}

func destinationMessage(dest ee.Destination, job ee.Job) string {
	if len(job.DestinationURIs) > 0 {
		return "Files available at " + strings.Join(job.DestinationURIs, ", ")
	}
	if dest.Kind == ee.CloudStorage {
		return fmt.Sprintf("File available at gs://%s/%s.tif", dest.Bucket, dest.FilenamePrefix)
	}
	return fmt.Sprintf("File available in Drive at /%s/%s.tif", dest.Folder, dest.FilenamePrefix)
}

func regionFromConfig() (geometry.Region, error) {
	if path := viper.GetString("geometry"); path != "" {
		return geometry.Load(path)
	}
	return geometry.ParseBounds(viper.GetString("region"))
}

func pipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.Dataset = viper.GetString("dataset")
	cfg.Start = viper.GetString("start")
	cfg.End = viper.GetString("end")
	cfg.Bands = viper.GetStringSlice("bands")
	cfg.CloudMax = viper.GetFloat64("cloudMax")
	cfg.SkipView = viper.GetBool("noView")

	vis, err := pipeline.NewVisParams(viper.GetFloat64("min"), viper.GetFloat64("max"))
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.View = pipeline.ViewOptions{
		MaxError: viper.GetFloat64("maxError"),
		Zoom:     viper.GetInt("zoom"),
		Vis:      vis,
		Label:    viper.GetString("label"),
	}

	cfg.Description = viper.GetString("desc")
	cfg.Scale = viper.GetFloat64("mpp")
	cfg.MaxPixels = viper.GetInt64("maxPixels")
	cfg.Destination = ee.Destination{
		Kind:   ee.DestinationKind(viper.GetString("destination")),
		Folder: strings.TrimSuffix(viper.GetString("outputDir"), "/"),
		Bucket: viper.GetString("bucket"),
	}
	cfg.Destination.FilenamePrefix = cfg.Description
	return cfg, nil
}

// addPipelineFlags registers the flags shared by fetch and preview.
func addPipelineFlags(cmd *cobra.Command) {
	defaults := pipeline.DefaultConfig()
	bounds := geometry.DefaultBounds
	flags := cmd.Flags()
	flags.String("dataset", defaults.Dataset, "Earth Engine dataset id")
	flags.String("start", defaults.Start, "Start date (yyyy-mm-dd), inclusive")
	flags.String("end", defaults.End, "End date (yyyy-mm-dd), exclusive")
	flags.StringSlice("bands", defaults.Bands, "Bands to composite")
	flags.String("region", fmt.Sprintf("%v,%v,%v,%v", bounds[0], bounds[1], bounds[2], bounds[3]),
		"Bounding rectangle corners: xmin,ymin,xmax,ymax")
	flags.String("geometry", "", "GeoJSON file holding the region")
	flags.Float64("cloudMax", 0, "Keep images with CLOUDY_PIXEL_PERCENTAGE below this (0 disables)")
	flags.Float64("min", defaults.View.Vis.Min, "Display stretch minimum")
	flags.Float64("max", defaults.View.Vis.Max, "Display stretch maximum")
	flags.Int("zoom", defaults.View.Zoom, "Map zoom level")
	flags.Float64("maxError", defaults.View.MaxError, "Centroid tolerance in meters")
	flags.String("label", defaults.View.Label, "Map layer label")
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	addPipelineFlags(fetchCmd)
	defaults := pipeline.DefaultConfig()
	fetchCmd.Flags().String("desc", defaults.Description, "Description of the export (file name root)")
	fetchCmd.Flags().Float64P("mpp", "m", defaults.Scale, "Meters per pixel. Smaller values yield higher resolution images")
	fetchCmd.Flags().Int64("maxPixels", 0, "Export pixel limit (0 uses the platform default)")
	fetchCmd.Flags().String("destination", string(ee.Drive), "Export destination: drive or gcs")
	fetchCmd.Flags().StringP("outputDir", "o", "UtiliGEE_Exports", "Output folder in Google Drive")
	fetchCmd.Flags().String("bucket", "", "Cloud Storage bucket for gcs exports")
	fetchCmd.Flags().Bool("noView", false, "Skip the map preview requests")
	fetchCmd.Flags().BoolP("wait", "w", false, "Poll until the export finishes")
	fetchCmd.Flags().Duration("pollInterval", jobs.DefaultPollInterval, "Time between status polls with --wait")
}
