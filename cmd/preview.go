package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"utiligee/internal/pipeline"
	"utiligee/internal/preview"
)

// previewCmd represents the preview command
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Serve a map of the composite without exporting it",
	Long: `Build the same composite as fetch, center a map on the region's
	centroid and serve it at http://host:port/ until interrupted. The view
	is also available as JSON at /api/view.`,
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

		composite, err := pipeline.Composite(cfg)
		if err != nil {
			return err
		}
		view, err := pipeline.Visualize(cmd.Context(), session, region, composite, cfg.View)
		if err != nil {
			return err
		}

		srvCfg := preview.DefaultConfig()
		srvCfg.Host = viper.GetString("host")
		srvCfg.Port = viper.GetInt("port")
		srv := preview.NewServer(srvCfg, view)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Serving map at http://%s/\n", srv.Addr())

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-cmd.Context().Done():
		}

		logrus.Info("Shutting down preview server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	addPipelineFlags(previewCmd)
	defaults := preview.DefaultConfig()
	previewCmd.Flags().String("host", defaults.Host, "Address to listen on")
	previewCmd.Flags().IntP("port", "p", defaults.Port, "Port to listen on")
}
