package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "utiligee",
	Short: "Fetch, track and convert Earth Engine composite exports",
	Long: `Select an Earth Engine image collection, reduce it to a per-pixel
	mean composite, preview it on a map and export it clipped to a region:
	./utiligee fetch [opts]

	Exports run remotely; follow them with the jobs subcommands, then
	post-process the downloaded GeoTIFF with convert or index.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevels()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.utiligee.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug output")
	rootCmd.PersistentFlags().String("project", "", "Cloud project that owns Earth Engine requests")
	rootCmd.PersistentFlags().String("credentials", "", "Service account key file (default: application default credentials)")
	rootCmd.PersistentFlags().String("endpoint", "", "Earth Engine API base URL override")
	rootCmd.PersistentFlags().Bool("dryRun", false, "Record requests instead of sending them")

	for _, name := range []string{"verbose", "debug", "project", "credentials", "endpoint", "dryRun"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			logrus.Exit(1)
		}
	}
}

// initConfig reads .env, the config file and UTILIGEE_* environment
// variables, in increasing order of precedence below flags.
func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Reading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".utiligee")
	}

	viper.SetEnvPrefix("utiligee")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logrus.Debugf("Using config file %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		logrus.Fatalf("Reading config %s: %v", cfgFile, err)
	}
}

func setLogLevels() {
	if viper.GetBool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	} else if viper.GetBool("verbose") {
		logrus.SetLevel(logrus.InfoLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// bindFlags binds cmd's local flags to viper keys of the same name. Done at
// run time because several commands share key names.
func bindFlags(cmd *cobra.Command, args []string) error {
	return viper.BindPFlags(cmd.Flags())
}
