/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"github.com/mitchellh/go-homedir"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/params"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"log"
	"log/slog"
	"os"
	"strings"
)

var cfgFile string
var optVerbosity int
var optLogJSON bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livetrack",
	Short: "Live vehicle tracking",
	Long: `livetrack moves vehicles smoothly along their routes in real time.

Publishers push location samples to the web daemon, which fans them out
over a websocket. Followers animate each vehicle at 60 frames a second,
gliding along its route between sparse, late and noisy samples.

  livetrack webd                       # run the push channel
  livetrack publish --vehicle YUG-199  # drive a simulated vehicle
  livetrack follow --vehicle YUG-199   # animate it, frames to stdout
  livetrack replay track.ndjson.gz     # animate a recorded track

Flags may also be set in $HOME/.livetrack.yaml, keyed by flag name,
or with LIVETRACK_<FLAG> environment variables (dots and dashes become underscores).
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.livetrack.yaml)")
	pFlags.IntVar(&optVerbosity, "verbosity", int(slog.LevelInfo), `Log level
-4 debug, 0 info, 4 warn, 8 error`)
	pFlags.BoolVar(&optLogJSON, "log.json", false, "Log JSON instead of text")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".livetrack")
	}

	viper.SetEnvPrefix("LIVETRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// bindFlags fills every flag not set on the command line
// from the config file or environment.
func bindFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || !viper.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, fmt.Sprint(viper.Get(f.Name))); err != nil {
			slog.Warn("Ignoring config value", "flag", f.Name, "error", err)
		}
	})
}

// setDefaultSlog applies config to the command's flags,
// then installs the default logger on stderr.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	bindFlags(cmd)
	slog.SetDefault(slog.New(common.NewSlogHandler(os.Stderr, slog.Level(optVerbosity), optLogJSON)))
}

// mustValidate exits when a config fails its validate tags.
func mustValidate(configs ...any) {
	for _, c := range configs {
		if err := params.Validate(c); err != nil {
			log.Fatalln("invalid config:", err)
		}
	}
}
