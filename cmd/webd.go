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
	"context"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/daemon/webd"
	"github.com/rotblauer/livetrack/params"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
)

var webdConfig = params.DefaultWebDaemonConfig()

// webdCmd represents the webd command
var webdCmd = &cobra.Command{
	Use:   "webd",
	Short: "Start the push channel web daemon",
	Long: `Webd accepts samples and routes from publishers, and pushes them to followers.

Publishing endpoints require the shared token in $` + params.PublishTokenEnv + `, when it is set.
With a datadir, last known samples survive restarts and every accepted sample
is recorded to <datadir>/` + params.TracksDirName + `/<vehicle>.ndjson.gz for replay.
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		slog.Info("webd.Run")

		if webdConfig.Routing.BaseURL == "" {
			webdConfig.Routing = nil
		}
		mustValidate(webdConfig)
		server, err := webd.NewWebDaemon(webdConfig)
		if err != nil {
			log.Fatalln(err)
		}
		defer server.Close()

		ctx, stop := common.InterruptedContext(context.Background())
		defer stop()
		if err := server.Run(ctx); err != nil {
			log.Fatalln(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(webdCmd)

	pFlags := webdCmd.PersistentFlags()
	pFlags.StringVar(&webdConfig.Network, "network", webdConfig.Network, "Network to listen on")
	pFlags.StringVar(&webdConfig.Address, "address", webdConfig.Address, "HTTP address to listen on")
	pFlags.StringVar(&webdConfig.DataDir, "datadir", webdConfig.DataDir, `Directory for last known state and track logs
Empty keeps state in memory only.`)
	pFlags.StringVar(&webdConfig.Routing.BaseURL, "routing.url", webdConfig.Routing.BaseURL, `OSRM-compatible routing service for /roads/nearest
Empty disables nearest-road lookups.`)
	pFlags.StringVar(&webdConfig.Routing.Profile, "routing.profile", webdConfig.Routing.Profile, "OSRM routing profile")
}
