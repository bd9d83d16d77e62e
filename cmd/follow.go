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
	"github.com/rotblauer/livetrack/animate"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/follow"
	"github.com/rotblauer/livetrack/osrm"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/snap"
	"github.com/rotblauer/livetrack/tracklog"
	"github.com/spf13/cobra"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

var followConfig = params.DefaultFollowConfig()
var followSnap = params.DefaultSnapConfig()
var followRouting = params.DefaultRoutingConfig()
var followAnimator = params.DefaultAnimatorConfig()

var optFollowOut string

// followCmd represents the follow command
var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Animate a live vehicle, writing frames as NDJSON",
	Long: `Follow primes a vehicle from its last known sample, subscribes to the web daemon's
websocket, and animates the vehicle along its route at 60 frames a second.

Frames are written as NDJSON, or GeoJSON point features with --geojson,
down-sampled to --output-interval. Output ending in .gz is compressed.

  livetrack follow --vehicle YUG-199 --output-interval 1s | jq .position
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		mustValidate(followConfig, followSnap, followRouting, followAnimator)

		ctx, stop := common.InterruptedContext(context.Background())
		defer stop()

		out, closeOut, err := openFrameOutput(optFollowOut)
		if err != nil {
			log.Fatalln(err)
		}
		defer closeOut()

		var provider snap.NearestProvider
		if followSnap.UseNearestRoad && followRouting.BaseURL != "" {
			c, err := osrm.NewClient(followRouting)
			if err != nil {
				log.Fatalln(err)
			}
			provider = c
		}
		snapper := snap.New(ctx, followSnap, provider)

		sink := follow.NewNDJSONSink(out, followConfig.OutputInterval, followConfig.GeoJSON)
		loop := animate.NewLoop(conceptual.VehicleID(followConfig.Vehicle), animate.LoopConfig{
			Animator: followAnimator,
			Ingest:   params.DefaultIngestConfig(),
		}, snapper, sink)

		f := follow.NewFollower(followConfig, loop)
		if err := f.Run(ctx); err != nil {
			closeOut()
			log.Fatalln(err)
		}
		slog.Info("Follow done", "lag", f.Lag())
	},
}

// openFrameOutput opens path for frames. Empty or "-" is stdout.
func openFrameOutput(path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return os.Stdout, func() {}, nil
	}
	if strings.HasSuffix(path, ".gz") {
		w, err := tracklog.NewGZFileWriter(path, nil)
		if err != nil {
			return nil, nil, err
		}
		return w, func() { _ = w.Close() }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func init() {
	rootCmd.AddCommand(followCmd)

	flags := followCmd.Flags()
	flags.StringVar(&followConfig.Server, "server", followConfig.Server, "Web daemon base URL")
	flags.StringVar(&followConfig.Vehicle, "vehicle", followConfig.Vehicle, "Vehicle ID")
	flags.DurationVar(&followConfig.OutputInterval, "output-interval", followConfig.OutputInterval, `Shortest time between written frames
Zero writes every frame.`)
	flags.BoolVar(&followConfig.GeoJSON, "geojson", followConfig.GeoJSON, "Write frames as GeoJSON features")
	flags.DurationVar(&followConfig.ReconnectInterval, "reconnect-interval", followConfig.ReconnectInterval, "Wait between websocket reconnects")
	flags.DurationVar(&followConfig.SummaryInterval, "summary-interval", followConfig.SummaryInterval, `Log a lag summary this often
Zero disables it.`)
	flags.StringVarP(&optFollowOut, "out", "o", "-", "Frame output file")

	flags.DurationVar(&followAnimator.Lead, "lead", followAnimator.Lead, "Extrapolate the target this far ahead of the latest sample")
	flags.Float64Var(&followSnap.Threshold, "snap.threshold", followSnap.Threshold, "Snap frames within this many meters onto the route or road")
	flags.BoolVar(&followSnap.UseNearestRoad, "snap.nearest-road", followSnap.UseNearestRoad, "Snap to the nearest road when there is no route")
	flags.StringVar(&followRouting.BaseURL, "routing.url", followRouting.BaseURL, "OSRM-compatible service for nearest-road lookups")
}
