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
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/livetrack/adhere"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/geo/geom"
	"github.com/rotblauer/livetrack/osrm"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/publisher"
	"github.com/rotblauer/livetrack/types/sample"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

var publishConfig = params.DefaultPublisherConfig()
var publishRouting = params.DefaultRoutingConfig()

var optPublishStart, optPublishMoveEnd, optPublishRouteEnd string
var optPublishSpeedKMH float64
var optPublishStatus string
var optPublishEnd bool

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Drive a simulated vehicle and publish its samples",
	Long: `Publish drives a ghost vehicle from --start to --move-end along a road route,
publishing a sample at every route point.

The route shown to followers runs from --start to --route-end, which defaults to --move-end.
When they differ, the vehicle strays off the displayed route and the route is replaced
with a fresh one from its current position.
Without a routing service, routes are straight lines.

Coordinates are "lat,lng".

  livetrack publish --vehicle YUG-199 --start 42.9814,-81.2466 --move-end 43.6160,-79.7018
  livetrack publish --vehicle YUG-199 --status paused
  livetrack publish --vehicle YUG-199 --end
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)

		client := publisher.NewClient(publishConfig)

		ctx, stop := common.InterruptedContext(context.Background())
		defer stop()

		// One-shot session commands.
		if optPublishStatus != "" {
			if err := client.SetStatus(ctx, sample.Status(optPublishStatus)); err != nil {
				log.Fatalln(err)
			}
			slog.Info("Status set", "vehicle", publishConfig.Vehicle, "status", optPublishStatus)
			return
		}
		if optPublishEnd {
			if err := client.EndSession(ctx); err != nil {
				log.Fatalln(err)
			}
			slog.Info("Session ended", "vehicle", publishConfig.Vehicle)
			return
		}

		var err error
		if publishConfig.Start, err = parseLatLng(optPublishStart); err != nil {
			log.Fatalln("start:", err)
		}
		if publishConfig.MoveEnd, err = parseLatLng(optPublishMoveEnd); err != nil {
			log.Fatalln("move-end:", err)
		}
		if optPublishRouteEnd != "" {
			if publishConfig.RouteEnd, err = parseLatLng(optPublishRouteEnd); err != nil {
				log.Fatalln("route-end:", err)
			}
		}
		publishConfig.Speed = optPublishSpeedKMH / 3.6
		mustValidate(publishConfig, publishRouting)

		var router adhere.Router
		if publishRouting.BaseURL != "" {
			c, err := osrm.NewClient(publishRouting)
			if err != nil {
				log.Fatalln(err)
			}
			router = c
		}

		agent := publisher.NewAgent(publishConfig, client, router)
		agent.Routing = publishRouting
		err = agent.Run(ctx)

		// Tell followers the vehicle is gone, even when interrupted.
		endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if endErr := client.EndSession(endCtx); endErr != nil {
			slog.Warn("Failed to end session", "error", endErr)
		}
		if err != nil && ctx.Err() == nil {
			log.Fatalln(err)
		}
		slog.Info("Publish done")
	},
}

// parseLatLng parses "lat,lng".
func parseLatLng(input string) (orb.Point, error) {
	parts := strings.Split(input, ",")
	if len(parts) != 2 {
		return orb.Point{}, fmt.Errorf("invalid coordinate: %q", input)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return orb.Point{}, fmt.Errorf("invalid lat/lng: %q", input)
	}
	p := orb.Point{lng, lat}
	if !geom.Valid(p) {
		return orb.Point{}, fmt.Errorf("out of range: %q", input)
	}
	return p, nil
}

func formatLatLng(p orb.Point) string {
	return strconv.FormatFloat(p.Lat(), 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon(), 'f', -1, 64)
}

func init() {
	rootCmd.AddCommand(publishCmd)

	pFlags := publishCmd.PersistentFlags()
	pFlags.StringVar(&publishConfig.Server, "server", publishConfig.Server, "Web daemon base URL")
	pFlags.StringVar(&publishConfig.Vehicle, "vehicle", publishConfig.Vehicle, "Vehicle ID")
	pFlags.StringVar(&publishConfig.Token, "token", "", "Shared publish token, also read from $"+params.PublishTokenEnv)
	pFlags.DurationVar(&publishConfig.Timeout, "timeout", publishConfig.Timeout, "Request timeout")

	flags := publishCmd.Flags()
	flags.StringVar(&optPublishStart, "start", formatLatLng(publishConfig.Start), "Start point, lat,lng")
	flags.StringVar(&optPublishMoveEnd, "move-end", formatLatLng(publishConfig.MoveEnd), "Where the vehicle drives to, lat,lng")
	flags.StringVar(&optPublishRouteEnd, "route-end", "", "Where the displayed route points, lat,lng (default --move-end)")
	flags.Float64Var(&optPublishSpeedKMH, "speed", common.DecimalToFixed(publishConfig.Speed*3.6, 1), "Speed, km/h")
	flags.DurationVar(&publishConfig.MinTick, "min-tick", publishConfig.MinTick, "Shortest wait between samples")
	flags.Float64Var(&publishConfig.Accuracy, "accuracy", publishConfig.Accuracy, "Accuracy attached to every sample, meters")
	flags.BoolVar(&publishConfig.Loop, "loop", publishConfig.Loop, "Drive back and forth until interrupted")
	flags.StringVar(&publishRouting.BaseURL, "routing.url", publishRouting.BaseURL, `OSRM-compatible routing service
Empty uses straight lines.`)
	flags.StringVar(&publishRouting.Profile, "routing.profile", publishRouting.Profile, "OSRM routing profile")

	flags.StringVar(&optPublishStatus, "status", "", `Set the session status (online or paused) and exit`)
	flags.BoolVar(&optPublishEnd, "end", false, "End the session and exit")
}
