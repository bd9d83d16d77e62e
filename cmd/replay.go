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
	"bufio"
	"context"
	"encoding/json"
	"github.com/rotblauer/livetrack/animate"
	"github.com/rotblauer/livetrack/common"
	"github.com/rotblauer/livetrack/conceptual"
	"github.com/rotblauer/livetrack/follow"
	"github.com/rotblauer/livetrack/params"
	"github.com/rotblauer/livetrack/stream"
	"github.com/rotblauer/livetrack/tracklog"
	"github.com/rotblauer/livetrack/types/sample"
	"github.com/spf13/cobra"
	"log"
	"log/slog"
	"time"
)

var replayConfig = params.DefaultFollowConfig()
var replayAnimator = params.DefaultAnimatorConfig()

var optReplayOut string
var optReplayTail time.Duration
var optReplayLogInterval time.Duration

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay [track.ndjson[.gz]|-]",
	Short: "Animate a recorded track, writing frames as NDJSON",
	Long: `Replay reads recorded samples, eg. a web daemon track log, and animates them
as a follower would have seen them live, on a clock taken from the sample times.
It runs as fast as it can.

Samples are NDJSON or a JSON array, from a file or stdin. Malformed samples and
samples without a time are skipped.

  livetrack replay ~/.livetrack/webd/tracks/YUG-199.ndjson.gz --output-interval 1s --geojson
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		mustValidate(replayAnimator)

		ctx, stop := common.InterruptedContext(context.Background())
		defer stop()

		in := "-"
		if len(args) > 0 {
			in = args[0]
		}
		r, err := tracklog.Open(in)
		if err != nil {
			log.Fatalln(err)
		}
		defer r.Close()

		out, closeOut, err := openFrameOutput(optReplayOut)
		if err != nil {
			log.Fatalln(err)
		}
		defer closeOut()
		buf := bufio.NewWriter(out)
		defer buf.Flush()

		vehicle := conceptual.VehicleID(replayConfig.Vehicle)
		samples, errs := stream.Samples(ctx, r, func(raw json.RawMessage, err error) {
			slog.Warn("Skipping malformed sample", "error", err)
		})
		envs := stream.Transform(ctx, func(s sample.Sample) sample.Envelope {
			return sample.NewLive(vehicle, s)
		}, samples)

		meter := stream.NewTickMeter("Replayed samples", optReplayLogInterval)
		defer meter.Stop()

		loop := animate.NewLoop(vehicle, animate.LoopConfig{Animator: replayAnimator}, nil, nil)
		sink := follow.NewNDJSONSink(buf, replayConfig.OutputInterval, replayConfig.GeoJSON)
		frames, err := follow.Replay(ctx, loop, envs, sink, optReplayTail, meter)
		if err != nil && ctx.Err() == nil {
			log.Fatalln(err)
		}
		if err := <-errs; err != nil {
			log.Fatalln(err)
		}
		meter.Log()
		slog.Info("Replay done", "samples", meter.Count(), "frames", frames)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	flags := replayCmd.Flags()
	flags.StringVar(&replayConfig.Vehicle, "vehicle", replayConfig.Vehicle, "Vehicle ID to label frames with")
	flags.DurationVar(&replayConfig.OutputInterval, "output-interval", replayConfig.OutputInterval, `Shortest time between written frames, on the sample clock
Zero writes every frame.`)
	flags.BoolVar(&replayConfig.GeoJSON, "geojson", replayConfig.GeoJSON, "Write frames as GeoJSON features")
	flags.StringVarP(&optReplayOut, "out", "o", "-", "Frame output file")
	flags.DurationVar(&optReplayTail, "tail", 3*time.Second, "Keep animating this long after the last sample")
	flags.DurationVar(&optReplayLogInterval, "log-interval", 5*time.Second, "Log progress this often")
	flags.DurationVar(&replayAnimator.Lead, "lead", replayAnimator.Lead, "Extrapolate the target this far ahead of the latest sample")
}
