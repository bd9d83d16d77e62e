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
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"io"
	"strconv"
	"strings"
)

// configCmd prints a command's flags as a config file.
var configCmd = &cobra.Command{
	Use:   "config [command]",
	Short: "Print flags and their values as YAML",
	Long: `Print a command's flags, with values from the command line, config file
and environment, as YAML suitable for $HOME/.livetrack.yaml.
Dotted flag names nest.

  livetrack config follow > ~/.livetrack.yaml
`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := rootCmd
		if len(args) > 0 {
			c, _, err := rootCmd.Find(args)
			if err != nil || c == rootCmd {
				cobra.CheckErr(fmt.Errorf("unknown command %q", args[0]))
			}
			target = c
		}
		bindFlags(target)
		cobra.CheckErr(writeFlagsYAML(cmd.OutOrStdout(), target))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// writeFlagsYAML writes every flag of cmd, inherited ones included,
// except config and help.
func writeFlagsYAML(w io.Writer, cmd *cobra.Command) error {
	tree := map[string]any{}
	add := func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" {
			return
		}
		setFlagValue(tree, strings.Split(f.Name, "."), flagValue(f))
	}
	cmd.InheritedFlags().VisitAll(add)
	cmd.LocalFlags().VisitAll(add)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return err
	}
	return enc.Close()
}

func setFlagValue(tree map[string]any, path []string, v any) {
	if len(path) == 1 {
		tree[path[0]] = v
		return
	}
	sub, ok := tree[path[0]].(map[string]any)
	if !ok {
		if _, taken := tree[path[0]]; taken {
			tree[strings.Join(path, ".")] = v
			return
		}
		sub = map[string]any{}
		tree[path[0]] = sub
	}
	setFlagValue(sub, path[1:], v)
}

// flagValue types a flag's value so YAML keeps numbers and booleans unquoted.
func flagValue(f *pflag.Flag) any {
	s := f.Value.String()
	switch f.Value.Type() {
	case "bool":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case "int", "int32", "int64":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case "float32", "float64":
		if x, err := strconv.ParseFloat(s, 64); err == nil {
			return x
		}
	}
	return s
}
