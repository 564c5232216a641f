package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the canonical release string. The default here is the fallback
// for `go run` and untagged builds. Production builds overwrite this via:
//
//	go build -ldflags "-X github.com/derickschaefer/dailywx/cmd.Version=v0.3.0"
var Version = "v0.2.0"

// BuildTime is optionally injected at build time alongside Version:
//
//	-ldflags "-X github.com/derickschaefer/dailywx/cmd.BuildTime=2026-02-16T12:00:00Z"
var BuildTime = ""

// versionInfo is the structured payload for --format json output.
type versionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	GOOS      string `json:"goos"`
	GOARCH    string `json:"goarch"`
	BuildTime string `json:"build_time,omitempty"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dailywx version and build information",
	Long: `Print the dailywx version string and build metadata.

Default output is plain text, suitable for shell scripts and pipelines.
Use --format json for structured output.

Examples:
  dailywx version
  dailywx version --format json | jq .version`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			BuildTime: BuildTime,
		}
		return writeVersion(cmd, info, globalFlags.Format)
	},
}

func writeVersion(cmd *cobra.Command, info versionInfo, format string) error {
	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)

	case "jsonl":
		b, err := json.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", b)
		return nil

	default:
		fmt.Fprintf(w, "dailywx %s\n", info.Version)
		fmt.Fprintf(w, "go      %s\n", info.GoVersion)
		fmt.Fprintf(w, "os      %s/%s\n", info.GOOS, info.GOARCH)
		if info.BuildTime != "" {
			fmt.Fprintf(w, "built   %s\n", info.BuildTime)
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
