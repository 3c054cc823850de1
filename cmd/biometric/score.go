package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-biometric/internal/capture"
	"github.com/nerrad567/gray-logic-biometric/internal/quality"
	"github.com/nerrad567/gray-logic-biometric/internal/snapshot"
)

// scoreResult is the --json output of the score command.
type scoreResult struct {
	File    string          `json:"file"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Verdict quality.Verdict `json:"verdict"`
	Band    string          `json:"band"`
	Label   string          `json:"label"`
}

func newScoreCmd() *cobra.Command {
	var (
		width, height int
		asJSON        bool
		pngPath       string
	)

	cmd := &cobra.Command{
		Use:   "score <raw-frame>",
		Short: "Score a raw 8-bit greyscale frame",
		Long: "Score reads a raw frame dump (one byte per pixel, row-major) and\n" +
			"prints the presence and quality verdict the station would give it.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pixels, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading frame: %w", err)
			}

			verdict, err := quality.NewScorer(quality.DefaultParams()).Evaluate(pixels, width, height)
			if err != nil {
				return err
			}

			if pngPath != "" {
				frame := capture.Frame{Width: width, Height: height, Pixels: pixels, CapturedAt: time.Now()}
				if err := writePNG(pngPath, frame); err != nil {
					return err
				}
			}

			res := scoreResult{
				File:    args[0],
				Width:   width,
				Height:  height,
				Verdict: verdict,
				Band:    verdict.Band().String(),
				Label:   verdict.Label(),
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return printScore(cmd, res)
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "frame width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "frame height in pixels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	cmd.Flags().StringVar(&pngPath, "png", "", "also write the frame as a PNG to this path")
	_ = cmd.MarkFlagRequired("width")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func printScore(cmd *cobra.Command, res scoreResult) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", res.File)
	fmt.Fprintf(tw, "size\t%dx%d\n", res.Width, res.Height)
	fmt.Fprintf(tw, "present\t%t\n", res.Verdict.Present)
	fmt.Fprintf(tw, "dark\t%d%% (%d px)\n", res.Verdict.DarkPct, res.Verdict.DarkPixels)
	fmt.Fprintf(tw, "contrast\t%d%%\n", res.Verdict.ContrastPct)
	fmt.Fprintf(tw, "score\t%d\n", res.Verdict.Score)
	fmt.Fprintf(tw, "status\t%s\n", res.Label)
	return tw.Flush()
}

func writePNG(path string, frame capture.Frame) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()
	if err := snapshot.Encode(f, frame); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}
