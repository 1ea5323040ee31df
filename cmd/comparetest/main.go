// Command comparetest compares a candidate screenshot against a
// reference and prints per-element verdicts, optionally writing the
// difference mask and an annotated overlay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gocv.io/x/gocv"

	"screendiff/internal/overlay"
	"screendiff/internal/pipeline"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	reference := flag.String("ref", "", "Path to reference screenshot")
	candidate := flag.String("cand", "", "Path to candidate screenshot")
	tolerance := flag.Float64("tolerance", pipeline.DefaultConfig().Tolerance, "Pixel difference tolerance (0-1)")
	shiftPx := flag.Int("shift", pipeline.DefaultConfig().ShiftPx, "Allowed element shift in pixels")
	detectorModel := flag.String("detector", "", "Path to detector model (ONNX)")
	detectorClasses := flag.String("classes", "", "Comma-separated detector class names")
	classifierModel := flag.String("classifier", "", "Path to trained type classifier (JSON)")
	withOCR := flag.Bool("ocr", false, "Extract element text with OCR")
	maskOut := flag.String("mask", "", "Write difference mask to this path")
	overlayOut := flag.String("overlay", "", "Write annotated overlay to this path")
	jsonOut := flag.Bool("json", false, "Print the full result as JSON")
	flag.Parse()

	if *reference == "" || *candidate == "" {
		fmt.Println("Usage: comparetest -ref <reference> -cand <candidate> [-tolerance 0.12] [-shift 18]")
		os.Exit(1)
	}

	cfg := pipeline.DefaultConfig().
		WithTolerance(*tolerance).
		WithShiftPx(*shiftPx).
		WithDetectorModel(*detectorModel, splitClasses(*detectorClasses)).
		WithClassifierModel(*classifierModel).
		WithOCR(*withOCR)

	ctx, err := pipeline.NewContext(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize pipeline: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	ref, err := ctx.LoadImage(*reference)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference: %v\n", err)
		os.Exit(1)
	}
	defer ref.Close()

	cand, err := ctx.LoadImage(*candidate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load candidate: %v\n", err)
		os.Exit(1)
	}
	defer cand.Close()

	result, err := ctx.Compare(ref, cand)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Comparison failed: %v\n", err)
		os.Exit(1)
	}

	if *maskOut != "" || *overlayOut != "" {
		writeArtifacts(ctx, ref, cand, result, *maskOut, *overlayOut)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		printSummary(result)
	}

	if !result.Passed() {
		os.Exit(2)
	}
}

func splitClasses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func printSummary(result *pipeline.ComparisonResult) {
	fmt.Printf("=== Comparison result ===\n")
	fmt.Printf("Similarity:      %.4f\n", result.Similarity)
	fmt.Printf("Mismatch ratio:  %.4f\n", result.MismatchRatio)
	fmt.Printf("Feature aligned: %v\n", result.FeatureAligned)
	fmt.Printf("Elements:        %d (%.1f%% ok)\n", len(result.Elements), result.Coverage*100)
	fmt.Printf("Verdicts:        %d ok, %d shifted, %d missing\n",
		result.OKCount, result.ShiftedCount, result.MissingCount)

	for i, d := range result.Diagnostics {
		el := result.Elements[i]
		line := fmt.Sprintf("  #%-3d %-8s %-8s mismatch %.3f", el.ID, el.Type, d.Status, d.MismatchRatio)
		if el.Text != "" {
			line += fmt.Sprintf("  %q", el.Text)
		}
		fmt.Println(line)
	}

	if result.Passed() {
		fmt.Println("PASS")
	} else {
		fmt.Println("FAIL")
	}
}

func writeArtifacts(ctx *pipeline.Context, ref, cand gocv.Mat, result *pipeline.ComparisonResult, maskPath, overlayPath string) {
	aligned, mask, _, _ := ctx.AlignAndDiff(ref, cand)
	defer aligned.Close()
	defer mask.Close()

	if maskPath != "" {
		if ok := gocv.IMWrite(maskPath, mask); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write mask to %s\n", maskPath)
		} else {
			fmt.Printf("Wrote difference mask: %s\n", maskPath)
		}
	}

	if overlayPath != "" {
		annotated := overlay.DrawDiagnostics(ref, result.Elements, result.Diagnostics)
		defer annotated.Close()
		if ok := gocv.IMWrite(overlayPath, annotated); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write overlay to %s\n", overlayPath)
		} else {
			fmt.Printf("Wrote overlay: %s\n", overlayPath)
		}
	}
}
