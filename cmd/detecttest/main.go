// Command detecttest runs element detection and classification on one
// screenshot and writes an annotated overlay.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"screendiff/internal/overlay"
	"screendiff/internal/pipeline"

	"gocv.io/x/gocv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	input := flag.String("i", "", "Path to screenshot")
	output := flag.String("o", "", "Write annotated overlay to this path")
	detectorModel := flag.String("detector", "", "Path to detector model (ONNX)")
	detectorClasses := flag.String("classes", "", "Comma-separated detector class names")
	classifierModel := flag.String("classifier", "", "Path to trained type classifier (JSON)")
	withOCR := flag.Bool("ocr", false, "Extract element text with OCR")
	jsonOut := flag.Bool("json", false, "Print elements as JSON")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: detecttest -i <screenshot> [-o <overlay.png>] [-detector model.onnx]")
		os.Exit(1)
	}

	cfg := pipeline.DefaultConfig().
		WithDetectorModel(*detectorModel, splitClasses(*detectorClasses)).
		WithClassifierModel(*classifierModel).
		WithOCR(*withOCR)

	ctx, err := pipeline.NewContext(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize pipeline: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	img, err := ctx.LoadImage(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	elements := ctx.DetectAndClassify(img)

	if *jsonOut {
		data, err := json.MarshalIndent(elements, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode elements: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("=== Detected %d elements in %s ===\n", len(elements), *input)
		for _, el := range elements {
			line := fmt.Sprintf("  #%-3d %-8s conf %.2f  box x=%.3f y=%.3f w=%.3f h=%.3f",
				el.ID, el.Type, el.Confidence, el.Box.X, el.Box.Y, el.Box.W, el.Box.H)
			if el.Text != "" {
				line += fmt.Sprintf("  %q", el.Text)
			}
			fmt.Println(line)
		}
	}

	if *output != "" {
		annotated := overlay.DrawElements(img, elements)
		defer annotated.Close()
		if ok := gocv.IMWrite(*output, annotated); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write overlay to %s\n", *output)
			os.Exit(1)
		}
		fmt.Printf("Wrote overlay: %s\n", *output)
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
