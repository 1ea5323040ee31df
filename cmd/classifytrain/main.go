// Command classifytrain builds a type-classifier model from labeled
// screenshots. The label file is JSON: a list of screenshots, each with
// its labeled element boxes in unit-relative coordinates.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"screendiff/internal/classify"
	"screendiff/internal/element"
	"screendiff/internal/imageio"
	"screendiff/pkg/geometry"
)

// labeledScreenshot is one entry in the label file.
type labeledScreenshot struct {
	Image    string           `json:"image"`
	Elements []labeledElement `json:"elements"`
}

type labeledElement struct {
	Box  geometry.Box `json:"bbox"`
	Type element.Type `json:"type"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	labels := flag.String("labels", "", "Path to label file (JSON)")
	output := flag.String("o", "classifier.json", "Output model path")
	neighbors := flag.Int("k", 5, "Number of neighbours used at prediction time")
	flag.Parse()

	if *labels == "" {
		fmt.Println("Usage: classifytrain -labels <labels.json> [-o classifier.json] [-k 5]")
		os.Exit(1)
	}

	data, err := os.ReadFile(*labels)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read labels: %v\n", err)
		os.Exit(1)
	}
	var screenshots []labeledScreenshot
	if err := json.Unmarshal(data, &screenshots); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse labels: %v\n", err)
		os.Exit(1)
	}

	model := classify.NewModel()
	model.Neighbors = *neighbors

	total := 0
	skipped := 0
	for _, shot := range screenshots {
		img, err := imageio.Load(shot.Image)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", shot.Image, err)
			skipped += len(shot.Elements)
			continue
		}

		w := img.Cols()
		h := img.Rows()
		for _, el := range shot.Elements {
			if !el.Box.Valid() || el.Type == element.TypeUnknown || el.Type == "" {
				skipped++
				continue
			}
			features := classify.ExtractFeatures(img, el.Box, w, h)
			if err := model.Add(features, el.Type); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping sample in %s: %v\n", shot.Image, err)
				skipped++
				continue
			}
			total++
		}
		img.Close()
	}

	if total == 0 {
		fmt.Fprintln(os.Stderr, "No usable samples in label file")
		os.Exit(1)
	}

	if err := model.Save(*output); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save model: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Trained on %d samples (%d skipped) from %d screenshots\n", total, skipped, len(screenshots))
	fmt.Printf("Wrote model: %s\n", *output)
	if !model.Trained() {
		fmt.Printf("Warning: fewer samples than k=%d, model will not be used until retrained\n", *neighbors)
	}
}
