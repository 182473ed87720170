// Package main provides tourcheck, a CLI that validates a tour upload
// file offline. It runs the same coercion the upload endpoint runs and
// reports which records would be accepted and which dropped, so tour
// authors can fix their files before uploading.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/geowander/citytour/internal/citytour"
	"github.com/geowander/citytour/internal/ingest"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type result struct {
	File      string              `json:"file"`
	Accepted  int                 `json:"accepted"`
	Dropped   int                 `json:"dropped"`
	Landmarks []citytour.Landmark `json:"landmarks,omitempty"`
	Problems  []ingest.Diagnostic `json:"problems,omitempty"`
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tourcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "print each accepted landmark")
	asJSON := fs.Bool("json", false, "print a machine-readable report")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: tourcheck [-v] [-json] <upload.json>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one file argument")
	}

	path := fs.Arg(0)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var records []any
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing %s: file must be a JSON array of landmark objects: %v", path, err)
	}

	rec := &ingest.Recorder{}
	landmarks, coerceErr := ingest.CoerceUpload(records, rec)

	res := result{
		File:     path,
		Accepted: len(landmarks),
		Dropped:  len(records) - len(landmarks),
		Problems: rec.Diagnostics(),
	}
	if *verbose {
		res.Landmarks = landmarks
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(stdout, "%s: %d accepted, %d dropped\n", path, res.Accepted, res.Dropped)
		for _, d := range res.Problems {
			fmt.Fprintf(stdout, "  record dropped: %s\n", d.Detail)
		}
		if *verbose {
			for _, lm := range landmarks {
				quiz := ""
				if lm.HasQuiz() {
					quiz = fmt.Sprintf(", %d quiz questions", len(lm.Quiz))
				}
				fmt.Fprintf(stdout, "  #%d %s (%.4f, %.4f)%s\n",
					lm.ID, lm.Name, lm.Coords.Lat, lm.Coords.Lng, quiz)
			}
		}
	}

	if errors.Is(coerceErr, ingest.ErrEmptyBatch) {
		return fmt.Errorf("%s would be rejected: %w", path, coerceErr)
	}
	return coerceErr
}
