// Package source reads the GeoJSON point collection a run clusters.
package source

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// maxLineSize bounds a single feature line in line mode.
const maxLineSize = 64 * 1024 * 1024

// LineStatus is the outcome of one input line in line mode.
type LineStatus int

const (
	// Ignored lines sit outside the "features" array.
	Ignored LineStatus = iota
	// Parsed lines produced a feature.
	Parsed
	// Skipped lines were inside the array but did not parse as a feature.
	Skipped
)

func (s LineStatus) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Skipped:
		return "skipped"
	default:
		return "ignored"
	}
}

// Result is what ingestion produced.
type Result struct {
	Features []*geojson.Feature
	Lines    int
	Skipped  int
}

// FeatureFilter decides whether an input feature takes part in clustering.
type FeatureFilter func(f *geojson.Feature) bool

// PointsOnly keeps features with a Point geometry.
func PointsOnly(f *geojson.Feature) bool {
	if f == nil {
		return false
	}
	_, ok := f.Geometry.(orb.Point)
	return ok
}

// Filter returns the features accepted by keep, all of them when keep is nil.
func Filter(features []*geojson.Feature, keep FeatureFilter) []*geojson.Feature {
	if keep == nil {
		return features
	}
	out := make([]*geojson.Feature, 0, len(features))
	for _, f := range features {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Load reads path whole or line by line.
func Load(path string, byLine bool) (*Result, error) {
	if !byLine {
		return ReadFile(path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	return ReadLines(file)
}

// ReadFile parses path as a single FeatureCollection.
func ReadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read file %s", path)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to unmarshal feature collection %s", path)
	}

	return &Result{Features: fc.Features}, nil
}

// ReadLines reads a FeatureCollection laid out one feature per line. Lines
// up to and including the one naming "features" are ignored, as is
// everything after the line closing the array. Lines in between that do not
// parse are skipped and counted rather than failing the read.
func ReadLines(r io.Reader) (*Result, error) {
	res := &Result{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lr lineReader
	for scanner.Scan() {
		res.Lines++
		f, status := lr.next(scanner.Text())
		switch status {
		case Parsed:
			res.Features = append(res.Features, f)
		case Skipped:
			res.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Wrap(err, "read lines")
	}
	return res, nil
}

type lineReader struct {
	inFeatures bool
	done       bool
}

func (lr *lineReader) next(line string) (*geojson.Feature, LineStatus) {
	if lr.done {
		return nil, Ignored
	}
	if !lr.inFeatures {
		if strings.Contains(line, "features") {
			lr.inFeatures = true
		}
		return nil, Ignored
	}
	if strings.TrimSpace(line) == "" {
		return nil, Ignored
	}

	f, status := ParseLine(line)
	if status == Ignored {
		lr.done = true
	}
	return f, status
}

// ParseLine parses one feature line from inside the "features" array.
// A line starting with "]" closes the array and is reported as Ignored.
func ParseLine(line string) (*geojson.Feature, LineStatus) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "]") {
		return nil, Ignored
	}
	line = strings.TrimSuffix(line, ",")

	f, err := geojson.UnmarshalFeature([]byte(line))
	if err != nil {
		return nil, Skipped
	}
	return f, Parsed
}
