package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/dpup/prefab/logging"
	flag "github.com/spf13/pflag"

	"github.com/dpup/mvalues/server/internal/lib/feature"
	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "interpolate":
		handleInterpolate(os.Args[2:])
	case "batch":
		handleBatch(os.Args[2:])
	case "segments":
		handleSegments(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// geometryFlags holds the mutually exclusive input geometry flags
type geometryFlags struct {
	wkt      *string
	wkb      *string
	polyline *string
	geojson  *string
}

func addGeometryFlags(fs *flag.FlagSet) geometryFlags {
	return geometryFlags{
		wkt:      fs.String("wkt", "", "Line as WKT, e.g. \"LINESTRING M (0 0 10, 1 0 0, 2 0 20)\""),
		wkb:      fs.String("wkb", "", "Line as hex encoded WKB"),
		polyline: fs.String("polyline", "", "Line as an encoded polyline with lat,lng,m triples"),
		geojson:  fs.String("geojson", "", "Line as a GeoJSON LineString, third ordinate is M"),
	}
}

func (g geometryFlags) line() (geo.Line, error) {
	var set []geo.Format
	var data string
	for format, value := range map[geo.Format]string{
		geo.FormatWKT:      *g.wkt,
		geo.FormatWKB:      *g.wkb,
		geo.FormatPolyline: *g.polyline,
		geo.FormatGeoJSON:  *g.geojson,
	} {
		if value != "" {
			set = append(set, format)
			data = value
		}
	}
	if len(set) != 1 {
		return nil, fmt.Errorf("exactly one of --wkt, --wkb, --polyline or --geojson is required")
	}
	return geo.ParseFormat(set[0], data)
}

func handleInterpolate(args []string) {
	fs := flag.NewFlagSet("interpolate", flag.ExitOnError)
	input := addGeometryFlags(fs)
	format := fs.String("format", string(geo.FormatWKT), "Output format: wkt, wkb, geojson, polyline or kml")
	rounding := fs.String("rounding", string(mvalues.RoundHalfAwayFromZero), "Rounding: half_away_from_zero, half_even or none")
	unknown := fs.String("unknown", string(mvalues.UnknownZero), "Missing M marker: zero or nan")

	_ = fs.Parse(args)

	line, err := input.line()
	if err != nil {
		fmt.Println("Example usage:")
		fmt.Println("  minterp interpolate --wkt \"LINESTRING M (0 0 10, 1 0 0, 2 0 0, 3 0 0, 4 0 20)\"")
		log.Fatalf("Error reading line: %v", err)
	}

	opts, err := parseOptions(*rounding, *unknown)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	result, err := mvalues.Interpolate(line, opts...)
	if err != nil {
		log.Fatalf("Error interpolating: %v", err)
	}

	out, err := result.Apply(line)
	if err != nil {
		log.Fatalf("Error applying M-values: %v", err)
	}
	encoded, err := out.Encode(geo.Format(*format))
	if err != nil {
		log.Fatalf("Error encoding output: %v", err)
	}

	fmt.Println(encoded)
	fmt.Fprintf(os.Stderr, "Anchors: %v, interpolated: %d vertices\n", result.Anchors, result.Interpolated)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
}

func handleBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fs.String("in", "-", "GeoJSON FeatureCollection to read, - for stdin")
	out := fs.String("out", "-", "File to write the interpolated FeatureCollection to, - for stdout")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeout := fs.Duration("timeout", 10*time.Second, "Per-feature timeout")
	rounding := fs.String("rounding", string(mvalues.RoundHalfAwayFromZero), "Rounding: half_away_from_zero, half_even or none")
	unknown := fs.String("unknown", string(mvalues.UnknownZero), "Missing M marker: zero or nan")

	_ = fs.Parse(args)

	opts, err := parseOptions(*rounding, *unknown)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	reader, closeIn, err := openInput(*in)
	if err != nil {
		log.Fatalf("Error opening input: %v", err)
	}
	defer closeIn()

	features, unreadable, err := feature.ReadFeatureCollection(reader)
	if err != nil {
		log.Fatalf("Error reading features: %v", err)
	}

	ctx := logging.With(context.Background(), logging.NewDevLogger())
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	processor := feature.NewBatchProcessor(
		mvalues.NewInterpolator(opts...),
		feature.WithWorkers(*workers),
		feature.WithFeatureTimeout(*timeout),
	)
	sink := feature.NewCollectSink()

	report, err := processor.ProcessBatch(ctx, features, sink)
	if err != nil {
		log.Fatalf("Batch failed: %v", err)
	}

	writer, closeOut, err := openOutput(*out)
	if err != nil {
		log.Fatalf("Error opening output: %v", err)
	}
	defer closeOut()

	if err := feature.WriteFeatureCollection(writer, sink.Features()); err != nil {
		log.Fatalf("Error writing features: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Features: %d read, %d written, %d vertices interpolated\n",
		len(features)+len(unreadable), report.Written, report.Interpolated)
	for _, s := range unreadable {
		fmt.Fprintf(os.Stderr, "  skipped feature %d (%s): %s\n", s.Index, s.ID, s.Reason)
	}
	for _, s := range report.Skipped {
		fmt.Fprintf(os.Stderr, "  skipped feature %d (%s): %s\n", s.Index, s.ID, s.Reason)
	}
	for _, p := range report.Partial {
		fmt.Fprintf(os.Stderr, "  partial feature %d (%s): %d zero distance gaps\n", p.Index, p.ID, len(p.Warnings))
	}
}

func handleSegments(args []string) {
	fs := flag.NewFlagSet("segments", flag.ExitOnError)
	input := addGeometryFlags(fs)

	_ = fs.Parse(args)

	line, err := input.line()
	if err != nil {
		fmt.Println("Example usage:")
		fmt.Println("  minterp segments --wkt \"LINESTRING M (0 0 10, 3 4 0, 6 8 20)\"")
		log.Fatalf("Error reading line: %v", err)
	}

	fmt.Printf("Line: %d vertices, length %.4f, closed: %t\n", len(line), line.Length(), line.IsClosed())
	for _, s := range line.Segments() {
		fmt.Printf("  %d -> %d  length %.4f  cumulative %.4f  m %g -> %g\n",
			s.From, s.To, s.Length, s.Cumulative, line[s.From].M, line[s.To].M)
	}
}

func parseOptions(rounding, unknown string) ([]mvalues.Option, error) {
	r, err := mvalues.ParseRoundingMode(rounding)
	if err != nil {
		return nil, err
	}
	u, err := mvalues.ParseUnknownMode(unknown)
	if err != nil {
		return nil, err
	}
	return []mvalues.Option{mvalues.WithRounding(r), mvalues.WithUnknown(u)}, nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing %s: %v", path, err)
		}
	}, nil
}

func printUsage() {
	fmt.Println("minterp - fill missing M-values along polylines")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  minterp <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  interpolate   Interpolate the M-values of a single line")
	fmt.Println("  batch         Interpolate every line in a GeoJSON FeatureCollection")
	fmt.Println("  segments      Print segment lengths and cumulative distances of a line")
	fmt.Println("  help          Show this message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  minterp interpolate --wkt \"LINESTRING M (0 0 10, 1 0 0, 2 0 0, 3 0 0, 4 0 20)\"")
	fmt.Println("  minterp interpolate --wkt \"LINESTRING M (0 0 10, 1 0 0, 2 0 20)\" --format kml")
	fmt.Println("  minterp batch --in roads.geojson --out roads-m.geojson --workers 8")
	fmt.Println("  minterp segments --wkt \"LINESTRING M (0 0 10, 3 4 0, 6 8 20)\"")
	fmt.Println()
	fmt.Println("Input flags (interpolate, segments): --wkt, --wkb, --polyline, --geojson")
}
