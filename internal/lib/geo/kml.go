package geo

import (
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"
)

// KML has no measure ordinate; M-values travel in ExtendedData as a SimpleData
// field of this schema
const (
	kmlSchemaURL    = "#mvalues"
	kmlMValuesField = "m_values"
)

// KMLPlacemark builds a Placemark holding the line geometry and its M-values
func KMLPlacemark(name string, line Line) kml.Element {
	coordinates := make([]kml.Coordinate, len(line))
	mValues := make([]string, len(line))
	for i, v := range line {
		// KML coordinates are longitude, latitude
		coordinates[i] = kml.Coordinate{Lon: v.X, Lat: v.Y}
		mValues[i] = strconv.FormatFloat(v.M, 'f', -1, 64)
	}

	return kml.Placemark(
		kml.Name(name),
		kml.LineString(
			kml.Coordinates(coordinates...),
		),
		kml.ExtendedData(
			kml.SchemaData(kmlSchemaURL,
				kml.SimpleData(kmlMValuesField, strings.Join(mValues, ",")),
			),
		),
	)
}

// WriteKML writes a KML document containing a single line placemark
func WriteKML(w io.Writer, name string, line Line) error {
	k := kml.KML(
		kml.Document(
			KMLPlacemark(name, line),
		),
	)
	return k.WriteIndent(w, "", "  ")
}
