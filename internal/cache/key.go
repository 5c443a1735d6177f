package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dpup/mvalues/server/internal/lib/geo"
	"github.com/dpup/mvalues/server/internal/lib/mvalues"
)

// ResultKey creates a content hash for a line and the options it is
// interpolated with. Identical vertices and options always give the same key.
func ResultKey(line geo.Line, opts mvalues.Options) string {
	h := sha256.New()

	// Options first so the same line under different modes never collides
	fmt.Fprintf(h, "%s|%s|%d|", opts.Rounding, opts.Unknown, len(line))

	var buf [24]byte
	for _, v := range line {
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(v.X))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(v.Y))
		binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(v.M))
		h.Write(buf[:])
	}

	return fmt.Sprintf("mvalues:%x", h.Sum(nil))
}
