// Package cogtif writes cloud optimised GeoTIFFs: tiled, deflate
// compressed, with overview pyramids placed at the front of the file.
package cogtif

import (
	"fmt"
	"strings"

	"github.com/nci/eopackage/raster"
)

// DefaultOverviews are the pyramid decimation levels built for every
// measurement.
var DefaultOverviews = []int{8, 16, 32}

// Plan holds the GTiff creation parameters derived from a raster's
// shape.
type Plan struct {
	BlockXSize       int
	BlockYSize       int
	Tiled            bool
	Compress         string
	ZLevel           int
	CopySrcOverviews bool

	// GDAL_TIFF_OVR_BLOCKSIZE config value, 0 when not needed.
	OvrBlockSize int
}

// PlanForShape derives write options from the raster shape (rows,
// cols) and the source's native block size. Zero block sizes fall back
// to 512. The thresholds are load-bearing: downstream readers depend
// on the exact tiling layout.
func PlanForShape(shape [2]int, blockx, blocky int, overviews bool) Plan {
	if blockx == 0 {
		blockx = 512
	}
	if blocky == 0 {
		blocky = 512
	}

	p := Plan{Compress: "deflate", ZLevel: 4, CopySrcOverviews: overviews}

	switch {
	case shape[0] <= 512 && shape[1] <= 512:
		// Small imagery keeps the driver's default layout.
	case shape[1] <= 512:
		p.BlockYSize = blocky
		if p.BlockYSize > 512 {
			p.BlockYSize = 512
		}
		// Block x size must be a power of two, rounded down. GDAL
		// rejects an x block size equal to the whole raster width.
		bx := powerOfTwoFloor(blockx)
		if bx == blockx {
			bx /= 2
		}
		p.BlockXSize = bx
	default:
		if shape[1] == blockx {
			// The source has no internal tiling. Force a 512 layout.
			blockx = 512
			blocky = 512
			if overviews {
				p.OvrBlockSize = blockx
			}
		}
		p.BlockXSize = blockx
		p.BlockYSize = blocky
		p.Tiled = true
	}
	return p
}

func powerOfTwoFloor(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Predictor returns the deflate predictor for a raster: horizontal
// differencing for integers, floating point for floats.
func Predictor(r raster.Raster) int {
	switch r.(type) {
	case *raster.Float32Raster, *raster.Float64Raster:
		return 3
	default:
		return 2
	}
}

// CreationOptions renders the plan as GTiff creation options for a
// given predictor.
func (p Plan) CreationOptions(predictor int) []string {
	opts := []string{
		fmt.Sprintf("COMPRESS=%s", strings.ToUpper(p.Compress)),
		fmt.Sprintf("ZLEVEL=%d", p.ZLevel),
		fmt.Sprintf("PREDICTOR=%d", predictor),
	}
	if p.BlockXSize > 0 {
		opts = append(opts, fmt.Sprintf("BLOCKXSIZE=%d", p.BlockXSize))
	}
	if p.BlockYSize > 0 {
		opts = append(opts, fmt.Sprintf("BLOCKYSIZE=%d", p.BlockYSize))
	}
	if p.Tiled {
		opts = append(opts, "TILED=YES")
	}
	if p.CopySrcOverviews {
		opts = append(opts, "COPY_SRC_OVERVIEWS=YES")
	}
	return opts
}
