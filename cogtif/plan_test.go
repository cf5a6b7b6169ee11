package cogtif

import (
	"strings"
	"testing"

	"github.com/nci/eopackage/raster"
)

func TestPlanSmallImagery(t *testing.T) {
	p := PlanForShape([2]int{256, 256}, 0, 0, true)
	if p.BlockXSize != 0 || p.BlockYSize != 0 || p.Tiled {
		t.Errorf("small imagery should keep driver defaults: %+v", p)
	}
	if !p.CopySrcOverviews {
		t.Error("overviews requested but CopySrcOverviews unset")
	}
	if p.Compress != "deflate" || p.ZLevel != 4 {
		t.Errorf("compression %s/%d", p.Compress, p.ZLevel)
	}

	// Exactly 512 on both axes still counts as small.
	p = PlanForShape([2]int{512, 512}, 0, 0, true)
	if p.BlockXSize != 0 || p.Tiled {
		t.Errorf("512x512 should keep driver defaults: %+v", p)
	}
}

func TestPlanNarrowImagery(t *testing.T) {
	// Tall and narrow: rows > 512, cols <= 512.
	p := PlanForShape([2]int{10000, 400}, 0, 0, true)
	if p.BlockYSize != 512 {
		t.Errorf("block y %d, want 512", p.BlockYSize)
	}
	// 512 is a power of two and equals the requested size, so it is
	// halved.
	if p.BlockXSize != 256 {
		t.Errorf("block x %d, want 256", p.BlockXSize)
	}
	if p.Tiled {
		t.Error("narrow branch should not force tiling")
	}

	// A non-power-of-two request rounds down without halving.
	p = PlanForShape([2]int{10000, 400}, 300, 0, true)
	if p.BlockXSize != 256 {
		t.Errorf("block x %d, want 256", p.BlockXSize)
	}
}

func TestPlanLargeUntiled(t *testing.T) {
	// The native block width spans the whole raster: untiled source.
	p := PlanForShape([2]int{8000, 8000}, 8000, 1, true)
	if p.BlockXSize != 512 || p.BlockYSize != 512 {
		t.Errorf("untiled source should force 512 blocks: %+v", p)
	}
	if !p.Tiled {
		t.Error("large imagery must be tiled")
	}
	if p.OvrBlockSize != 512 {
		t.Errorf("overview block size %d, want 512", p.OvrBlockSize)
	}

	// Without overviews the overview blocksize tuning is skipped.
	p = PlanForShape([2]int{8000, 8000}, 8000, 1, false)
	if p.OvrBlockSize != 0 {
		t.Errorf("overview block size %d, want 0", p.OvrBlockSize)
	}
	if p.CopySrcOverviews {
		t.Error("CopySrcOverviews set without overviews")
	}
}

func TestPlanLargeTiled(t *testing.T) {
	// Already-tiled large source keeps its native block size.
	p := PlanForShape([2]int{8000, 8000}, 256, 256, true)
	if p.BlockXSize != 256 || p.BlockYSize != 256 {
		t.Errorf("tiled source should keep native blocks: %+v", p)
	}
	if !p.Tiled {
		t.Error("large imagery must be tiled")
	}
	if p.OvrBlockSize != 0 {
		t.Errorf("overview block size %d, want 0", p.OvrBlockSize)
	}
}

func TestPredictor(t *testing.T) {
	if got := Predictor(&raster.UInt16Raster{}); got != 2 {
		t.Errorf("uint16 predictor %d", got)
	}
	if got := Predictor(&raster.Float32Raster{}); got != 3 {
		t.Errorf("float32 predictor %d", got)
	}
	if got := Predictor(&raster.Float64Raster{}); got != 3 {
		t.Errorf("float64 predictor %d", got)
	}
	if got := Predictor(&raster.ByteRaster{}); got != 2 {
		t.Errorf("byte predictor %d", got)
	}
}

func TestCreationOptions(t *testing.T) {
	p := PlanForShape([2]int{8000, 8000}, 8000, 1, true)
	opts := strings.Join(p.CreationOptions(2), " ")
	for _, want := range []string{"COMPRESS=DEFLATE", "ZLEVEL=4", "PREDICTOR=2", "BLOCKXSIZE=512", "BLOCKYSIZE=512", "TILED=YES", "COPY_SRC_OVERVIEWS=YES"} {
		if !strings.Contains(opts, want) {
			t.Errorf("missing option %s in %q", want, opts)
		}
	}

	small := PlanForShape([2]int{100, 100}, 0, 0, false)
	opts = strings.Join(small.CreationOptions(3), " ")
	if strings.Contains(opts, "BLOCK") || strings.Contains(opts, "TILED") || strings.Contains(opts, "COPY_SRC") {
		t.Errorf("unexpected layout options for small raster: %q", opts)
	}
	if !strings.Contains(opts, "PREDICTOR=3") {
		t.Errorf("missing predictor: %q", opts)
	}
}
