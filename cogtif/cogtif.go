package cogtif

// #include <stdio.h>
// #include <stdlib.h>
// #include "gdal.h"
// #include "ogr_srs_api.h" /* for SRS calls */
// #include "cpl_string.h"
// #include "cpl_conv.h"
// #cgo pkg-config: gdal
//char *toWktText(char *userInput)
//{
//	char *pszProjWkt;
//	char *result;
//	OGRSpatialReferenceH hSRS;
//
//	hSRS = OSRNewSpatialReference(NULL);
//	OGRErr err = OSRSetFromUserInput(hSRS, userInput);
//	if(err != OGRERR_NONE) {
//		OSRDestroySpatialReference(hSRS);
//		return NULL;
//	}
//
//	err = OSRExportToWkt(hSRS, &pszProjWkt);
//	if(err != OGRERR_NONE) {
//		OSRDestroySpatialReference(hSRS);
//		return NULL;
//	}
//
//	result = strdup(pszProjWkt);
//
//	OSRDestroySpatialReference(hSRS);
//	CPLFree(pszProjWkt);
//
//	return result;
//}
import "C"

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/nci/eopackage/geobox"
	"github.com/nci/eopackage/raster"
)

func InitGdal() {
	setDefaultEnv("GDAL_PAM_ENABLED", "NO")
	setDefaultEnv("GDAL_DISABLE_READDIR_ON_OPEN", "EMPTY_DIR")
	C.GDALAllRegister()
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}

// crsToWkt resolves a CRS (epsg code or WKT) to WKT via OSR.
func crsToWkt(crs geobox.CRS) (string, error) {
	crsC := C.CString(string(crs))
	defer C.free(unsafe.Pointer(crsC))

	wktC := C.toWktText(crsC)
	if wktC == nil {
		return "", fmt.Errorf("unresolvable crs: %s", crs)
	}
	defer C.free(unsafe.Pointer(wktC))
	return C.GoString(wktC), nil
}

// ReadBand loads band 1 of a raster file into memory along with its
// grid. Multi-band measurement files aren't supported.
func ReadBand(path string) (raster.Raster, geobox.GridSpec, *float64, error) {
	var grid geobox.GridSpec

	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))

	ds := C.GDALOpen(pathC, C.GA_ReadOnly)
	if ds == nil {
		return nil, grid, nil, fmt.Errorf("failed to open %s", path)
	}
	defer C.GDALClose(ds)

	if count := int(C.GDALGetRasterCount(ds)); count != 1 {
		return nil, grid, nil, fmt.Errorf("%s has %d bands, multi-band measurement files aren't yet supported", path, count)
	}

	width := int(C.GDALGetRasterXSize(ds))
	height := int(C.GDALGetRasterYSize(ds))

	var geotC [6]C.double
	if C.GDALGetGeoTransform(ds, &geotC[0]) != C.CE_None {
		return nil, grid, nil, fmt.Errorf("%s has no geotransform", path)
	}
	var geot [6]float64
	for i, v := range geotC {
		geot[i] = float64(v)
	}
	grid = geobox.GridSpec{
		Shape:     [2]int{height, width},
		Transform: geobox.FromGDAL(geot),
		CRS:       geobox.CRS(C.GoString(C.GDALGetProjectionRef(ds))),
	}

	band := C.GDALGetRasterBand(ds, C.int(1))
	if band == nil {
		return nil, grid, nil, fmt.Errorf("failed to get band 1 of %s", path)
	}

	var nodata *float64
	var hasNodata C.int
	nd := float64(C.GDALGetRasterNoDataValue(band, &hasNodata))
	if hasNodata != 0 {
		nodata = &nd
	}

	var img raster.Raster
	var buf unsafe.Pointer
	dtype := C.GDALGetRasterDataType(band)
	switch dtype {
	case C.GDT_Byte:
		r := &raster.ByteRaster{Data: make([]uint8, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_UInt16:
		r := &raster.UInt16Raster{Data: make([]uint16, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_Int16:
		r := &raster.Int16Raster{Data: make([]int16, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_UInt32:
		r := &raster.UInt32Raster{Data: make([]uint32, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_Int32:
		r := &raster.Int32Raster{Data: make([]int32, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_Float32:
		r := &raster.Float32Raster{Data: make([]float32, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	case C.GDT_Float64:
		r := &raster.Float64Raster{Data: make([]float64, width*height), Height: height, Width: width}
		img, buf = r, unsafe.Pointer(&r.Data[0])
	default:
		return nil, grid, nil, fmt.Errorf("unsupported GDAL data type %d in %s", int(dtype), path)
	}

	gerr := C.GDALRasterIO(band, C.GF_Read, 0, 0, C.int(width), C.int(height), buf, C.int(width), C.int(height), dtype, 0, 0)
	if gerr != C.CE_None {
		return nil, grid, nil, fmt.Errorf("error reading %s", path)
	}
	return img, grid, nodata, nil
}

func gdalType(r raster.Raster) (C.GDALDataType, unsafe.Pointer, error) {
	switch t := r.(type) {
	case *raster.ByteRaster:
		return C.GDT_Byte, unsafe.Pointer(&t.Data[0]), nil
	case *raster.UInt16Raster:
		return C.GDT_UInt16, unsafe.Pointer(&t.Data[0]), nil
	case *raster.Int16Raster:
		return C.GDT_Int16, unsafe.Pointer(&t.Data[0]), nil
	case *raster.UInt32Raster:
		return C.GDT_UInt32, unsafe.Pointer(&t.Data[0]), nil
	case *raster.Int32Raster:
		return C.GDT_Int32, unsafe.Pointer(&t.Data[0]), nil
	case *raster.Float32Raster:
		return C.GDT_Float32, unsafe.Pointer(&t.Data[0]), nil
	case *raster.Float64Raster:
		return C.GDT_Float64, unsafe.Pointer(&t.Data[0]), nil
	default:
		return C.GDT_Unknown, nil, fmt.Errorf("datatype not supported: %s", r.DType())
	}
}

// WriteArray writes an in-memory raster to outPath as a COG with the
// given overview levels (none builds no pyramid). The raster goes to a
// scratch file first and is then re-encoded, with COPY_SRC_OVERVIEWS
// when a pyramid was built so it lands at the front of the file.
// Nothing is left at outPath on failure.
func WriteArray(img raster.Raster, outPath string, grid geobox.GridSpec, nodata *float64, resampling string, overviews []int) error {
	switch img.(type) {
	case *raster.Int64Raster, *raster.UInt64Raster:
		return fmt.Errorf("datatype not supported: %s", img.DType())
	case *raster.BoolRaster:
		img = img.(*raster.BoolRaster).AsBytes()
	}

	if _, err := os.Stat(outPath); err == nil {
		// Our measurements should have different names.
		return fmt.Errorf("measurement output file already exists: %s", outPath)
	}

	h, w := img.Dims()
	if h != grid.Shape[0] || w != grid.Shape[1] {
		return fmt.Errorf("raster shape (%d, %d) does not match grid shape %v", h, w, grid.Shape)
	}

	if resampling == "" {
		resampling = "NEAREST"
	}
	plan := PlanForShape(grid.Shape, 0, 0, len(overviews) > 0)

	tmpDir, err := ioutil.TempDir(filepath.Dir(outPath), ".band_write-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	scratch := filepath.Join(tmpDir, filepath.Base(outPath))
	if err := writeScratch(img, scratch, grid, nodata, resampling, overviews); err != nil {
		return err
	}
	return translate(scratch, outPath, plan, Predictor(img))
}

// writeScratch creates a plain uncompressed GTiff and builds its
// overview pyramid in place.
func writeScratch(img raster.Raster, path string, grid geobox.GridSpec, nodata *float64, resampling string, overviews []int) error {
	drvName := C.CString("GTiff")
	defer C.free(unsafe.Pointer(drvName))
	driver := C.GDALGetDriverByName(drvName)
	if driver == nil {
		return fmt.Errorf("GTiff driver not available")
	}

	dtype, buf, err := gdalType(img)
	if err != nil {
		return err
	}

	h, w := img.Dims()
	pathC := C.CString(path)
	defer C.free(unsafe.Pointer(pathC))

	ds := C.GDALCreate(driver, pathC, C.int(w), C.int(h), 1, dtype, nil)
	if ds == nil {
		return fmt.Errorf("failed to create %s", path)
	}

	geot := grid.Transform.GDAL()
	var geotC [6]C.double
	for i, v := range geot {
		geotC[i] = C.double(v)
	}
	C.GDALSetGeoTransform(ds, &geotC[0])

	if grid.CRS != "" {
		wkt, err := crsToWkt(grid.CRS)
		if err != nil {
			C.GDALClose(ds)
			return err
		}
		wktC := C.CString(wkt)
		C.GDALSetProjection(ds, wktC)
		C.free(unsafe.Pointer(wktC))
	}

	band := C.GDALGetRasterBand(ds, C.int(1))
	if nodata != nil {
		C.GDALSetRasterNoDataValue(band, C.double(*nodata))
	}

	gerr := C.GDALRasterIO(band, C.GF_Write, 0, 0, C.int(w), C.int(h), buf, C.int(w), C.int(h), dtype, 0, 0)
	if gerr != C.CE_None {
		C.GDALClose(ds)
		return fmt.Errorf("error writing %s", path)
	}

	if len(overviews) > 0 {
		if err := buildOverviews(ds, resampling, overviews); err != nil {
			C.GDALClose(ds)
			return err
		}
	}
	C.GDALClose(ds)
	return nil
}

func buildOverviews(ds C.GDALDatasetH, resampling string, levels []int) error {
	resamplingC := C.CString(resampling)
	defer C.free(unsafe.Pointer(resamplingC))

	if len(levels) == 0 {
		// Zero levels clears any existing overviews.
		if C.GDALBuildOverviews(ds, resamplingC, 0, nil, 0, nil, nil, nil) != C.CE_None {
			return fmt.Errorf("failed to clear overviews")
		}
		return nil
	}

	levelsC := make([]C.int, len(levels))
	for i, l := range levels {
		levelsC[i] = C.int(l)
	}
	gerr := C.GDALBuildOverviews(ds, resamplingC, C.int(len(levels)), &levelsC[0], 0, nil, nil, nil)
	if gerr != C.CE_None {
		return fmt.Errorf("failed to build overviews (%s, %v)", resampling, levels)
	}
	return nil
}

// translate re-encodes src into dst with the planned creation options.
func translate(src, dst string, plan Plan, predictor int) error {
	srcC := C.CString(src)
	defer C.free(unsafe.Pointer(srcC))

	srcDS := C.GDALOpen(srcC, C.GA_ReadOnly)
	if srcDS == nil {
		return fmt.Errorf("failed to open %s", src)
	}
	defer C.GDALClose(srcDS)

	drvName := C.CString("GTiff")
	defer C.free(unsafe.Pointer(drvName))
	driver := C.GDALGetDriverByName(drvName)

	var papszOptions **C.char
	for _, opt := range plan.CreationOptions(predictor) {
		optC := C.CString(opt)
		papszOptions = C.CSLAddString(papszOptions, optC)
		C.free(unsafe.Pointer(optC))
	}
	defer C.CSLDestroy(papszOptions)

	ovrKey := C.CString("GDAL_TIFF_OVR_BLOCKSIZE")
	defer C.free(unsafe.Pointer(ovrKey))
	if plan.OvrBlockSize > 0 {
		ovrVal := C.CString(fmt.Sprintf("%d", plan.OvrBlockSize))
		C.CPLSetThreadLocalConfigOption(ovrKey, ovrVal)
		C.free(unsafe.Pointer(ovrVal))
		defer C.CPLSetThreadLocalConfigOption(ovrKey, nil)
	}

	dstC := C.CString(dst)
	defer C.free(unsafe.Pointer(dstC))

	dstDS := C.GDALCreateCopy(driver, dstC, srcDS, C.int(0), papszOptions, nil, nil)
	if dstDS == nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write %s", dst)
	}
	C.GDALClose(dstDS)
	return nil
}

// WriteFromFile re-encodes an existing raster file as a COG. Any
// pre-existing overviews are discarded and rebuilt with mode
// resampling, which suits categorical quality bands.
func WriteFromFile(inPath, outPath string, overviews bool) error {
	inC := C.CString(inPath)
	defer C.free(unsafe.Pointer(inC))

	ds := C.GDALOpen(inC, C.GA_Update)
	if ds == nil {
		return fmt.Errorf("failed to open %s", inPath)
	}

	if err := buildOverviews(ds, "NONE", nil); err != nil {
		C.GDALClose(ds)
		return err
	}
	if overviews {
		if err := buildOverviews(ds, "MODE", DefaultOverviews); err != nil {
			C.GDALClose(ds)
			return err
		}
	}

	height := int(C.GDALGetRasterYSize(ds))
	width := int(C.GDALGetRasterXSize(ds))
	band := C.GDALGetRasterBand(ds, C.int(1))
	var blockx, blocky C.int
	C.GDALGetBlockSize(band, &blockx, &blocky)

	predictor := 2
	switch C.GDALGetRasterDataType(band) {
	case C.GDT_Float32, C.GDT_Float64:
		predictor = 3
	}
	C.GDALClose(ds)

	plan := PlanForShape([2]int{height, width}, int(blockx), int(blocky), overviews)
	return translate(inPath, outPath, plan, predictor)
}
