package backend

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/common"
)

var targetFormats = map[string]imaging.Format{
	"png":  imaging.PNG,
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"gif":  imaging.GIF,
	"bmp":  imaging.BMP,
	"tif":  imaging.TIFF,
	"tiff": imaging.TIFF,
}

// openImage decodes path, applying EXIF orientation.
func openImage(path string) (image.Image, error) {
	if err := requireExt(path, constants.ImageExtensions); err != nil {
		return nil, err
	}
	if err := requireInput(path); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, classifyDecode(err, "decode "+filepath.Base(path))
	}
	return img, nil
}

// formatFor picks the encoder for an output path from its extension.
func formatFor(path string) (imaging.Format, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	f, ok := targetFormats[ext]
	if !ok {
		return 0, common.Failuref(constants.FailureUnsupportedFormat, "cannot write %q images", ext)
	}
	return f, nil
}

// flatten composites img over white; used for targets without alpha.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// writeImage encodes img into path with format.
func writeImage(img image.Image, path string, format imaging.Format, jpegQuality int) error {
	if format == imaging.JPEG {
		img = flatten(img)
	}
	f, err := os.Create(path)
	if err != nil {
		return classifyIO(err, "create "+filepath.Base(path))
	}
	w := bufio.NewWriter(f)
	var opts []imaging.EncodeOption
	if jpegQuality > 0 {
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	}
	if err := imaging.Encode(w, img, format, opts...); err != nil {
		_ = f.Close()
		return common.NewFailure(constants.FailureIO, fmt.Sprintf("encode %s", strings.ToLower(format.String())), err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return classifyIO(err, "write "+filepath.Base(path))
	}
	if err := f.Close(); err != nil {
		return classifyIO(err, "close "+filepath.Base(path))
	}
	return nil
}

// imageTransform is the shared shape of the single-image backends:
// decode, transform, encode to the output's format, rename into place.
func imageTransform(in, out string, jpegQuality int, progress ProgressFunc, fn func(image.Image) (image.Image, error)) (Result, error) {
	format, err := formatFor(out)
	if err != nil {
		return Result{}, err
	}
	src, err := openImage(in)
	if err != nil {
		return Result{}, err
	}
	progress.report(0.3)

	dst, err := fn(src)
	if err != nil {
		return Result{}, err
	}
	progress.report(0.7)

	st, err := newStage(out)
	if err != nil {
		return Result{}, err
	}
	defer st.Cleanup()

	staged := st.Path(filepath.Base(out))
	if err := writeImage(dst, staged, format, jpegQuality); err != nil {
		return Result{}, err
	}
	if err := st.Commit(staged, out); err != nil {
		return Result{}, err
	}
	b := dst.Bounds()
	return Result{
		Artifact: out,
		Metadata: map[string]string{"width": fmt.Sprint(b.Dx()), "height": fmt.Sprint(b.Dy())},
	}, nil
}
