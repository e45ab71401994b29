package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// OCR recognises text in an image file.
type OCR interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// TesseractOCR runs the tesseract command line tool.
type TesseractOCR struct {
	// Binary is the tesseract executable, "tesseract" when empty.
	Binary string
	// Language is the tesseract language pack, "eng" when empty.
	Language string
	// Preprocess upscales and binarises the image before recognition.
	Preprocess bool
}

// Available reports whether the tesseract binary can be found.
func (t *TesseractOCR) Available() bool {
	_, err := exec.LookPath(t.binary())
	return err == nil
}

func (t *TesseractOCR) binary() string {
	if t.Binary == "" {
		return "tesseract"
	}
	return t.Binary
}

// Recognize returns the raw recognised text of the image at imagePath.
func (t *TesseractOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	input := imagePath
	if t.Preprocess {
		prepared, err := preprocessImage(imagePath)
		if err != nil {
			return "", err
		}
		defer os.Remove(prepared)
		input = prepared
	}
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary(), input, "stdout", "-l", lang, "--oem", "3", "--psm", "3")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("tesseract failed: %s", strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("run tesseract: %w", err)
	}
	return stdout.String(), nil
}

// preprocessImage scales the image 2x, converts it to grayscale, doubles the contrast
// around the mean and thresholds at 140. It writes a temporary PNG and returns its path.
func preprocessImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	src, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	out := binarize(src)

	tmp, err := os.CreateTemp("", "noticeboard-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	if err := png.Encode(tmp, out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("encode temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func binarize(src image.Image) *image.Gray {
	b := src.Bounds()
	scaled := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Src, nil)

	var sum int
	for _, p := range scaled.Pix {
		sum += int(p)
	}
	mean := 0.0
	if n := len(scaled.Pix); n > 0 {
		mean = float64(sum) / float64(n)
	}
	out := image.NewGray(scaled.Bounds())
	for i, p := range scaled.Pix {
		v := mean + 2*(float64(p)-mean)
		if v < 140 {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}
