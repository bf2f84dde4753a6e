package thumbnailer_test

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/image/thumbnailer"
	"github.com/DMarby/thumbs/internal/logger"
	"github.com/DMarby/thumbs/internal/storage/file"
	"github.com/DMarby/thumbs/internal/tracing"
	"go.uber.org/zap"

	"testing"
)

// writeFixture writes a width x height png whose gray level ranges from low to high, left to right
func writeFixture(t *testing.T, path string, width, height int, low, high uint8) {
	t.Helper()

	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		v := low
		if width > 1 {
			v = uint8(int(low) + (int(high)-int(low))*x/(width-1))
		}
		for y := 0; y < height; y++ {
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T) (context.CancelFunc, *thumbnailer.Processor) {
	log := logger.New(zap.ErrorLevel)
	t.Cleanup(func() { log.Sync() })

	root := t.TempDir()
	writeFixture(t, filepath.Join(root, "landscape.png"), 400, 300, 0, 255)
	writeFixture(t, filepath.Join(root, "small.png"), 20, 10, 0, 255)
	writeFixture(t, filepath.Join(root, "dull.png"), 64, 64, 100, 150)
	if err := os.WriteFile(filepath.Join(root, "corrupt.png"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	storage, err := file.New(root)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	processor, err := thumbnailer.New(ctx, log, tracing.NewNoop(log, "test"), 3, storage)
	if err != nil {
		cancel()
		t.Fatal(err)
	}

	return cancel, processor
}

func decode(t *testing.T, buf []byte) *stdimage.NRGBA {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("output is not a png: %s", err)
	}

	nrgba := stdimage.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			nrgba.Set(x, y, img.At(x, y))
		}
	}

	return nrgba
}

func channelBounds(img *stdimage.NRGBA) (low uint8, high uint8) {
	low, high = 255, 0
	for i := 0; i < len(img.Pix); i += 4 {
		for _, v := range img.Pix[i : i+3] {
			if v < low {
				low = v
			}
			if v > high {
				high = v
			}
		}
	}
	return
}

func TestProcessor(t *testing.T) {
	cancel, processor := setup(t)
	defer cancel()

	sizeTests := []struct {
		Name           string
		Task           *image.Task
		ExpectedWidth  int
		ExpectedHeight int
	}{
		{"fits width", image.NewTask("landscape.png", 100, 100), 100, 75},
		{"fits height", image.NewTask("landscape.png", 400, 30), 40, 30},
		{"doesn't upscale", image.NewTask("small.png", 100, 100), 20, 10},
	}

	for _, test := range sizeTests {
		buf, err := processor.ProcessImage(context.Background(), test.Task)
		if err != nil {
			t.Errorf("%s: %s", test.Name, err)
			continue
		}

		bounds := decode(t, buf).Bounds()
		if bounds.Dx() != test.ExpectedWidth || bounds.Dy() != test.ExpectedHeight {
			t.Errorf("%s: wrong dimensions %dx%d", test.Name, bounds.Dx(), bounds.Dy())
		}
	}

	errorTests := []struct {
		Name          string
		Task          *image.Task
		ExpectedError error
	}{
		{"nonexistant image", image.NewTask("nonexistant.png", 100, 100), image.ErrSourceNotFound},
		{"corrupt image", image.NewTask("corrupt.png", 100, 100), image.ErrDecode},
		{"zero width", image.NewTask("landscape.png", 0, 100), image.ErrInvalidParameters},
		{"negative height", image.NewTask("landscape.png", 100, -1), image.ErrInvalidParameters},
		{"min above max", image.NewTask("landscape.png", 100, 100).WithMin(200).WithMax(100), image.ErrInvalidParameters},
	}

	for _, test := range errorTests {
		_, err := processor.ProcessImage(context.Background(), test.Task)
		if !errors.Is(err, test.ExpectedError) {
			t.Errorf("%s: wrong error %v", test.Name, err)
		}
	}
}

func TestDeterministicOutput(t *testing.T) {
	cancel, processor := setup(t)
	defer cancel()

	a, err := processor.ProcessImage(context.Background(), image.NewTask("landscape.png", 50, 50))
	if err != nil {
		t.Fatal(err)
	}

	b, err := processor.ProcessImage(context.Background(), image.NewTask("landscape.png", 50, 50))
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(a, b) {
		t.Error("rendering the same task twice produced different output")
	}
}

func TestTone(t *testing.T) {
	cancel, processor := setup(t)
	defer cancel()

	tests := []struct {
		Name         string
		Task         *image.Task
		ExpectedLow  uint8
		ExpectedHigh uint8
	}{
		{"unchanged", image.NewTask("dull.png", 64, 64), 100, 150},
		{"autocontrast", image.NewTask("dull.png", 64, 64).WithAutoContrast(true), 0, 255},
		{"autocontrast into bounds", image.NewTask("dull.png", 64, 64).WithAutoContrast(true).WithMin(20).WithMax(220), 20, 220},
		{"autocontrast disabled", image.NewTask("dull.png", 64, 64).WithAutoContrast(false), 100, 150},
	}

	for _, test := range tests {
		buf, err := processor.ProcessImage(context.Background(), test.Task)
		if err != nil {
			t.Errorf("%s: %s", test.Name, err)
			continue
		}

		low, high := channelBounds(decode(t, buf))
		if low != test.ExpectedLow || high != test.ExpectedHigh {
			t.Errorf("%s: wrong range [%d, %d]", test.Name, low, high)
		}
	}

	// Without autocontrast the full range is compressed into the bounds
	buf, err := processor.ProcessImage(context.Background(), image.NewTask("landscape.png", 100, 100).WithMin(50).WithMax(60))
	if err != nil {
		t.Fatal(err)
	}

	low, high := channelBounds(decode(t, buf))
	if low < 50 || high > 60 {
		t.Errorf("bounds not applied, range [%d, %d]", low, high)
	}
}

func TestShutdown(t *testing.T) {
	cancel, processor := setup(t)
	cancel()

	_, err := processor.ProcessImage(context.Background(), image.NewTask("landscape.png", 100, 100))
	if !errors.Is(err, image.ErrWorkContext) {
		t.Fatalf("wrong error %v", err)
	}
}
