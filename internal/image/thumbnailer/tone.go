package thumbnailer

import (
	stdimage "image"
	"image/color"
	"math"

	"github.com/DMarby/thumbs/internal/image"
	"github.com/disintegration/imaging"
)

// adjustTone remaps the color channels of img linearly onto the output range of the task
// With autocontrast the observed channel range is stretched, otherwise the full [0, 255] range is used
func adjustTone(img *stdimage.NRGBA, task *image.Task) *stdimage.NRGBA {
	low, high := task.OutputRange()
	autoContrast, _ := task.AutoContrast.Get()

	inLow, inHigh := uint8(0), uint8(math.MaxUint8)
	if autoContrast {
		inLow, inHigh = channelRange(img)
	}

	if inLow == low && inHigh == high {
		return img
	}

	table := remapTable(inLow, inHigh, low, high)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: table[c.R], G: table[c.G], B: table[c.B], A: c.A}
	})
}

// channelRange returns the lowest and highest color channel value of the visible pixels in img
func channelRange(img *stdimage.NRGBA) (low uint8, high uint8) {
	low, high = math.MaxUint8, 0
	visible := false

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := img.Pix[img.PixOffset(bounds.Min.X, y):img.PixOffset(bounds.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			if row[i+3] == 0 {
				continue
			}
			visible = true

			for _, v := range row[i : i+3] {
				if v < low {
					low = v
				}
				if v > high {
					high = v
				}
			}
		}
	}

	if !visible {
		return 0, math.MaxUint8
	}

	return low, high
}

// remapTable maps [inLow, inHigh] linearly onto [outLow, outHigh], clamping values outside of the input range
// A flat input range keeps values as they are, clamped to the output range
func remapTable(inLow, inHigh, outLow, outHigh uint8) [256]uint8 {
	var table [256]uint8

	for v := 0; v < 256; v++ {
		if inHigh <= inLow {
			table[v] = clamp(v, int(outLow), int(outHigh))
			continue
		}

		in := clamp(v, int(inLow), int(inHigh))
		scaled := float64(int(in)-int(inLow)) * float64(int(outHigh)-int(outLow)) / float64(int(inHigh)-int(inLow))
		table[v] = uint8(int(outLow) + int(math.Round(scaled)))
	}

	return table
}

func clamp(v, low, high int) uint8 {
	if v < low {
		return uint8(low)
	}
	if v > high {
		return uint8(high)
	}
	return uint8(v)
}
