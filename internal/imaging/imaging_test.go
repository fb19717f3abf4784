package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteGray(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

// gridImage draws n horizontal and n vertical 2px rules.
func gridImage(size, n int) *image.Gray {
	g := whiteGray(size, size)
	margin := 20
	step := (size - 2*margin) / (n - 1)
	for k := 0; k < n; k++ {
		pos := margin + k*step
		for t := 0; t < 2; t++ {
			for i := margin; i <= size-margin; i++ {
				g.SetGray(i, pos+t, color.Gray{0})
				g.SetGray(pos+t, i, color.Gray{0})
			}
		}
	}
	return g
}

func TestHoughSegments_GridHasManyLines(t *testing.T) {
	edges := Canny(gridImage(300, 6), 50, 150)
	segs := HoughSegments(edges, DefaultHough)
	assert.GreaterOrEqual(t, len(segs), 12, "expected at least one segment per rule")
	for _, s := range segs {
		assert.GreaterOrEqual(t, s.Length(), float64(DefaultHough.MinLineLength))
	}
}

func TestHoughSegments_BlankImage(t *testing.T) {
	edges := Canny(whiteGray(200, 200), 50, 150)
	assert.Empty(t, HoughSegments(edges, DefaultHough))
}

func TestHoughSegments_ShortStrokesIgnored(t *testing.T) {
	g := whiteGray(200, 200)
	// Ten 20px dashes, each far shorter than the minimum segment length.
	for k := 0; k < 10; k++ {
		y := 15 + k*18
		for x := 40; x < 60; x++ {
			g.SetGray(x, y, color.Gray{0})
			g.SetGray(x, y+1, color.Gray{0})
		}
	}
	segs := HoughSegments(Canny(g, 50, 150), DefaultHough)
	assert.Empty(t, segs)
}

func TestCanny_SingleStepEdge(t *testing.T) {
	g := whiteGray(40, 40)
	for y := 0; y < 40; y++ {
		for x := 20; x < 40; x++ {
			g.SetGray(x, y, color.Gray{0})
		}
	}
	edges := Canny(g, 50, 150)
	cols := map[int]bool{}
	for y := 1; y < 39; y++ {
		for x := 0; x < 40; x++ {
			if edges.GrayAt(x, y).Y == 255 {
				cols[x] = true
			}
		}
	}
	assert.Len(t, cols, 1, "a step edge thins to one column")
}

func TestOtsuAndBinarize(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		if i%2 == 0 {
			g.Pix[i] = 30
		} else {
			g.Pix[i] = 220
		}
	}
	th := Otsu(g)
	assert.GreaterOrEqual(t, th, uint8(30))
	assert.Less(t, th, uint8(220))

	bin := Binarize(g, th)
	assert.Equal(t, uint8(0), bin.Pix[0])
	assert.Equal(t, uint8(255), bin.Pix[1])
}

func TestMedianBlur3_RemovesSaltNoise(t *testing.T) {
	g := whiteGray(9, 9)
	g.SetGray(4, 4, color.Gray{0})
	out := MedianBlur3(g)
	assert.Equal(t, uint8(255), out.GrayAt(4, 4).Y)
}

func TestToRGBA_CMYK(t *testing.T) {
	src := image.NewCMYK(image.Rect(5, 5, 7, 7))
	src.Set(5, 5, color.CMYK{C: 255})
	dst := ToRGBA(src)
	require.Equal(t, image.Rect(0, 0, 2, 2), dst.Bounds())
	r, g, b, _ := dst.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	assert.Equal(t, uint32(255), g>>8)
	assert.Equal(t, uint32(255), b>>8)
}

func TestFit(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 100))
	out := Fit(img, 200)
	assert.Equal(t, image.Rect(0, 0, 200, 50), out.Bounds())
	assert.Same(t, img, Fit(img, 500).(*image.RGBA))
}

func TestPNGRoundTrip(t *testing.T) {
	data, err := PNGBytes(gridImage(60, 3))
	require.NoError(t, err)
	img, format, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 60, img.Bounds().Dx())
}
