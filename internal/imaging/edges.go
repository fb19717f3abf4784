package imaging

import (
	"image"
	"math"
)

// Canny detects edges with 3x3 Sobel gradients (L1 magnitude),
// non-maximum suppression and hysteresis between low and high.
// Edge pixels are 255 in the result.
func Canny(g *image.Gray, low, high float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}

	px := func(x, y int) float64 {
		return float64(g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(x+b.Min.X-g.Rect.Min.X)])
	}

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h) // 0: horizontal gradient, 1: 45°, 2: vertical, 3: 135°
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) - 2*px(x-1, y) - px(x-1, y+1) +
				px(x+1, y-1) + 2*px(x+1, y) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) +
				px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)
			dir[i] = quantizeAngle(math.Atan2(gy, gx))
		}
	}

	// Non-maximum suppression: 0 none, 1 weak, 2 strong.
	class := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}
			var a, c float64
			switch dir[i] {
			case 0:
				a, c = mag[i-1], mag[i+1]
			case 1:
				a, c = mag[i-w-1], mag[i+w+1]
			case 2:
				a, c = mag[i-w], mag[i+w]
			default:
				a, c = mag[i-w+1], mag[i+w-1]
			}
			// Ties keep the first pixel of a plateau only.
			if m <= a || m < c {
				continue
			}
			if m >= high {
				class[i] = 2
			} else {
				class[i] = 1
			}
		}
	}

	// Hysteresis: grow strong edges through connected weak pixels.
	stack := make([]int, 0, 1024)
	for i, c := range class {
		if c == 2 {
			out.Pix[(i/w)*out.Stride+i%w] = 255
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == 1 {
					class[j] = 2
					out.Pix[ny*out.Stride+nx] = 255
					stack = append(stack, j)
				}
			}
		}
	}
	return out
}

func quantizeAngle(rad float64) uint8 {
	deg := rad * 180 / math.Pi
	if deg < 0 {
		deg += 180
	}
	switch {
	case deg < 22.5 || deg >= 157.5:
		return 0
	case deg < 67.5:
		return 1
	case deg < 112.5:
		return 2
	default:
		return 3
	}
}
