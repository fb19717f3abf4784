package imaging

import (
	"image"
	"math"
	"sort"
)

// HoughParams mirrors the usual probabilistic Hough parameters.
type HoughParams struct {
	Rho           float64 // distance resolution in pixels
	Theta         float64 // angle resolution in radians
	Threshold     int     // minimum votes for a line
	MinLineLength int     // shorter segments are dropped
	MaxLineGap    int     // largest gap bridged inside one segment
}

// DefaultHough is tuned for ruled tables in scanned pages.
var DefaultHough = HoughParams{
	Rho:           1,
	Theta:         math.Pi / 180,
	Threshold:     50,
	MinLineLength: 50,
	MaxLineGap:    10,
}

// Segment is a detected line segment.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// Length is the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

type houghPeak struct {
	theta, rho, votes int
}

// HoughSegments finds line segments in an edge map. Lines are voted in a
// (theta, rho) accumulator; peaks are then walked strongest first, pixels
// that end up in a segment are removed so later peaks cannot reuse them.
func HoughSegments(edges *image.Gray, p HoughParams) []Segment {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || p.Rho <= 0 || p.Theta <= 0 {
		return nil
	}

	mask := make([]bool, w*h)
	var points []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 0 {
				mask[y*w+x] = true
				points = append(points, image.Pt(x, y))
			}
		}
	}
	if len(points) == 0 {
		return nil
	}

	numTheta := int(math.Round(math.Pi / p.Theta))
	maxRho := math.Hypot(float64(w), float64(h))
	numRho := int(2*maxRho/p.Rho) + 1
	cosT := make([]float64, numTheta)
	sinT := make([]float64, numTheta)
	for t := range numTheta {
		a := float64(t) * p.Theta
		cosT[t], sinT[t] = math.Cos(a), math.Sin(a)
	}

	acc := make([]int, numTheta*numRho)
	for _, pt := range points {
		for t := range numTheta {
			rho := float64(pt.X)*cosT[t] + float64(pt.Y)*sinT[t] + maxRho
			r := int(math.Round(rho / p.Rho))
			acc[t*numRho+r]++
		}
	}

	var peaks []houghPeak
	for t := range numTheta {
		for r := range numRho {
			if v := acc[t*numRho+r]; v >= p.Threshold {
				peaks = append(peaks, houghPeak{t, r, v})
			}
		}
	}
	sort.Slice(peaks, func(i, j int) bool {
		if peaks[i].votes != peaks[j].votes {
			return peaks[i].votes > peaks[j].votes
		}
		if peaks[i].theta != peaks[j].theta {
			return peaks[i].theta < peaks[j].theta
		}
		return peaks[i].rho < peaks[j].rho
	})

	var segments []Segment
	for _, pk := range peaks {
		rho := float64(pk.rho)*p.Rho - maxRho
		c, s := cosT[pk.theta], sinT[pk.theta]
		segments = append(segments, walkLine(mask, w, h, rho, c, s, maxRho, p)...)
	}
	return segments
}

// walkLine steps along the line x*c + y*s = rho, collecting runs of edge
// pixels (within one pixel of the line) separated by at most MaxLineGap.
func walkLine(mask []bool, w, h int, rho, c, s, maxRho float64, p HoughParams) []Segment {
	// Foot of the normal and the direction along the line.
	x0, y0 := rho*c, rho*s
	dx, dy := -s, c

	type hit struct{ x, y int }
	var (
		out     []Segment
		run     []hit
		first   hit
		last    hit
		gap     int
		started bool
	)

	lookup := func(fx, fy float64) (hit, bool) {
		for _, off := range [3]float64{0, -1, 1} {
			x := int(math.Round(fx + off*c))
			y := int(math.Round(fy + off*s))
			if x >= 0 && y >= 0 && x < w && y < h && mask[y*w+x] {
				return hit{x, y}, true
			}
		}
		return hit{}, false
	}

	flush := func() {
		if started {
			seg := Segment{first.x, first.y, last.x, last.y}
			if seg.Length() >= float64(p.MinLineLength) && len(run) >= p.Threshold {
				out = append(out, seg)
				for _, px := range run {
					mask[px.y*w+px.x] = false
				}
			}
		}
		run = run[:0]
		started = false
		gap = 0
	}

	steps := int(math.Ceil(maxRho))
	for i := -steps; i <= steps; i++ {
		fx, fy := x0+float64(i)*dx, y0+float64(i)*dy
		if fx < -1 || fy < -1 || fx > float64(w) || fy > float64(h) {
			if started {
				flush()
			}
			continue
		}
		pt, ok := lookup(fx, fy)
		if !ok {
			if started {
				gap++
				if gap > p.MaxLineGap {
					flush()
				}
			}
			continue
		}
		if !started {
			first = pt
			started = true
		}
		last = pt
		gap = 0
		run = append(run, pt)
	}
	flush()
	return out
}
