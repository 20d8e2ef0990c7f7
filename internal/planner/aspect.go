package planner

import "fmt"

// Dimensions is a decoded video stream's width/height in pixels.
type Dimensions struct {
	Width  int
	Height int
}

// evenFloor rounds n down to the nearest even integer (ffmpeg's scale/pad
// filters reject odd dimensions for most yuv420p-family pixel formats).
func evenFloor(n int) int {
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}

// CellFor computes the placement cell for a set of source dimensions,
// spec.md §4.5's "Aspect-preserving placement": take the max of each
// dimension across sources, then round down to even.
func CellFor(sources []Dimensions) Dimensions {
	var w, h int
	for _, s := range sources {
		if s.Width > w {
			w = s.Width
		}
		if s.Height > h {
			h = s.Height
		}
	}
	return Dimensions{Width: evenFloor(w), Height: evenFloor(h)}
}

// ScalePadFilter emits the scale+pad+setsar filter chain for placing a
// source into cell without distorting its aspect ratio (spec.md §4.5):
// scale..force_original_aspect_ratio=decrease, pad to cell centered on
// black, setsar=1:1.
func ScalePadFilter(cell Dimensions) string {
	w, h := evenFloor(cell.Width), evenFloor(cell.Height)
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1:1", w, h, w, h)
}
