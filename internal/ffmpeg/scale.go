package ffmpeg

import "fmt"

// ScaleFilter returns the -vf expression bounding the output to maxWidth by
// maxHeight. Bounds are wrapped in min() against the input so no path ever
// upscales. With both bounds the aspect ratio is preserved by shrinking to
// fit; with one bound the other axis follows automatically. Zero bounds mean
// no filter.
func ScaleFilter(maxWidth, maxHeight int) string {
	switch {
	case maxWidth > 0 && maxHeight > 0:
		return fmt.Sprintf("scale=w='min(%d,iw)':h='min(%d,ih)':force_original_aspect_ratio=decrease:force_divisible_by=2", maxWidth, maxHeight)
	case maxWidth > 0:
		return fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth)
	case maxHeight > 0:
		return fmt.Sprintf("scale=-2:'min(%d,ih)'", maxHeight)
	default:
		return ""
	}
}

// ScaledDimensions computes the frame size ScaleFilter produces for a
// srcWidth by srcHeight input, using the encoder's rounding rules. A source
// already within the bounds is returned unchanged.
func ScaledDimensions(srcWidth, srcHeight, maxWidth, maxHeight int) (int, int) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return srcWidth, srcHeight
	}
	fitsW := maxWidth <= 0 || srcWidth <= maxWidth
	fitsH := maxHeight <= 0 || srcHeight <= maxHeight
	if fitsW && fitsH {
		return srcWidth, srcHeight
	}

	switch {
	case maxWidth > 0 && maxHeight > 0:
		w := min(maxWidth, srcWidth)
		h := min(maxHeight, srcHeight)
		fitW := rescale(h, srcWidth, srcHeight)
		fitH := rescale(w, srcHeight, srcWidth)
		return min(w, fitW) &^ 1, min(h, fitH) &^ 1
	case maxWidth > 0:
		w := min(maxWidth, srcWidth)
		return w, rescale(w, srcHeight, srcWidth*2) * 2
	default:
		h := min(maxHeight, srcHeight)
		return rescale(h, srcWidth, srcHeight*2) * 2, h
	}
}

// rescale returns a*b/c rounded to nearest, halves away from zero.
func rescale(a, b, c int) int {
	return (a*b + c/2) / c
}
