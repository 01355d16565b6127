package renderer

import (
	"fmt"
	"strconv"
	"strings"
)

// ZoomPanFilter creates an ffmpeg zoompan filter that plays keyframes over frames output
// frames from a single input image. Values between keyframes are linear in the output
// frame number.
func ZoomPanFilter(keyframes []CameraState, frames, width, height int, fps float64) string {
	if len(keyframes) == 0 || frames < 1 {
		return ""
	}

	zoomExpr := piecewise(keyframes, func(s CameraState) float64 { return s.Zoom })
	xExpr := piecewise(keyframes, func(s CameraState) float64 { return s.X })
	yExpr := piecewise(keyframes, func(s CameraState) float64 { return s.Y })

	// zoompan wants the top-left corner; zoom is the value z evaluated to for this frame.
	return fmt.Sprintf("zoompan=z='%s':x='%s-iw/zoom/2':y='%s-ih/zoom/2':d=%d:s=%dx%d:fps=%s",
		zoomExpr, xExpr, yExpr, frames, width, height, num(fps))
}

// piecewise nests one if(lte(on,end),...) per segment and ends on the last value.
func piecewise(keyframes []CameraState, value func(CameraState) float64) string {
	last := keyframes[len(keyframes)-1]
	if len(keyframes) == 1 {
		return num(value(last))
	}

	var expr strings.Builder
	for i := 0; i < len(keyframes)-1; i++ {
		a, b := keyframes[i], keyframes[i+1]
		va, vb := value(a), value(b)
		if va == vb {
			fmt.Fprintf(&expr, "if(lte(on,%d),%s,", b.Frame, num(va))
			continue
		}
		slope := (vb - va) / float64(b.Frame-a.Frame)
		fmt.Fprintf(&expr, "if(lte(on,%d),%s+(on-%d)*%s,", b.Frame, num(va), a.Frame, num(slope))
	}
	expr.WriteString(num(value(last)))
	expr.WriteString(strings.Repeat(")", len(keyframes)-1))
	return expr.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
