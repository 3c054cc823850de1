package simdriver

// RenderBlank fills buf with an empty, nearly white field.
func RenderBlank(buf []byte) {
	for i := range buf {
		buf[i] = backgroundLevel
	}
}

// RenderFinger draws a diagonal ridge pattern inside a centred oval covering
// most of the frame. phase shifts the ridges so consecutive frames differ.
func RenderFinger(buf []byte, width, height, phase int) {
	cx, cy := width/2, height/2
	rx, ry := width*2/5, height*2/5
	if rx == 0 || ry == 0 {
		RenderBlank(buf)
		return
	}

	for y := range height {
		for x := range width {
			i := y*width + x
			if i >= len(buf) {
				return
			}
			dx, dy := x-cx, y-cy
			// Inside the ellipse when (dx/rx)^2 + (dy/ry)^2 <= 1.
			if dx*dx*ry*ry+dy*dy*rx*rx > rx*rx*ry*ry {
				buf[i] = backgroundLevel
				continue
			}
			if ((x+y+phase)/3)%2 == 0 {
				buf[i] = ridgeLevel
			} else {
				buf[i] = valleyLevel
			}
		}
	}
}
