package estep

// reference runs the four passes one after another over full [N,C] buffers.
// It is the portable rendition the optimized backend is checked against.
type reference struct{}

func (reference) Name() string {
	return "reference"
}

func (reference) Run(ws *Workspace, c *Config, p *ProbabilityMap, l *WeakLabels, out []uint16) (st Stats) {
	var h, w, nc = p.Height, p.Width, p.Classes
	var n = h * w
	ws.prepare(p, l, false)
	var mask, q, score, seed = ws.mask, ws.q, ws.score, ws.seed
	var cur, next = ws.cur, ws.next

	// suppression
	for i := 0; i < n; i++ {
		px := p.Data[i*nc : (i+1)*nc]
		qx := q[i*nc : (i+1)*nc]
		var s float32
		for k := 0; k < nc; k++ {
			if mask[k] {
				s += px[k]
			}
		}
		if c.SuppressOthers {
			if !(s >= c.MarginOthers) {
				oneHotBackground(qx)
				st.Degenerate++
				continue
			}
			for k := 0; k < nc; k++ {
				if mask[k] {
					qx[k] = px[k] / s
				} else {
					qx[k] = 0
				}
			}
		} else {
			if !(s > 0) {
				oneHotBackground(qx)
				st.Degenerate++
				continue
			}
			copy(qx, px)
		}
	}

	// seeding
	for i := 0; i < n; i++ {
		qx := q[i*nc : (i+1)*nc]
		if qx[Background] >= c.BgP {
			seed[i], cur[i] = true, Background
			st.Seeded++
			continue
		}
		best := -1
		var bestq float32
		for k := 1; k < nc; k++ {
			if mask[k] && qx[k] >= c.FgP && (best < 0 || qx[k] > bestq) {
				best, bestq = k, qx[k]
			}
		}
		if best >= 0 {
			seed[i], cur[i] = true, uint16(best)
			st.Seeded++
			continue
		}
		seed[i], cur[i] = false, argmaxMasked(qx, mask)
	}

	// propagation
	for t := 0; t < c.NumIter; t++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if seed[i] {
					next[i] = cur[i]
					continue
				}
				qx := q[i*nc : (i+1)*nc]
				sx := score[i*nc : (i+1)*nc]
				var z float32
				for k := 0; k < nc; k++ {
					if !mask[k] {
						sx[k] = 0
						continue
					}
					v := neighbours(cur, h, w, y, x, uint16(k))
					// the conversion rounds the product, keeping it unfused
					sx[k] = float32(qx[k] * float32(1+v))
					z += sx[k]
				}
				if z > 0 {
					for k := 0; k < nc; k++ {
						if mask[k] {
							sx[k] = sx[k] / z
						}
					}
				}
				next[i] = argmaxMasked(sx, mask)
			}
		}
		cur, next = next, cur
	}
	ws.cur, ws.next = cur, next

	// finalization
	for i := 0; i < n; i++ {
		if seed[i] {
			out[i] = cur[i]
		} else {
			out[i] = argmaxMasked(score[i*nc:(i+1)*nc], mask)
		}
	}
	return
}

func oneHotBackground(qx []float32) {
	for k := range qx {
		qx[k] = 0
	}
	qx[Background] = 1
}

// argmaxMasked returns the allowed class with the highest value, the lowest
// index winning ties. Background is always allowed.
func argmaxMasked(v []float32, mask []bool) uint16 {
	var best = Background
	var bestv = v[Background]
	for k := 1; k < len(v); k++ {
		if mask[k] && v[k] > bestv {
			best, bestv = k, v[k]
		}
	}
	return uint16(best)
}

// neighbours counts the 4-neighbours of (y, x) labelled c.
func neighbours(labels []uint16, h, w, y, x int, c uint16) (v int) {
	if y > 0 && labels[(y-1)*w+x] == c {
		v++
	}
	if y+1 < h && labels[(y+1)*w+x] == c {
		v++
	}
	if x > 0 && labels[y*w+x-1] == c {
		v++
	}
	if x+1 < w && labels[y*w+x+1] == c {
		v++
	}
	return
}
