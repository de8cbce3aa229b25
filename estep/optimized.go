package estep

// optimized fuses suppression and seeding into one sweep and keeps only the
// K allowed classes per pixel. It must stay bit-identical to reference: every
// sum runs over the allowed classes in ascending order and every product is
// rounded to float32 before it is accumulated.
type optimized struct{}

func (optimized) Name() string {
	return "optimized"
}

func (optimized) Run(ws *Workspace, c *Config, p *ProbabilityMap, l *WeakLabels, out []uint16) (st Stats) {
	var h, w, nc = p.Height, p.Width, p.Classes
	var n = h * w
	ws.prepare(p, l, true)
	var allowed, rank, votes = ws.allowed, ws.rank, ws.votes
	var k = len(allowed)
	var q, sx, seed = ws.q, ws.score, ws.seed
	var cur, next = ws.cur, ws.next
	var bgp, fgp, margin = c.BgP, c.FgP, c.MarginOthers
	var suppress = c.SuppressOthers

	for i := 0; i < n; i++ {
		px := p.Data[i*nc : (i+1)*nc]
		qx := q[i*k : (i+1)*k]
		var s float32
		for _, cl := range allowed {
			s += px[cl]
		}
		switch {
		case suppress && s >= margin:
			for j, cl := range allowed {
				qx[j] = px[cl] / s
			}
		case !suppress && s > 0:
			for j, cl := range allowed {
				qx[j] = px[cl]
			}
		default:
			for j := range qx {
				qx[j] = 0
			}
			qx[0] = 1
			st.Degenerate++
		}

		if qx[0] >= bgp {
			seed[i], cur[i] = true, Background
			st.Seeded++
			continue
		}
		best := 0
		var bestq float32
		for j := 1; j < k; j++ {
			if qx[j] >= fgp && (best == 0 || qx[j] > bestq) {
				best, bestq = j, qx[j]
			}
		}
		if best != 0 {
			seed[i], cur[i] = true, allowed[best]
			st.Seeded++
			continue
		}
		seed[i], cur[i] = false, allowed[argmax(qx)]
	}

	for t := 0; t < c.NumIter; t++ {
		for y := 0; y < h; y++ {
			row := y * w
			for x := 0; x < w; x++ {
				i := row + x
				if seed[i] {
					next[i] = cur[i]
					continue
				}
				for j := range votes {
					votes[j] = 0
				}
				if y > 0 {
					votes[rank[cur[i-w]]]++
				}
				if y+1 < h {
					votes[rank[cur[i+w]]]++
				}
				if x > 0 {
					votes[rank[cur[i-1]]]++
				}
				if x+1 < w {
					votes[rank[cur[i+1]]]++
				}
				qx := q[i*k : (i+1)*k]
				var z float32
				for j := 0; j < k; j++ {
					sx[j] = float32(qx[j] * float32(1+votes[j]))
					z += sx[j]
				}
				if z > 0 {
					for j := 0; j < k; j++ {
						sx[j] = sx[j] / z
					}
				}
				next[i] = allowed[argmax(sx[:k])]
			}
		}
		cur, next = next, cur
	}
	ws.cur, ws.next = cur, next

	copy(out, cur[:n])
	return
}

// argmax returns the position of the highest value, the lowest position
// winning ties.
func argmax(v []float32) (best int) {
	var bestv = v[0]
	for j := 1; j < len(v); j++ {
		if v[j] > bestv {
			best, bestv = j, v[j]
		}
	}
	return
}
