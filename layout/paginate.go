package layout

// epsilon absorbs rounding in height sums.
const epsilon = 1e-6

type paginator struct {
	cfg PageConfig
	// first is the number of pages laid out before this paginator's.
	first int
	// top and bottom bound the body region between header and footer.
	top    float64
	bottom float64
	header []Item
	footer []Item

	pages []*Page
	cur   *Page
	y     float64
	empty bool
}

func (p *paginator) newPage() {
	p.cur = &Page{
		Number:  p.first + len(p.pages) + 1,
		Size:    p.cfg.Size,
		Margins: p.cfg.Margins,
	}
	p.cur.Items = append(p.cur.Items, p.header...)
	p.cur.Items = append(p.cur.Items, p.footer...)
	p.pages = append(p.pages, p.cur)
	p.y = p.top
	p.empty = true
}

func (p *paginator) put(u unit) {
	for _, it := range u.items {
		p.cur.Items = append(p.cur.Items, it.shifted(0, p.y))
	}
	p.y += u.h
	p.empty = false
}

// paginate places units on pages. A unit that does not fit in what is left
// of the page moves whole to the next page; a unit taller than the body
// region is an error.
func (p *paginator) paginate(units []unit) ([]*Page, error) {
	p.newPage()
	avail := p.bottom - p.top
	for i, u := range units {
		switch {
		case u.pageBreak:
			if !p.empty {
				p.newPage()
			}
			continue
		case u.gap:
			if p.empty {
				continue
			}
			if p.y+u.h > p.bottom+epsilon {
				p.newPage()
				continue
			}
			p.y += u.h
			continue
		case u.spacer:
			if p.y+u.h > p.bottom+epsilon {
				if !p.empty {
					p.newPage()
				}
				continue
			}
			p.y += u.h
			continue
		}
		if u.h > avail+epsilon {
			return nil, &OverflowError{What: u.what, Pos: u.pos, Height: u.h, Available: avail}
		}
		if u.head != nil && u.h+u.head.h > avail+epsilon {
			return nil, &OverflowError{What: u.what + " with its table header", Pos: u.pos, Height: u.h + u.head.h, Available: avail}
		}
		need := u.h
		if u.keep {
			need = keepChain(units, i, avail)
		}
		if !p.empty && p.y+need > p.bottom+epsilon {
			p.newPage()
		}
		if p.empty && u.head != nil {
			for _, hu := range u.head.units {
				p.put(hu)
			}
		}
		p.put(u)
	}
	return p.pages, nil
}

// keepChain is the height of units[i] and everything it is kept with. A
// chain taller than the body region is not kept together.
func keepChain(units []unit, i int, avail float64) float64 {
	sum := 0.0
	for j := i; j < len(units); j++ {
		u := units[j]
		if u.pageBreak {
			break
		}
		sum += u.h
		if !u.keep && !u.gap {
			break
		}
	}
	if sum > avail+epsilon {
		return units[i].h
	}
	return sum
}
