package planner

// recalculate runs the three-phase look-ahead optimisation (§4.4) that
// fill_block triggers after every successful admission: reverse pass,
// forward pass, then trapezoid refitting over whatever the two passes
// marked dirty.
func (p *Planner) recalculate() {
	p.reversePass()
	p.forwardPass()
	p.applySlowdown()
	p.recalculateTrapezoids()
}

func (p *Planner) minSpeedSqr() float64 {
	v := p.cfg.Planner.MinimumPlannerSpeedMMS
	return v * v
}

// reversePass walks backward from the most recently committed block
// toward (but never onto) planned, propagating each block's neighbour
// exit speed backward into its own entry speed wherever the block
// isn't already long enough to need no correction (nominal_length).
func (p *Planner) reversePass() {
	head := p.rb.Head()
	tail := p.rb.tail.Load()
	if head == tail {
		return
	}

	nextEntrySq := p.minSpeedSqr()
	i := head - 1
	for i > p.rb.planned {
		blk := p.rb.at(i)
		if !blk.IsSync() {
			var newEntry float64
			if blk.NominalLength() {
				newEntry = blk.MaxEntrySpeedSqr
			} else {
				newEntry = maxAllowableSpeedSqr(-blk.Acceleration, nextEntrySq, blk.Millimeters)
				if newEntry > blk.MaxEntrySpeedSqr {
					newEntry = blk.MaxEntrySpeedSqr
				}
			}
			if newEntry != blk.EntrySpeedSqr {
				blk.setRecalc(true)
				if !blk.IsBusy() {
					blk.EntrySpeedSqr = newEntry
					// recalculate stays set: recalculateTrapezoids clears
					// it once it has refit this block's trapezoid.
				} else {
					blk.setRecalc(false)
				}
			}
			nextEntrySq = blk.EntrySpeedSqr
		}
		if i == tail {
			break
		}
		i--
	}
}

// forwardPass walks forward from planned, raising a block's entry
// speed when its (non-nominal-length) predecessor turns out to allow
// more speed than the reverse pass left it with, and pins planned at
// any block that has reached a speed that can never be improved
// again (its own max_entry_speed_sqr).
func (p *Planner) forwardPass() {
	head := p.rb.Head()
	tail := p.rb.tail.Load()
	if head == tail {
		return
	}

	i := p.rb.planned
	if i < tail {
		i = tail
	}
	for ; i < head; i++ {
		cur := p.rb.at(i)
		if cur.IsSync() {
			continue
		}

		if i > tail {
			prev := p.rb.at(i - 1)
			if !prev.IsSync() && !prev.IsBusy() && !prev.NominalLength() && prev.EntrySpeedSqr < cur.EntrySpeedSqr {
				candidate := maxAllowableSpeedSqr(-prev.Acceleration, prev.EntrySpeedSqr, prev.Millimeters)
				newEntry := cur.EntrySpeedSqr
				if candidate < newEntry {
					newEntry = candidate
				}
				if newEntry < cur.EntrySpeedSqr {
					cur.setRecalc(true)
					if !cur.IsBusy() {
						cur.EntrySpeedSqr = newEntry
						// recalculate stays set: recalculateTrapezoids
						// clears it once it has refit this block.
					} else {
						cur.setRecalc(false)
					}
					p.rb.planned = i
				}
			}
		}

		if cur.EntrySpeedSqr == cur.MaxEntrySpeedSqr {
			p.rb.planned = i
		}
	}
}

// recalculateTrapezoids refits the accelerate/plateau/decelerate
// profile of every block between tail and head whose recalculate bit
// (its own or a neighbour's) is set, skipping busy blocks entirely.
// The last non-sync block is always refitted against the sentinel
// MINIMUM_PLANNER_SPEED exit speed (§3 invariant I6).
func (p *Planner) recalculateTrapezoids() {
	head := p.rb.Head()
	tail := p.rb.tail.Load()
	if head == tail {
		return
	}

	minSpeedSqr := p.minSpeedSqr()
	minimalStepRate := p.cfg.Planner.MinimalStepRate

	lastMotion := int64(-1)
	for i := tail; i < head; i++ {
		if !p.rb.at(i).IsSync() {
			lastMotion = int64(i)
		}
	}
	if lastMotion < 0 {
		return
	}

	for i := tail; i < head; i++ {
		blk := p.rb.at(i)
		if blk.IsSync() || blk.IsBusy() {
			continue
		}

		// A block's exit speed is the next motion block's entry speed,
		// so that neighbour having just changed (still dirty at this
		// point in the tail->head sweep, since it hasn't been visited
		// yet) is what actually requires this block's own trapezoid to
		// be refit, not whatever the previous block's flag says.
		exitSpeedSqr := minSpeedSqr
		var next *Block
		if int64(i) != lastMotion {
			next = p.nextMotionBlock(i, head)
			if next != nil {
				exitSpeedSqr = next.EntrySpeedSqr
			}
		}
		neighbourDirty := next != nil && next.NeedsRecalc()

		if !blk.NeedsRecalc() && !neighbourDirty {
			continue
		}

		fitTrapezoid(blk, blk.EntrySpeedSqr, exitSpeedSqr, minimalStepRate)
		blk.setRecalc(false)
	}
}

// nextMotionBlock returns the next non-sync block strictly after i and
// before head, or nil if there isn't one (i.e. i is the last motion
// block in the queue).
func (p *Planner) nextMotionBlock(i, head uint32) *Block {
	for j := i + 1; j < head; j++ {
		blk := p.rb.at(j)
		if !blk.IsSync() {
			return blk
		}
	}
	return nil
}
