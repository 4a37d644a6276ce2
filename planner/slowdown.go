package planner

// applySlowdown implements §6's optional slowdown hook: when queue
// occupancy sits in the "thin" range (more than one block queued but
// not past half capacity), any block whose segment time falls below
// min_segment_time_us gets stretched so the combined buffer time stays
// above the configured floor. A full or near-empty queue is left
// alone — a full queue already has enough buffered time, and a
// queue of one has nothing else to plan ahead with.
func (p *Planner) applySlowdown() {
	floorUS := float64(p.cfg.Planner.MinSegmentTimeUS)
	if floorUS <= 0 {
		return
	}

	occupancy := p.rb.Len()
	if occupancy < 2 || occupancy > p.rb.capacity()/2-1 {
		return
	}

	head := p.rb.Head()
	tail := p.rb.tail.Load()
	for i := tail; i < head; i++ {
		blk := p.rb.at(i)
		if blk.IsSync() || blk.IsBusy() || blk.NominalRate == 0 {
			continue
		}

		segUS := 1e6 * float64(blk.StepEventCount) / float64(blk.NominalRate)
		if segUS >= floorUS {
			continue
		}

		stretchedUS := segUS + 2*(floorUS-segUS)/float64(occupancy)
		if stretchedUS <= 0 {
			continue
		}
		blk.NominalRate = uint32(1e6 * float64(blk.StepEventCount) / stretchedUS)
		blk.setRecalc(true)
	}
}
