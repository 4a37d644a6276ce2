package planner

// PeekBlock returns the block the consumer (step generator) should be
// executing next, or nil if the queue is empty. The returned pointer is
// only valid until the matching RetireBlock call.
func (p *Planner) PeekBlock() *Block {
	if p.rb.Empty() {
		return nil
	}
	return p.rb.at(p.rb.Tail())
}

// RetireBlock marks the block returned by the most recent PeekBlock as
// fully executed, freeing its slot for reuse and clearing it. It is the
// consumer's half of the busy/recalculate handshake: callers must have
// already driven the block's steps and observed SetBusy(true) for the
// duration of that execution (see SetBlockBusy) before retiring it.
func (p *Planner) RetireBlock() {
	if p.rb.Empty() {
		return
	}
	blk := p.rb.at(p.rb.Tail())
	blk.reset()
	p.rb.RetireTail()
}

// SetBlockBusy marks the block currently at tail busy or idle. The step
// generator sets this true while it is actively stepping a block so the
// look-ahead recalculation in the planner goroutine leaves its speed
// fields alone (§4.4's busy/recalculate handshake).
func (p *Planner) SetBlockBusy(busy bool) {
	if blk := p.PeekBlock(); blk != nil {
		blk.SetBusy(busy)
	}
}
