package columnar

import (
	"math"
	"sync"
)

// Progress turns planning and fetch milestones into a monotonic
// percentage. Planning covers the first 10%, fetching the remaining 90%.
type Progress struct {
	mu     sync.Mutex
	report func(percent int)
	last   int

	files, filesDone   int
	groups, groupsDone int
}

// NewProgress creates a tracker; report may be nil.
func NewProgress(report func(percent int)) *Progress {
	return &Progress{report: report}
}

// Begin sets the number of files to plan.
func (p *Progress) Begin(files int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files, p.filesDone = files, 0
}

// FilePlanned records one file's metadata and pruning as done.
func (p *Progress) FilePlanned() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesDone++
	if p.files > 0 {
		p.emit(int(math.Ceil(float64(p.filesDone) / float64(p.files) * 10)))
	}
}

// Fetching sets the number of row groups about to be fetched.
func (p *Progress) Fetching(groups int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups, p.groupsDone = groups, 0
	p.emit(10)
}

// RowGroupDone records one fetched and decoded row group.
func (p *Progress) RowGroupDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groupsDone++
	if p.groups > 0 {
		p.emit(int(math.Ceil(float64(p.groupsDone)/float64(p.groups)*90)) + 10)
	}
}

// Done reports completion.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emit(100)
}

// Percent returns the last reported value.
func (p *Progress) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Progress) emit(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return
	}
	p.last = pct
	if p.report != nil {
		p.report(pct)
	}
}
