package timers

import (
	"sync"
	"time"
)

type Timer struct {
	ID       string
	Interval time.Duration
	Repeat   bool
	Task     func()

	ticks  int
	rounds int
}

type slot struct {
	timers map[string]*Timer
}

// TimingWheel runs tasks on a fixed tick. Intervals longer than one turn of
// the wheel are counted in rounds, so slotsCount only bounds precision.
type TimingWheel struct {
	tickDuration time.Duration
	slots        []*slot
	currentPos   int
	slotsCount   int
	mutex        sync.Mutex
	ticker       *time.Ticker

	stopOnce sync.Once
	done     chan struct{}
}

func NewTimingWheel(tickDuration time.Duration, slotsCount int) *TimingWheel {
	tw := newTimingWheel(tickDuration, slotsCount)
	tw.ticker = time.NewTicker(tickDuration)
	go tw.start()
	return tw
}

func newTimingWheel(tickDuration time.Duration, slotsCount int) *TimingWheel {
	if slotsCount < 1 {
		slotsCount = 1
	}

	tw := &TimingWheel{
		tickDuration: tickDuration,
		slotsCount:   slotsCount,
		slots:        make([]*slot, slotsCount),
		done:         make(chan struct{}),
	}
	for i := range tw.slots {
		tw.slots[i] = &slot{timers: make(map[string]*Timer)}
	}
	return tw
}

func (tw *TimingWheel) start() {
	for {
		select {
		case <-tw.done:
			return
		case <-tw.ticker.C:
			tw.tick()
		}
	}
}

// tick processes the slot at currentPos, then advances. A task placed with
// ticks=n runs on the n-th tick after placement.
func (tw *TimingWheel) tick() {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	currentSlot := tw.slots[tw.currentPos]
	next := (tw.currentPos + 1) % tw.slotsCount

	var again []*Timer
	for id, timer := range currentSlot.timers {
		if timer.rounds > 0 {
			timer.rounds--
			continue
		}

		go timer.Task()
		delete(currentSlot.timers, id)
		if timer.Repeat {
			again = append(again, timer)
		}
	}

	for _, timer := range again {
		tw.placeLocked(timer, next)
	}

	tw.currentPos = next
}

// placeLocked puts t where it is reached on its ticks-th tick, counting the
// tick that processes slot from as the first.
func (tw *TimingWheel) placeLocked(t *Timer, from int) {
	steps := t.ticks - 1
	t.rounds = steps / tw.slotsCount
	tw.slots[(from+steps)%tw.slotsCount].timers[t.ID] = t
}

func (tw *TimingWheel) ticksFor(interval time.Duration) int {
	ticks := int(interval / tw.tickDuration)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// AddTimer schedules task after interval, and every interval after that when
// repeat is set. An existing timer with the same id is replaced.
func (tw *TimingWheel) AddTimer(id string, interval time.Duration, repeat bool, task func()) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.removeLocked(id)
	tw.placeLocked(&Timer{
		ID:       id,
		Interval: interval,
		Repeat:   repeat,
		Task:     task,
		ticks:    tw.ticksFor(interval),
	}, tw.currentPos)
}

func (tw *TimingWheel) RemoveTimer(id string) {
	tw.mutex.Lock()
	defer tw.mutex.Unlock()

	tw.removeLocked(id)
}

func (tw *TimingWheel) removeLocked(id string) {
	for _, s := range tw.slots {
		delete(s.timers, id)
	}
}

func (tw *TimingWheel) Stop() {
	tw.stopOnce.Do(func() {
		if tw.ticker != nil {
			tw.ticker.Stop()
		}
		close(tw.done)
	})
}
