package logging

import (
	"context"
	"time"

	"github.com/RyanBlaney/sonido-timbre/algorithms/common"
)

// Entry is a fixed-size log record safe to enqueue from the audio thread.
// Message should be a constant string so that enqueueing never allocates.
type Entry struct {
	Level   Level
	Message string
	Value   float64
	Time    time.Time
}

// Realtime queues log entries from a real-time goroutine and forwards them to a
// regular Logger from a lower-priority goroutine. Enqueueing never blocks; when the
// queue is full the entry is dropped and counted.
type Realtime struct {
	queue  *common.SPSC[Entry]
	target Logger
	batch  []Entry
}

// NewRealtime creates a queue with room for capacity pending entries
func NewRealtime(target Logger, capacity int) (*Realtime, error) {
	queue, err := common.NewSPSC[Entry](capacity)
	if err != nil {
		return nil, err
	}
	if target == nil {
		target = GetGlobalLogger()
	}

	return &Realtime{
		queue:  queue,
		target: target,
		batch:  make([]Entry, 64),
	}, nil
}

// Log enqueues an entry; false means the queue was full
func (r *Realtime) Log(level Level, msg string, value float64) bool {
	return r.queue.Push(Entry{Level: level, Message: msg, Value: value, Time: time.Now()})
}

// Drain forwards every pending entry and returns how many were written
func (r *Realtime) Drain() int {
	total := 0
	for {
		n := r.queue.Read(r.batch)
		if n == 0 {
			return total
		}
		for _, e := range r.batch[:n] {
			r.emit(e)
		}
		total += n
	}
}

func (r *Realtime) emit(e Entry) {
	fields := Fields{"value": e.Value, "at": e.Time.Format(time.StampMicro)}
	switch e.Level {
	case DebugLevel:
		r.target.Debug(e.Message, fields)
	case InfoLevel:
		r.target.Info(e.Message, fields)
	case WarnLevel:
		r.target.Warn(e.Message, fields)
	default:
		r.target.Error(nil, e.Message, fields)
	}
}

// Run drains the queue every interval until ctx is cancelled, then drains once more
func (r *Realtime) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Drain()
			return
		case <-ticker.C:
			r.Drain()
		}
	}
}

// Dropped returns how many entries were lost to a full queue
func (r *Realtime) Dropped() uint64 {
	return r.queue.Dropped()
}
