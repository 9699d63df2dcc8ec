package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jonasrichard/mediamosaic/internal/errors"
)

// DefaultQueueCapacity bounds the number of commands waiting for the worker.
const DefaultQueueCapacity = 16

// Command asks the worker to rebuild one directory.
type Command struct {
	ID        string
	Directory string // root-relative, slash separated
	QueuedAt  time.Time
}

// Queue is a bounded FIFO of commands keyed by directory. A directory whose
// command is already in the queue is not queued twice: the caller gets the
// waiting command back instead. Once the worker takes a command off the
// queue, a new request for the same directory queues a fresh command.
type Queue struct {
	ch     chan *Command
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	pending map[string]*reservation

	// OnQueued runs for every newly accepted command before it becomes
	// visible to the worker.
	OnQueued func(*Command)
}

// reservation tracks the command owning a directory. Until sent is set the
// owner is still blocked on a full queue and may withdraw the command.
// settled is closed once the command is either sent or withdrawn.
type reservation struct {
	cmd     *Command
	sent    bool
	settled chan struct{}
}

// NewQueue creates a queue holding at most capacity waiting commands.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch:      make(chan *Command, capacity),
		closed:  make(chan struct{}),
		pending: make(map[string]*reservation),
	}
}

// Enqueue adds a command for dir, blocking while the queue is full. The
// returned bool is true when the request was merged into a command that was
// already in the queue. A request for a directory whose command is still
// waiting for a slot blocks until that command is queued, and takes over if
// its owner gives up. A non-nil command is returned with ctx's error if the
// wait was abandoned after the command had been accepted.
func (q *Queue) Enqueue(ctx context.Context, dir string) (*Command, bool, error) {
	for {
		select {
		case <-q.closed:
			return nil, false, apperrors.New(apperrors.KindQueueClosed, "enqueue", dir, nil)
		default:
		}

		q.mu.Lock()
		r, ok := q.pending[dir]
		if !ok {
			r = &reservation{
				cmd:     &Command{ID: uuid.NewString(), Directory: dir, QueuedAt: time.Now()},
				settled: make(chan struct{}),
			}
			q.pending[dir] = r
			q.mu.Unlock()
			return q.send(ctx, r)
		}
		if r.sent {
			q.mu.Unlock()
			return r.cmd, true, nil
		}
		q.mu.Unlock()

		select {
		case <-r.settled:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-q.closed:
			return nil, false, apperrors.New(apperrors.KindQueueClosed, "enqueue", dir, nil)
		}
	}
}

// send hands the reserved command to the worker, or withdraws it when the
// wait is abandoned.
func (q *Queue) send(ctx context.Context, r *reservation) (*Command, bool, error) {
	if q.OnQueued != nil {
		q.OnQueued(r.cmd)
	}

	var err error
	select {
	case q.ch <- r.cmd:
	case <-ctx.Done():
		err = ctx.Err()
	case <-q.closed:
		err = apperrors.New(apperrors.KindQueueClosed, "enqueue", r.cmd.Directory, nil)
	}

	q.mu.Lock()
	if err == nil {
		r.sent = true
	} else if q.pending[r.cmd.Directory] == r {
		delete(q.pending, r.cmd.Directory)
	}
	close(r.settled)
	q.mu.Unlock()

	return r.cmd, false, err
}

// Next blocks until a command is available. After Close it keeps returning
// the commands that were already queued, then QueueClosed.
func (q *Queue) Next(ctx context.Context) (*Command, error) {
	select {
	case cmd := <-q.ch:
		q.forget(cmd)
		return cmd, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
	}

	select {
	case cmd := <-q.ch:
		q.forget(cmd)
		return cmd, nil
	default:
		return nil, apperrors.ErrQueueClosed
	}
}

func (q *Queue) forget(cmd *Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.pending[cmd.Directory]; ok && r.cmd == cmd {
		delete(q.pending, cmd.Directory)
	}
}

// Len returns the number of commands waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Close stops accepting commands. Blocked Enqueue calls fail with
// QueueClosed.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}
