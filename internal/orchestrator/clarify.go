package orchestrator

import (
	"context"
	"fmt"
	"sync"
)

// Clarifier lets a running agent ask the coordinator a question mid-task.
type Clarifier interface {
	Ask(ctx context.Context, taskID, question string) (string, error)
}

// AnswerFunc answers one question using the coordinator's plan context.
type AnswerFunc func(ctx context.Context, taskID, question string) (string, error)

// clarification is one pending question; the reply channel is buffered so the
// handler never blocks on a caller that gave up.
type clarification struct {
	taskID   string
	question string
	reply    chan clarificationReply
}

type clarificationReply struct {
	answer string
	err    error
}

// ClarificationChannel serializes agent questions through one handler
// goroutine so concurrent tasks cannot interleave the coordinator's context.
type ClarificationChannel struct {
	requests chan clarification
	answerFn AnswerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClarificationChannel creates a channel with the given request buffer.
// Size it around twice the runner concurrency so askers rarely block.
func NewClarificationChannel(bufferSize int, answerFn AnswerFunc) *ClarificationChannel {
	return &ClarificationChannel{
		requests: make(chan clarification, bufferSize),
		answerFn: answerFn,
		done:     make(chan struct{}),
	}
}

// Start launches the handler goroutine. The handler runs until Stop is called
// or ctx is cancelled, whichever comes first; Stop must work even when the
// caller's context outlives the run.
func (c *ClarificationChannel) Start(ctx context.Context) {
	hctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		for {
			select {
			case <-hctx.Done():
				return
			case req := <-c.requests:
				answer, err := c.answerFn(hctx, req.taskID, req.question)
				if hctx.Err() != nil {
					err = hctx.Err()
				}
				req.reply <- clarificationReply{answer: answer, err: err}
			}
		}
	}()
}

// Ask submits a question and waits for the answer, honoring cancellation at
// both the send and the receive.
func (c *ClarificationChannel) Ask(ctx context.Context, taskID, question string) (string, error) {
	req := clarification{
		taskID:   taskID,
		question: question,
		reply:    make(chan clarificationReply, 1),
	}

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return "", fmt.Errorf("clarification for task %q not submitted: %w", taskID, ctx.Err())
	case <-c.done:
		return "", fmt.Errorf("clarification channel stopped")
	}

	select {
	case reply := <-req.reply:
		return reply.answer, reply.err
	case <-ctx.Done():
		return "", fmt.Errorf("clarification for task %q abandoned: %w", taskID, ctx.Err())
	}
}

// Stop shuts the handler down and blocks until it has exited. Safe to call
// after a run that finished normally; a no-op when Start was never called.
func (c *ClarificationChannel) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-c.done
}
