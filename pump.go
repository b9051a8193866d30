package tor

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// eventReplyCode is the status code the daemon uses for every asynchronous
// event line, distinguishing it from a synchronous command reply.
const eventReplyCode = 650

// pumpResult is what the message pump hands back to a waiting sendCommand
// call: either a completed reply or the error that ended the connection
// before one arrived.
type pumpResult struct {
	msg *ReplyMessage
	err error
}

// pump is the single background reader that demultiplexes the daemon's
// 650-prefixed events from FIFO-ordered synchronous command replies,
// described in spec.md §5. Only one goroutine ever calls socket.ReadLine,
// so the assembler it owns needs no locking of its own.
//
// Grounded on original_source/stem/control.py's reader-thread split between
// events and replies, generalized from _teacher_ref/controller.go's
// one-shot sendCommand/readResponse pairing into a long-lived loop since
// spec.md requires concurrent listener dispatch alongside synchronous
// commands.
type pump struct {
	sock *socket
	asm  *assembler

	mu      sync.Mutex
	pending []chan pumpResult

	dispatch  *eventQueue
	listeners func(eventType string) []*listenerQueue

	metrics *metricsCollector

	grp *errgroup.Group
}

func newPump(sock *socket, dispatch *eventQueue, metrics *metricsCollector,
	listeners func(string) []*listenerQueue) *pump {

	return &pump{
		sock:      sock,
		asm:       newAssembler(),
		dispatch:  dispatch,
		listeners: listeners,
		metrics:   metrics,
	}
}

// Start launches the reader and dispatch goroutines, supervised by an
// errgroup so a failure in either surfaces from Wait.
func (p *pump) Start() {
	p.grp = new(errgroup.Group)
	p.grp.Go(p.readLoop)
	p.grp.Go(p.dispatchLoop)
}

// Wait blocks until both goroutines have exited (after the socket closes)
// and returns the error, if any, that ended the reader loop.
func (p *pump) Wait() error {
	return p.grp.Wait()
}

// Send writes one command and registers a channel to receive its reply.
// The returned channel receives exactly one pumpResult.
func (p *pump) Send(cmd string) (<-chan pumpResult, error) {
	ch := make(chan pumpResult, 1)

	p.mu.Lock()
	p.pending = append(p.pending, ch)
	p.mu.Unlock()

	if err := p.sock.WriteLine(cmd); err != nil {
		return ch, err
	}
	if p.metrics != nil {
		p.metrics.commandsSent.Inc()
	}
	return ch, nil
}

func (p *pump) readLoop() error {
	defer p.dispatch.Close()

	for {
		line, err := p.sock.ReadLine()
		if err != nil {
			p.failPending(err)
			return err
		}

		msg, ferr := p.asm.Feed(line)
		if ferr != nil {
			log.Warnf("discarding malformed reply: %v", ferr)
			continue
		}
		if msg == nil {
			continue
		}

		if msg.Code() == eventReplyCode {
			p.handleEvent(msg)
			continue
		}

		p.deliverReply(msg)
	}
}

func (p *pump) handleEvent(msg *ReplyMessage) {
	evt, err := ParseEvent(msg, nil)
	if err != nil {
		log.Warnf("discarding malformed event: %v", err)
		return
	}

	if p.metrics != nil {
		p.metrics.eventsReceived.Inc()
	}
	if dropped := p.dispatch.Push(evt); dropped && p.metrics != nil {
		p.metrics.eventsDropped.Inc()
	}
}

func (p *pump) deliverReply(msg *ReplyMessage) {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		log.Warnf("received reply with no pending request: %q", msg.Raw())
		return
	}
	ch := p.pending[0]
	p.pending = p.pending[1:]
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.repliesReceived.Inc()
	}
	ch <- pumpResult{msg: msg}
}

func (p *pump) failPending(err error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	wrapped := NewSocketError(err)
	for _, ch := range pending {
		ch <- pumpResult{err: wrapped}
	}
}

func (p *pump) dispatchLoop() error {
	for {
		evt, ok := p.dispatch.Pop()
		if !ok {
			return nil
		}

		for _, lq := range p.listeners(evt.Type()) {
			lq.deliver(evt)
		}
		for _, lq := range p.listeners("*") {
			lq.deliver(evt)
		}
	}
}
