package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindease/backend/internal/model/chat"
	"github.com/mindease/backend/internal/service/llm"
)

// WelcomeMessage opens every new conversation.
const WelcomeMessage = "Hello! I'm here to listen and support you. Feel free to share what's on your mind - whether you're feeling anxious, stressed, happy, or anything in between. This is your safe space. 💙"

const (
	noticeRecovering      = "I'm having trouble connecting. Let me try a different approach..."
	noticeFallbackPrefix  = "Connection issue: "
	noticeFallbackGeneric = "I'm having trouble connecting to my AI system right now."
)

var (
	// ErrEmptyMessage rejects blank submissions before any state change.
	ErrEmptyMessage = errors.New("message must not be empty")
	// ErrBusy rejects an operation while a turn is in flight.
	ErrBusy = errors.New("a response is already in progress")
	// ErrNotCancelable means Cancel was called with nothing in flight.
	ErrNotCancelable = errors.New("no in-flight response to cancel")
	// ErrNothingToRetry means Retry was called before any submission.
	ErrNothingToRetry = errors.New("no message to retry")

	errStaleTurn = errors.New("turn superseded")
)

// Controller drives one conversation: it owns the message sequence,
// delegates transport to the failover policy, degrades to the fallback
// responder, and publishes every transition as an event.
type Controller struct {
	id       string
	client   *llm.Client
	policy   *llm.FailoverPolicy
	fallback *llm.FallbackResponder

	mu          sync.Mutex
	state       State
	messages    []chat.Message
	lastSubmit  string
	retryCount  int
	assistantID string
	turnGen     int
	cancelTurn  context.CancelFunc

	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// NewController starts an idle session seeded with the welcome message.
func NewController(client *llm.Client, policy *llm.FailoverPolicy, fallback *llm.FallbackResponder) *Controller {
	return &Controller{
		id:       uuid.NewString(),
		client:   client,
		policy:   policy,
		fallback: fallback,
		state:    StateIdle,
		messages: []chat.Message{{
			ID:      "welcome",
			Role:    chat.RoleAssistant,
			Content: WelcomeMessage,
		}},
		subs: make(map[int]chan Event),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Snapshot returns the current session view for a fresh subscriber.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	route, _ := c.policy.Active()
	msgs := make([]chat.Message, len(c.messages))
	copy(msgs, c.messages)
	return Snapshot{
		SessionID:           c.id,
		State:               c.state,
		Route:               route,
		RetryCount:          c.retryCount,
		ConsecutiveFailures: c.policy.ConsecutiveFailures(),
		Messages:            msgs,
	}
}

// Subscribe registers an event listener. The returned channel is
// closed on Unsubscribe or when the session ends.
func (c *Controller) Subscribe() (int, <-chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, 64)
	if c.closed {
		close(ch)
		return id, ch
	}
	c.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (c *Controller) Unsubscribe(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.subs[id]; ok {
		delete(c.subs, id)
		close(ch)
	}
}

// Close terminates the session: the in-flight turn is canceled and
// every subscriber channel is closed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.turnGen++
	c.releaseTurnLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Submit appends a user message and starts a turn. Empty input and
// submission during an in-flight turn are rejected before any state
// mutation.
func (c *Controller) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingResponse || c.state == StateStreaming {
		return ErrBusy
	}

	msg := chat.Message{ID: uuid.NewString(), Role: chat.RoleUser, Content: text}
	c.messages = append(c.messages, msg)
	c.lastSubmit = text
	c.emit(Event{Type: EventMessage, Message: &msg})

	c.startTurnLocked()
	return nil
}

// Retry re-issues the last submitted message. Valid from any state
// without a turn in flight, notably FallbackActive.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingResponse || c.state == StateStreaming {
		return ErrBusy
	}
	if c.lastSubmit == "" {
		return ErrNothingToRetry
	}
	c.startTurnLocked()
	return nil
}

// Cancel stops the in-flight turn, keeping any partial assistant
// message. No further increment is delivered after Cancel returns.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingResponse && c.state != StateStreaming {
		return ErrNotCancelable
	}
	c.turnGen++
	c.releaseTurnLocked()
	c.sealAssistantLocked()
	c.setStateLocked(StateIdle)
	return nil
}

// SwitchRoute toggles the active endpoint and, when a message has been
// submitted, re-issues it on the new route.
func (c *Controller) SwitchRoute() (llm.Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAwaitingResponse || c.state == StateStreaming {
		return "", ErrBusy
	}
	route := c.policy.Switch()
	if c.lastSubmit != "" {
		c.startTurnLocked()
	}
	return route, nil
}

// startTurnLocked arms a new turn generation and launches the request
// loop. Caller holds c.mu.
func (c *Controller) startTurnLocked() {
	c.turnGen++
	gen := c.turnGen
	if c.cancelTurn != nil {
		// A previous turn may still be parked in its retry delay; stop
		// it before it can reach the shared failover policy again.
		c.cancelTurn()
	}
	c.retryCount = 0
	c.assistantID = ""
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTurn = cancel
	history := c.requestHistoryLocked()
	c.setStateLocked(StateAwaitingResponse)
	go c.runTurn(ctx, gen, history)
}

// requestHistoryLocked is the transcript sent to the endpoint: all
// messages up to and including the last user turn. Trailing assistant
// content (a partial or a fallback reply) is not replayed.
func (c *Controller) requestHistoryLocked() []chat.Message {
	end := len(c.messages)
	for end > 0 && c.messages[end-1].Role != chat.RoleUser {
		end--
	}
	history := make([]chat.Message, end)
	copy(history, c.messages[:end])
	return history
}

// runTurn issues the request, following the failover policy until the
// turn resolves with a streamed reply or a fallback reply.
func (c *Controller) runTurn(ctx context.Context, gen int, history []chat.Message) {
	for {
		_, endpoint := c.policy.Active()
		stream, err := c.client.Send(ctx, endpoint, history)
		if err == nil {
			err = c.consume(gen, stream)
			stream.Close()
			if err == nil {
				c.policy.OnSuccess()
				c.finishTurn(gen)
				return
			}
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, errStaleTurn) {
			return
		}

		log.Printf("[session] transport failure for session=%s: %v", c.id, err)
		c.retractPartial(gen)
		switch c.policy.OnFailure() {
		case llm.DecisionRetrySecondary:
			if !c.enterRecovering(gen) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.policy.RetryDelay()):
			}
		case llm.DecisionFallback:
			c.enterFallback(gen, err)
			return
		}
	}
}

// consume relays stream increments into the assistant message until
// completion or error.
func (c *Controller) consume(gen int, stream *llm.Stream) error {
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := c.appendDelta(gen, delta); err != nil {
			return err
		}
	}
}

func (c *Controller) appendDelta(gen int, delta string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.turnGen {
		return errStaleTurn
	}
	if c.assistantID == "" {
		msg := chat.Message{
			ID:          uuid.NewString(),
			Role:        chat.RoleAssistant,
			Content:     delta,
			IsStreaming: true,
		}
		c.assistantID = msg.ID
		c.messages = append(c.messages, msg)
		c.setStateLocked(StateStreaming)
		c.emit(Event{Type: EventMessage, Message: &msg})
		return nil
	}
	last := &c.messages[len(c.messages)-1]
	last.Content += delta
	c.emit(Event{Type: EventDelta, MessageID: c.assistantID, Delta: delta})
	return nil
}

func (c *Controller) finishTurn(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.turnGen {
		return
	}
	if c.assistantID == "" {
		// Completed without any increment: surface an empty reply so
		// the turn still resolves to exactly one assistant message.
		msg := chat.Message{ID: uuid.NewString(), Role: chat.RoleAssistant}
		c.messages = append(c.messages, msg)
		c.emit(Event{Type: EventMessage, Message: &msg})
	}
	c.sealAssistantLocked()
	c.releaseTurnLocked()
	c.setStateLocked(StateIdle)
}

// releaseTurnLocked cancels and drops the finished turn's context.
// Caller holds c.mu.
func (c *Controller) releaseTurnLocked() {
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
}

// retractPartial withdraws the partial assistant message of a failed
// attempt so the re-issued request cannot duplicate it.
func (c *Controller) retractPartial(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.turnGen || c.assistantID == "" {
		return
	}
	id := c.assistantID
	c.assistantID = ""
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			break
		}
	}
	c.emit(Event{Type: EventRetract, MessageID: id})
}

// enterRecovering reports the automatic failover retry. Returns false
// when the turn has been superseded.
func (c *Controller) enterRecovering(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.turnGen {
		return false
	}
	c.retryCount++
	c.setStateLocked(StateRecovering)
	c.emit(Event{Type: EventNotice, Notice: noticeRecovering, RetryCount: c.retryCount})
	return true
}

// enterFallback exhausts failover: the session answers locally and the
// user keeps an explicit retry.
func (c *Controller) enterFallback(gen int, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.turnGen {
		return
	}
	notice := noticeFallbackGeneric
	var apiErr *llm.APIError
	if errors.As(cause, &apiErr) {
		notice = apiErr.Message
	}
	c.emit(Event{Type: EventNotice, Notice: noticeFallbackPrefix + notice, RetryCount: c.retryCount})

	msg := chat.Message{
		ID:      uuid.NewString(),
		Role:    chat.RoleAssistant,
		Content: c.fallback.Respond(),
	}
	c.messages = append(c.messages, msg)
	c.releaseTurnLocked()
	c.setStateLocked(StateFallbackActive)
	c.emit(Event{Type: EventMessage, Message: &msg})
}

// sealAssistantLocked clears the streaming flag on the in-progress
// assistant message, if any. Caller holds c.mu.
func (c *Controller) sealAssistantLocked() {
	if c.assistantID == "" {
		return
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == c.assistantID {
			c.messages[i].IsStreaming = false
			break
		}
	}
	c.assistantID = ""
}

// setStateLocked transitions and emits. Caller holds c.mu.
func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	route, _ := c.policy.Active()
	c.emit(Event{Type: EventState, State: next, Route: route, RetryCount: c.retryCount})
}

// emit fans an event out to subscribers without blocking; a slow
// subscriber drops events rather than stalling the session. Caller
// holds c.mu.
func (c *Controller) emit(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
