// Package faketransport is an in-memory stand-in for the Aeron client used
// only by tests: it implements transport.Publication/Subscription/Image with
// buffered slices instead of a media driver, modeled on the teacher's
// test/mockss channel-fed fake peer.
package faketransport

import (
	"context"
	"fmt"
	"sync"

	"archiveclient/pkg/transport"
)

// Publication records every offered frame and can be told to fail the next
// N offers with a chosen OfferResult, so a test can exercise the proxy's
// retry-until-fatal policy deterministically.
type Publication struct {
	mu        sync.Mutex
	channel   string
	sessionID int32
	streamID  int32
	connected bool
	closed    bool
	position  int64
	frames    [][]byte
	failNext  []transport.OfferResult
}

func NewPublication(channel string, sessionID, streamID int32) *Publication {
	return &Publication{channel: channel, sessionID: sessionID, streamID: streamID, connected: true}
}

// FailNextOffers queues sentinel results to return, in order, before offers
// start succeeding again.
func (p *Publication) FailNextOffers(results ...transport.OfferResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = append(p.failNext, results...)
}

func (p *Publication) SetConnected(connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = connected
}

func (p *Publication) Offer(buf []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return int64(transport.PublicationClosed), nil
	}
	if len(p.failNext) > 0 {
		r := p.failNext[0]
		p.failNext = p.failNext[1:]
		return int64(r), nil
	}
	frame := make([]byte, len(buf))
	copy(frame, buf)
	p.frames = append(p.frames, frame)
	p.position += int64(len(buf))
	return p.position, nil
}

func (p *Publication) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && !p.closed
}

func (p *Publication) Channel() string  { return p.channel }
func (p *Publication) SessionID() int32 { return p.sessionID }
func (p *Publication) StreamID() int32  { return p.streamID }

func (p *Publication) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Frames returns every frame offered so far, for assertions.
func (p *Publication) Frames() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.frames))
	copy(out, p.frames)
	return out
}

// Image is a fake source image whose position only changes when a test calls
// SetPosition.
type Image struct {
	sessionID  int32
	position   int64
	termLength int32
	endOfSteam bool
	closed     bool
}

func NewImage(sessionID int32, position int64, termLength int32) *Image {
	return &Image{sessionID: sessionID, position: position, termLength: termLength}
}

func (i *Image) SessionID() int32        { return i.sessionID }
func (i *Image) Position() int64         { return i.position }
func (i *Image) SetPosition(pos int64)   { i.position = pos }
func (i *Image) TermBufferLength() int32 { return i.termLength }
func (i *Image) IsEndOfStream() bool     { return i.endOfSteam }
func (i *Image) SetEndOfStream(v bool)   { i.endOfSteam = v }
func (i *Image) IsClosed() bool          { return i.closed }
func (i *Image) SetClosed(v bool)        { i.closed = v }

// Subscription is fed canned fragments and served out via Poll/ControlledPoll
// in FIFO order, at most fragmentLimit per call, the way a real Aeron poll
// drains a bounded number of fragments per invocation.
type Subscription struct {
	mu           sync.Mutex
	channel      string
	streamID     int32
	pending      [][]byte
	images       map[int32]transport.Image
	connected    bool
	closed       bool
	destinations []string
}

func NewSubscription(channel string, streamID int32) *Subscription {
	return &Subscription{channel: channel, streamID: streamID, images: make(map[int32]transport.Image), connected: true}
}

func (s *Subscription) Channel() string  { return s.channel }
func (s *Subscription) StreamID() int32  { return s.streamID }

// AddDestination and RemoveDestination record every call for assertions
// (tests count invocations to verify the "at most once" merge invariant).
func (s *Subscription) AddDestination(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations = append(s.destinations, "+"+channel)
	return nil
}

func (s *Subscription) RemoveDestination(channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destinations = append(s.destinations, "-"+channel)
	return nil
}

// DestinationLog returns every AddDestination/RemoveDestination call in
// order, prefixed with + or -.
func (s *Subscription) DestinationLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.destinations))
	copy(out, s.destinations)
	return out
}

// Enqueue appends a fragment to be delivered on a future poll.
func (s *Subscription) Enqueue(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := make([]byte, len(frame))
	copy(f, frame)
	s.pending = append(s.pending, f)
}

func (s *Subscription) AddImage(img transport.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.SessionID()] = img
}

func (s *Subscription) Poll(handler transport.FragmentHandler, fragmentLimit int) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("faketransport: subscription closed")
	}
	n := fragmentLimit
	if n > len(s.pending) {
		n = len(s.pending)
	}
	frames := s.pending[:n]
	s.pending = s.pending[n:]
	s.mu.Unlock()

	for _, f := range frames {
		handler(f, transport.Header{})
	}
	return len(frames), nil
}

func (s *Subscription) ControlledPoll(handler transport.ControlledFragmentHandler, fragmentLimit int) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, fmt.Errorf("faketransport: subscription closed")
	}
	n := fragmentLimit
	if n > len(s.pending) {
		n = len(s.pending)
	}
	frames := s.pending[:n]
	s.mu.Unlock()

	consumed := 0
	for _, f := range frames {
		action := handler(f, transport.Header{})
		switch action {
		case transport.ActionAbort:
			s.mu.Lock()
			s.pending = s.pending[consumed:]
			s.mu.Unlock()
			return consumed, nil
		case transport.ActionCommit, transport.ActionContinue:
			consumed++
		case transport.ActionBreak:
			consumed++
			s.mu.Lock()
			s.pending = s.pending[consumed:]
			s.mu.Unlock()
			return consumed, nil
		}
	}
	s.mu.Lock()
	s.pending = s.pending[consumed:]
	s.mu.Unlock()
	return consumed, nil
}

func (s *Subscription) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && !s.closed
}

func (s *Subscription) ImageBySessionID(sessionID int32) (transport.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[sessionID]
	return img, ok
}

func (s *Subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CountersReader is a fixed lookup table of counter key/value/label triples.
type CountersReader struct {
	mu       sync.Mutex
	counters map[int32]counterEntry
	nextID   int32
}

type counterEntry struct {
	typeID int32
	keyBuf []byte
	value  int64
	label  string
}

func NewCountersReader() *CountersReader {
	return &CountersReader{counters: make(map[int32]counterEntry)}
}

// AddCounter registers a counter and returns its id.
func (c *CountersReader) AddCounter(typeID int32, keyBuf []byte, value int64, label string) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.counters[id] = counterEntry{typeID: typeID, keyBuf: keyBuf, value: value, label: label}
	return id
}

func (c *CountersReader) SetCounterValue(counterID int32, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.counters[counterID]
	e.value = value
	c.counters[counterID] = e
}

func (c *CountersReader) FindCounter(typeID int32, matches func(keyBuf []byte) bool) (int32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.counters {
		if e.typeID == typeID && matches(e.keyBuf) {
			return id, true
		}
	}
	return 0, false
}

func (c *CountersReader) CounterValue(counterID int32) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[counterID].value
}

func (c *CountersReader) CounterLabel(counterID int32) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[counterID].label
}

// Aeron wires the above fakes behind the transport.Aeron contract.
type Aeron struct {
	mu            sync.Mutex
	publications  map[string]*Publication
	subscriptions map[string]*Subscription
	counters      *CountersReader
	nextSessionID int32
}

func NewAeron() *Aeron {
	return &Aeron{
		publications:  make(map[string]*Publication),
		subscriptions: make(map[string]*Subscription),
		counters:      NewCountersReader(),
	}
}

func key(channel string, streamID int32) string {
	return fmt.Sprintf("%s#%d", channel, streamID)
}

func (a *Aeron) AddPublication(_ context.Context, channel string, streamID int32) (transport.Publication, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextSessionID++
	pub := NewPublication(channel, a.nextSessionID, streamID)
	a.publications[key(channel, streamID)] = pub
	return pub, nil
}

func (a *Aeron) AddExclusivePublication(ctx context.Context, channel string, streamID int32) (transport.Publication, error) {
	return a.AddPublication(ctx, channel, streamID)
}

func (a *Aeron) AddSubscription(_ context.Context, channel string, streamID int32) (transport.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sub := NewSubscription(channel, streamID)
	a.subscriptions[key(channel, streamID)] = sub
	return sub, nil
}

func (a *Aeron) CountersReader() transport.CountersReader { return a.counters }

func (a *Aeron) Close() error { return nil }

// PublicationAt returns the fake publication created for channel/streamID,
// for tests that need to enqueue failures or inspect offered frames.
func (a *Aeron) PublicationAt(channel string, streamID int32) (*Publication, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.publications[key(channel, streamID)]
	return p, ok
}

// SubscriptionAt returns the fake subscription created for channel/streamID,
// for tests that need to enqueue canned response fragments.
func (a *Aeron) SubscriptionAt(channel string, streamID int32) (*Subscription, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.subscriptions[key(channel, streamID)]
	return s, ok
}
