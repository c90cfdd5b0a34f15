package control

import (
	"context"
	"math"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archiveerr"
	"archiveclient/pkg/telemetry"
	"archiveclient/pkg/transport"
)

// ReplayMergeState is one of the seven states ReplayMerge cycles through
// (spec.md §3; the state named RESOLVE_REPLAY_PORT in that enumeration has
// no corresponding transition in the original implementation or in the
// §4.6 state table and is not modeled — see DESIGN.md).
type ReplayMergeState int

const (
	StateAwaitInitialRecordingPosition ReplayMergeState = iota
	StateAwaitReplay
	StateAwaitCatchUp
	StateAwaitCurrentRecordingPosition
	StateAwaitStopReplay
	StateMerged
	StateClosed
)

func (s ReplayMergeState) String() string {
	switch s {
	case StateAwaitInitialRecordingPosition:
		return "AWAIT_INITIAL_RECORDING_POSITION"
	case StateAwaitReplay:
		return "AWAIT_REPLAY"
	case StateAwaitCatchUp:
		return "AWAIT_CATCH_UP"
	case StateAwaitCurrentRecordingPosition:
		return "AWAIT_CURRENT_RECORDING_POSITION"
	case StateAwaitStopReplay:
		return "AWAIT_STOP_REPLAY"
	case StateMerged:
		return "MERGED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DefaultLiveAddThreshold and DefaultReplayRemoveThreshold are fractions of
// the replay image's term-buffer length (spec.md §4.6): the live
// destination is added once the image is within 1/16 of a term of the
// target position; the replay is stopped once it is within 1/4 of a term.
const (
	DefaultLiveAddThreshold     = 1.0 / 16.0
	DefaultReplayRemoveThreshold = 1.0 / 4.0
)

// ReplayMerge stitches a historical replay onto a live subscription
// transparently to the consumer. There is no teacher analogue for this
// state machine; its shape follows the original ReplayMerge.cpp's doWork
// dispatch, restated as an externally-polled struct in this package's
// cooperative-polling idiom.
type ReplayMerge struct {
	archive         *AeronArchive
	subscription    transport.Subscription
	replayChannel   string
	replayDestination string
	liveDestination string
	recordingID     int64
	startPosition   int64

	liveAddThreshold     float64
	replayRemoveThreshold float64

	state                ReplayMergeState
	activeCorrelationID  int64
	image                transport.Image
	isReplayActive       bool
	replaySessionID      int64
	isLiveAdded          bool
	initialMaxPosition   int64
	nextTargetPosition   int64
}

// NewReplayMerge validates that subscription is in manual control mode,
// immediately adds the replay destination, and returns a driver in its
// initial state (spec.md §4.6).
func NewReplayMerge(
	archive *AeronArchive,
	subscription transport.Subscription,
	replayChannel string,
	replayDestination string,
	liveDestination string,
	recordingID int64,
	startPosition int64,
) (*ReplayMerge, error) {
	if !transport.IsManualControlMode(subscription.Channel()) {
		return nil, archiveerr.New("replay-merge subscription channel must declare control-mode=manual")
	}

	rm := &ReplayMerge{
		archive:               archive,
		subscription:          subscription,
		replayChannel:         replayChannel,
		replayDestination:     replayDestination,
		liveDestination:       liveDestination,
		recordingID:           recordingID,
		startPosition:         startPosition,
		liveAddThreshold:      DefaultLiveAddThreshold,
		replayRemoveThreshold: DefaultReplayRemoveThreshold,
		state:                 StateAwaitInitialRecordingPosition,
		activeCorrelationID:   aeronproto.NullValue,
		replaySessionID:       aeronproto.NullValue,
	}
	if err := subscription.AddDestination(replayDestination); err != nil {
		return nil, err
	}
	return rm, nil
}

// SetThresholds overrides the default add/remove thresholds (fractions of
// a term-buffer length).
func (m *ReplayMerge) SetThresholds(liveAddThreshold, replayRemoveThreshold float64) {
	m.liveAddThreshold = liveAddThreshold
	m.replayRemoveThreshold = replayRemoveThreshold
}

func (m *ReplayMerge) State() ReplayMergeState { return m.state }
func (m *ReplayMerge) IsMerged() bool          { return m.state == StateMerged }
func (m *ReplayMerge) IsClosed() bool          { return m.state == StateClosed }

// pollForResponse is the non-blocking correlation check used inside the
// merge: true iff a complete response for the active correlation id has
// arrived. Errors throw immediately (spec.md §4.6).
func (m *ReplayMerge) pollForResponse() (bool, error) {
	poller := m.archive.responsePoller
	if _, err := poller.Poll(); err != nil {
		return false, err
	}
	if !poller.IsPollComplete() {
		return false, nil
	}
	if poller.ControlSessionID() != m.archive.ControlSessionID() || poller.CorrelationID() != m.activeCorrelationID {
		return false, nil
	}
	if poller.IsCodeError() {
		return false, archiveProtocolErrorFromPoller(poller)
	}
	return true, nil
}

// DoWork steps the state machine once and returns the number of work units
// performed, so an embedder can decide whether to idle.
func (m *ReplayMerge) DoWork() (int, error) {
	m.archive.mu.Lock()
	defer m.archive.mu.Unlock()

	before := m.state
	var work int
	var err error
	switch m.state {
	case StateAwaitInitialRecordingPosition:
		work, err = m.awaitInitialRecordingPosition()
	case StateAwaitReplay:
		work, err = m.awaitReplay()
	case StateAwaitCatchUp:
		work, err = m.awaitCatchUp()
	case StateAwaitCurrentRecordingPosition:
		work, err = m.awaitCurrentRecordingPosition()
	case StateAwaitStopReplay:
		work, err = m.awaitStopReplay()
	}
	if m.state != before {
		telemetry.RecordMergeTransition(context.Background(), before.String(), m.state.String())
	}
	return work, err
}

func (m *ReplayMerge) awaitInitialRecordingPosition() (int, error) {
	work := 0
	if m.activeCorrelationID == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.GetRecordingPosition(m.archive.controlSessionID, correlationID, m.recordingID)
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
			work++
		}
		return work, nil
	}

	complete, err := m.pollForResponse()
	if err != nil {
		return work, err
	}
	if !complete {
		return work, nil
	}
	work++
	target := m.archive.responsePoller.RelevantID()
	if target == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.GetStopPosition(m.archive.controlSessionID, correlationID, m.recordingID)
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
		}
		return work, nil
	}
	m.nextTargetPosition = target
	m.initialMaxPosition = target
	m.activeCorrelationID = aeronproto.NullValue
	m.state = StateAwaitReplay
	return work, nil
}

func (m *ReplayMerge) awaitReplay() (int, error) {
	work := 0
	if m.activeCorrelationID == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.Replay(
			m.archive.controlSessionID, correlationID, m.recordingID, m.startPosition, math.MaxInt64,
			m.replayChannel, m.subscription.StreamID())
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
			work++
		}
		return work, nil
	}

	complete, err := m.pollForResponse()
	if err != nil {
		return work, err
	}
	if !complete {
		return work, nil
	}
	m.isReplayActive = true
	m.replaySessionID = m.archive.responsePoller.RelevantID()
	m.activeCorrelationID = aeronproto.NullValue
	m.state = StateAwaitCatchUp
	return work + 1, nil
}

func (m *ReplayMerge) awaitCatchUp() (int, error) {
	work := 0
	if m.image == nil && m.subscription.IsConnected() {
		if img, ok := m.subscription.ImageBySessionID(int32(m.replaySessionID)); ok {
			m.image = img
		}
	}
	if m.image != nil && m.image.Position() >= m.nextTargetPosition {
		m.activeCorrelationID = aeronproto.NullValue
		m.state = StateAwaitCurrentRecordingPosition
		work++
	}
	return work, nil
}

func (m *ReplayMerge) awaitCurrentRecordingPosition() (int, error) {
	work := 0
	if m.activeCorrelationID == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.GetRecordingPosition(m.archive.controlSessionID, correlationID, m.recordingID)
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
			work++
		}
		return work, nil
	}

	complete, err := m.pollForResponse()
	if err != nil {
		return work, err
	}
	if !complete {
		return work, nil
	}
	work++

	target := m.archive.responsePoller.RelevantID()
	if target == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.GetRecordingPosition(m.archive.controlSessionID, correlationID, m.recordingID)
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
		}
		return work, nil
	}

	m.nextTargetPosition = target
	nextState := StateAwaitCatchUp
	if m.image != nil {
		position := m.image.Position()
		if m.shouldAddLiveDestination(position) {
			if err := m.subscription.AddDestination(m.liveDestination); err != nil {
				return work, err
			}
			m.isLiveAdded = true
		} else if m.shouldStopAndRemoveReplay(position) {
			nextState = StateAwaitStopReplay
		}
	}
	m.activeCorrelationID = aeronproto.NullValue
	m.state = nextState
	return work, nil
}

func (m *ReplayMerge) awaitStopReplay() (int, error) {
	work := 0
	if m.activeCorrelationID == aeronproto.NullValue {
		correlationID := m.archive.correlationIDs.Next()
		ok, err := m.archive.proxy.StopReplay(m.archive.controlSessionID, correlationID, m.replaySessionID)
		if err != nil {
			return work, err
		}
		if ok {
			m.activeCorrelationID = correlationID
			work++
		}
		return work, nil
	}

	complete, err := m.pollForResponse()
	if err != nil {
		return work, err
	}
	if !complete {
		return work, nil
	}
	m.isReplayActive = false
	m.replaySessionID = aeronproto.NullValue
	m.activeCorrelationID = aeronproto.NullValue
	if err := m.subscription.RemoveDestination(m.replayDestination); err != nil {
		return work, err
	}
	m.state = StateMerged
	return work + 1, nil
}

func (m *ReplayMerge) shouldAddLiveDestination(position int64) bool {
	if m.isLiveAdded || m.image == nil {
		return false
	}
	window := int64(float64(m.image.TermBufferLength()) * m.liveAddThreshold)
	return m.nextTargetPosition-position <= window
}

func (m *ReplayMerge) shouldStopAndRemoveReplay(position int64) bool {
	if !m.isLiveAdded || m.image == nil {
		return false
	}
	window := int64(float64(m.image.TermBufferLength()) * m.replayRemoveThreshold)
	return m.nextTargetPosition-position <= window
}

// Close disposes the merge: fixes the original implementation's inverted
// cleanup guard (DESIGN.md Open Question decision #3) by running cleanup
// whenever the state is not already CLOSED, then transitioning to CLOSED.
func (m *ReplayMerge) Close() error {
	if m.state == StateClosed {
		return nil
	}
	if m.isReplayActive {
		m.isReplayActive = false
		if _, err := m.archive.StopReplay(m.replaySessionID); err != nil {
			m.state = StateClosed
			return err
		}
	}
	if m.state != StateMerged {
		if err := m.subscription.RemoveDestination(m.replayDestination); err != nil {
			m.state = StateClosed
			return err
		}
	}
	m.state = StateClosed
	return nil
}
