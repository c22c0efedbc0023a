package client

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/immxrtalbeast/meshcall/internal/domain"
	"github.com/immxrtalbeast/meshcall/lib/logger/sl"
	"github.com/pion/webrtc/v3"
)

// ConnectionNegotiator decides who offers to whom and drives every link
// through its offer/answer states. The participant that joins later always
// sends the offer.
type ConnectionNegotiator struct {
	manager *PeerConnectionManager
	outbox  Outbox
	log     *slog.Logger

	mu        sync.Mutex
	localID   string
	localRole domain.Role
}

func NewConnectionNegotiator(manager *PeerConnectionManager, outbox Outbox, log *slog.Logger) *ConnectionNegotiator {
	if log == nil {
		log = slog.Default()
	}
	return &ConnectionNegotiator{
		manager: manager,
		outbox:  outbox,
		log:     log,
	}
}

func (n *ConnectionNegotiator) LocalID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.localID
}

func (n *ConnectionNegotiator) LocalRole() domain.Role {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.localRole
}

// HandleJoined opens links toward the members already in the room. Video
// participants offer to everyone; chat-only participants offer receive-only
// links to the video members.
func (n *ConnectionNegotiator) HandleJoined(role domain.Role, p domain.JoinedPayload) {
	n.mu.Lock()
	n.localID = p.ID
	n.localRole = role
	n.mu.Unlock()

	targets := make([]string, 0, len(p.VideoUsers)+len(p.ChatUsers))
	for _, u := range p.VideoUsers {
		targets = append(targets, u.ID)
	}
	if role == domain.RoleVideo {
		for _, u := range p.ChatUsers {
			targets = append(targets, u.ID)
		}
	}

	for _, id := range targets {
		if id == p.ID {
			continue
		}
		n.initiate(id)
	}
}

// HandleMemberJoined prepares a responder link for a new video member when
// the local participant is on video too. In every other case the newcomer
// offers on its own.
func (n *ConnectionNegotiator) HandleMemberJoined(role domain.Role, p domain.MembershipPayload) {
	n.mu.Lock()
	localID, localRole := n.localID, n.localRole
	n.mu.Unlock()

	if p.ID == localID || role != domain.RoleVideo || localRole != domain.RoleVideo {
		return
	}

	link, _, err := n.manager.GetOrCreate(p.ID)
	if err != nil {
		n.log.Error("failed to prepare link", slog.String("peer", p.ID), sl.Err(err))
		return
	}

	link.mu.Lock()
	if link.state == StateIdle && link.role == RoleUnassigned {
		link.role = RoleResponder
	}
	link.mu.Unlock()
}

func (n *ConnectionNegotiator) HandleMemberLeft(p domain.MembershipPayload) {
	n.manager.Close(p.ID)
}

// HandleOffer answers a remote offer. The link is created if needed since
// the local side may not know the offerer yet.
func (n *ConnectionNegotiator) HandleOffer(d domain.SignalDelivery) {
	const op = "answer offer"
	log := n.log.With(slog.String("peer", d.From))

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(d.Payload, &offer); err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError(op, d.From, err)))
		return
	}

	link, _, err := n.manager.GetOrCreate(d.From)
	if err != nil {
		log.Error("negotiation failed", sl.Err(negotiationError(op, d.From, err)))
		return
	}

	link.mu.Lock()
	defer link.mu.Unlock()

	if link.state != StateIdle {
		log.Warn("negotiation failed", sl.Err(negotiationError(op, d.From,
			fmt.Errorf("offer received in state %s", link.state))))
		return
	}
	link.role = RoleResponder

	flushErrs, err := link.setRemoteDescriptionLocked(offer)
	if err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError("set remote offer", d.From, err)))
		return
	}
	n.logCandidateErrors(d.From, flushErrs)
	link.state = StateAnswering

	answer, err := link.transport.CreateAnswer()
	if err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError("create answer", d.From, err)))
		return
	}
	if err := sendSignal(n.outbox, domain.SignalAnswer, d.From, answer); err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError("send answer", d.From, err)))
		return
	}
	link.state = StateConnected
	log.Debug("answer sent")
}

func (n *ConnectionNegotiator) HandleAnswer(d domain.SignalDelivery) {
	const op = "apply answer"
	log := n.log.With(slog.String("peer", d.From))

	link, ok := n.manager.Link(d.From)
	if !ok {
		log.Debug("answer for unknown link dropped")
		return
	}

	var answer webrtc.SessionDescription
	if err := json.Unmarshal(d.Payload, &answer); err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError(op, d.From, err)))
		return
	}

	link.mu.Lock()
	defer link.mu.Unlock()

	if link.state != StateOffering {
		log.Warn("negotiation failed", sl.Err(negotiationError(op, d.From,
			fmt.Errorf("answer received in state %s", link.state))))
		return
	}

	flushErrs, err := link.setRemoteDescriptionLocked(answer)
	if err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError(op, d.From, err)))
		return
	}
	n.logCandidateErrors(d.From, flushErrs)
	link.state = StateConnected
	log.Debug("answer applied")
}

// HandleCandidate applies a remote candidate, or queues it while the remote
// description is not set. Candidates for unknown links are dropped.
func (n *ConnectionNegotiator) HandleCandidate(d domain.SignalDelivery) {
	log := n.log.With(slog.String("peer", d.From))

	link, ok := n.manager.Link(d.From)
	if !ok {
		log.Debug("candidate for unknown link dropped")
		return
	}

	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(d.Payload, &candidate); err != nil {
		log.Debug("malformed candidate dropped", sl.Err(err))
		return
	}

	link.mu.Lock()
	defer link.mu.Unlock()

	if link.state == StateClosed {
		return
	}
	if err := link.applyRemoteCandidateLocked(candidate); err != nil {
		log.Debug("failed to add candidate", sl.Err(err))
	}
}

// Reset forgets the local identity after leaving a room.
func (n *ConnectionNegotiator) Reset() {
	n.mu.Lock()
	n.localID = ""
	n.localRole = ""
	n.mu.Unlock()
}

func (n *ConnectionNegotiator) initiate(remoteID string) {
	log := n.log.With(slog.String("peer", remoteID))

	link, _, err := n.manager.GetOrCreate(remoteID)
	if err != nil {
		log.Error("negotiation failed", sl.Err(negotiationError("create link", remoteID, err)))
		return
	}

	link.mu.Lock()
	defer link.mu.Unlock()

	if link.state != StateIdle {
		log.Debug("link already negotiating", slog.String("state", link.state.String()))
		return
	}
	link.role = RoleInitiator

	offer, err := link.transport.CreateOffer()
	if err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError("create offer", remoteID, err)))
		return
	}
	if err := sendSignal(n.outbox, domain.SignalOffer, remoteID, offer); err != nil {
		log.Warn("negotiation failed", sl.Err(negotiationError("send offer", remoteID, err)))
		return
	}
	link.state = StateOffering
	log.Debug("offer sent")
}

func (n *ConnectionNegotiator) logCandidateErrors(peer string, errs []error) {
	for _, err := range errs {
		n.log.Debug("failed to add queued candidate", slog.String("peer", peer), sl.Err(err))
	}
}
