package realtime

import (
	"context"
	"sort"

	grouprepo "tradelink_backend/internal/groups/repository"
	userrepo "tradelink_backend/internal/users/repository"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

// GroupLister is the slice of the groups module the realtime layer needs to
// auto-join a user's rooms at connect time.
type GroupLister interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]grouprepo.Group, error)
}

// PresenceDirectory bulk-resolves user IDs to presence triples.
type PresenceDirectory interface {
	GetPresenceInfo(ctx context.Context, ids []uuid.UUID) ([]userrepo.PresenceMember, error)
}

// Service sits on top of the Broadcaster: it owns room naming, the
// connect-time auto-join, and presence snapshot recomputation. Broadcast
// failures never reach HTTP callers.
type Service struct {
	hub    *Hub
	bc     Broadcaster
	groups GroupLister
	users  PresenceDirectory
	log    *logger.Logger
}

// NewService creates the realtime service.
func NewService(hub *Hub, groups GroupLister, users PresenceDirectory, log *logger.Logger) *Service {
	return &Service{hub: hub, bc: hub, groups: groups, users: users, log: log}
}

// Connect registers a stream for the user and subscribes it to the user's
// own room plus every room of a group they belong to. Each group room's
// presence is rebroadcast after the join.
func (s *Service) Connect(ctx context.Context, userID uuid.UUID) (*Connection, error) {
	groups, err := s.groups.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	conn := s.hub.Register(userID)
	s.bc.Join(conn.ID, UserRoom(userID))
	for _, g := range groups {
		room := GroupRoom(g.Scope, g.ID)
		s.bc.Join(conn.ID, room)
		s.broadcastPresence(ctx, room)
	}

	return conn, nil
}

// Disconnect drops the stream and rebroadcasts presence for the rooms it was
// in.
func (s *Service) Disconnect(ctx context.Context, conn *Connection) {
	rooms := s.hub.ConnectionRooms(conn.ID)
	s.hub.Unregister(conn)
	for _, room := range rooms {
		if room == UserRoom(conn.UserID) {
			continue
		}
		s.broadcastPresence(ctx, room)
	}
}

// PublishApprovedLead emits the approved lead to its group room. Best-effort,
// at-most-once: subscribers offline at publish time catch up via the feed.
func (s *Service) PublishApprovedLead(scope string, groupID uuid.UUID, payload interface{}) {
	s.bc.Emit(GroupRoom(scope, groupID), EventLeadApproved, payload)
}

// PublishNotification emits a notification to the user's room.
func (s *Service) PublishNotification(userID uuid.UUID, payload interface{}) {
	s.bc.Emit(UserRoom(userID), EventNotificationPush, payload)
}

// OnMembershipChange moves the user's live connections in or out of the
// group room, announces the change, then recomputes and rebroadcasts the
// room's presence snapshot. The snapshot always follows the room update so
// stale membership is never published.
func (s *Service) OnMembershipChange(ctx context.Context, userID, groupID uuid.UUID, scope string, joined bool) {
	room := GroupRoom(scope, groupID)

	for _, connID := range s.bc.UserConnections(userID) {
		if joined {
			s.bc.Join(connID, room)
		} else {
			s.bc.Leave(connID, room)
		}
	}

	s.bc.Emit(room, EventMembershipChanged, map[string]interface{}{
		"userId":  userID,
		"groupId": groupID,
		"joined":  joined,
	})
	s.broadcastPresence(ctx, room)
}

// broadcastPresence enumerates the room's connections, resolves them to
// deduplicated {userId, name, role} triples, and emits the list as one
// snapshot event.
func (s *Service) broadcastPresence(ctx context.Context, room string) {
	connIDs := s.bc.ListMembers(room)

	seen := make(map[uuid.UUID]bool)
	userIDs := make([]uuid.UUID, 0, len(connIDs))
	for _, connID := range connIDs {
		userID, ok := s.bc.UserOf(connID)
		if !ok || seen[userID] {
			continue
		}
		seen[userID] = true
		userIDs = append(userIDs, userID)
	}

	members, err := s.users.GetPresenceInfo(ctx, userIDs)
	if err != nil {
		if s.log != nil {
			s.log.Error("presence snapshot resolution failed", "room", room, "error", err)
		}
		return
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].UserID.String() < members[j].UserID.String()
	})

	s.bc.Emit(room, EventPresenceChanged, map[string]interface{}{
		"room":    room,
		"members": members,
	})
}
