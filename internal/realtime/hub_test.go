package realtime

import (
	"testing"

	"github.com/google/uuid"
)

func drain(conn *Connection) []Event {
	var out []Event
	for {
		select {
		case e := <-conn.Events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestEmitReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub(nil)
	inside := hub.Register(uuid.New())
	outside := hub.Register(uuid.New())

	room := GroupRoom("local", uuid.New())
	hub.Join(inside.ID, room)

	hub.Emit(room, EventLeadApproved, "payload")

	if got := drain(inside); len(got) != 1 || got[0].Name != EventLeadApproved {
		t.Fatalf("room member expected 1 event, got %+v", got)
	}
	if got := drain(outside); len(got) != 0 {
		t.Fatalf("non-member must receive nothing, got %+v", got)
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	conn := hub.Register(uuid.New())
	room := GroupRoom("global", uuid.New())

	hub.Join(conn.ID, room)
	hub.Leave(conn.ID, room)
	hub.Emit(room, EventLeadApproved, nil)

	if got := drain(conn); len(got) != 0 {
		t.Fatalf("expected no delivery after leave, got %+v", got)
	}
	if members := hub.ListMembers(room); len(members) != 0 {
		t.Fatalf("expected empty room, got %v", members)
	}
}

func TestEmitSkipsFullBuffers(t *testing.T) {
	hub := NewHub(nil)
	conn := hub.Register(uuid.New())
	room := UserRoom(conn.UserID)
	hub.Join(conn.ID, room)

	// Fill the buffer and one more; the overflow event is dropped, not
	// blocked on.
	for i := 0; i < cap(conn.Events)+1; i++ {
		hub.Emit(room, EventNotificationPush, i)
	}

	if got := drain(conn); len(got) != cap(conn.Events) {
		t.Fatalf("expected %d buffered events, got %d", cap(conn.Events), len(got))
	}
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	hub := NewHub(nil)
	userID := uuid.New()
	conn := hub.Register(userID)

	roomA := GroupRoom("local", uuid.New())
	roomB := GroupRoom("global", uuid.New())
	hub.Join(conn.ID, roomA)
	hub.Join(conn.ID, roomB)

	hub.Unregister(conn)

	if members := hub.ListMembers(roomA); len(members) != 0 {
		t.Fatalf("expected roomA empty after unregister, got %v", members)
	}
	if members := hub.ListMembers(roomB); len(members) != 0 {
		t.Fatalf("expected roomB empty after unregister, got %v", members)
	}
	if conns := hub.UserConnections(userID); len(conns) != 0 {
		t.Fatalf("expected no live connections, got %v", conns)
	}
	if _, ok := <-conn.Events; ok {
		t.Fatal("expected closed event stream")
	}
}

func TestEmitConcurrentWithUnregister(t *testing.T) {
	hub := NewHub(nil)
	room := GroupRoom("local", uuid.New())

	// Broadcasts racing connection teardown must never send on a closed
	// stream.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Emit(room, EventLeadApproved, i)
		}
	}()

	for i := 0; i < 200; i++ {
		conn := hub.Register(uuid.New())
		hub.Join(conn.ID, room)
		hub.Unregister(conn)
	}
	<-done

	if members := hub.ListMembers(room); len(members) != 0 {
		t.Fatalf("expected empty room after teardown, got %v", members)
	}
}

func TestRoomNamesByScope(t *testing.T) {
	groupID := uuid.New()
	if got := GroupRoom("local", groupID); got != "group:"+groupID.String() {
		t.Fatalf("unexpected local room name %q", got)
	}
	if got := GroupRoom("global", groupID); got != "global-group:"+groupID.String() {
		t.Fatalf("unexpected global room name %q", got)
	}
}
