// Package room implements the directory of named chat rooms and the
// membership of sessions within them.
package room

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/rvchat/rvserver/internal/core"
	"github.com/rvchat/rvserver/internal/packet"
	"github.com/rvchat/rvserver/internal/session"
)

var (
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrRoomExists    = errors.New("room already exists")
	ErrNameTooLong   = errors.New("room name too long")
	ErrInvalidName   = errors.New("invalid room name")
	ErrDefaultRoom   = errors.New("the default room cannot be destroyed")
	ErrAlreadyMember = errors.New("already in room")
)

// Lookup resolves a session ID to a live session.
type Lookup func(id session.ID) (*session.Session, bool)

// Room is a named set of sessions. Membership is by ID; the sessions
// themselves belong to the server.
type Room struct {
	Name    string
	members []session.ID
}

func (r *Room) add(id session.ID) {
	r.members = append(r.members, id)
}

func (r *Room) remove(id session.ID) {
	for i, m := range r.members {
		if m == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// Directory holds every room, keyed by case-folded name. A session is in at
// most one room at a time.
type Directory struct {
	rooms      map[string]*Room
	memberOf   map[session.ID]*Room
	defaultKey string
	maxNameLen int

	lookup Lookup
	logger logrus.FieldLogger
}

// NewDirectory returns a Directory containing only the default room.
func NewDirectory(defaultRoom string, maxNameLength int, lookup Lookup, logger logrus.FieldLogger) *Directory {
	d := &Directory{
		rooms:      make(map[string]*Room),
		memberOf:   make(map[session.ID]*Room),
		defaultKey: core.Fold(defaultRoom),
		maxNameLen: maxNameLength,
		lookup:     lookup,
		logger:     logger,
	}
	d.rooms[d.defaultKey] = &Room{Name: defaultRoom}
	return d
}

func (d *Directory) get(name string) (*Room, bool) {
	r, ok := d.rooms[core.Fold(name)]
	return r, ok
}

// Default returns the name of the default room.
func (d *Directory) Default() string {
	return d.rooms[d.defaultKey].Name
}

// Exists reports whether a room called name exists, ignoring case.
func (d *Directory) Exists(name string) bool {
	_, ok := d.get(name)
	return ok
}

// Create adds an empty room.
func (d *Directory) Create(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	if d.maxNameLen > 0 && utf8.RuneCountInString(name) > d.maxNameLen {
		return fmt.Errorf("%w: %d characters allowed", ErrNameTooLong, d.maxNameLen)
	}
	if d.Exists(name) {
		return ErrRoomExists
	}
	d.rooms[core.Fold(name)] = &Room{Name: name}
	return nil
}

// Destroy removes a room, moving its members into the default room and
// announcing each move there.
func (d *Directory) Destroy(name string) error {
	r, ok := d.get(name)
	if !ok {
		return ErrRoomNotFound
	}
	def := d.rooms[d.defaultKey]
	if r == def {
		d.logger.Warnf("attempt to destroy the default room %s", def.Name)
		return ErrDefaultRoom
	}

	delete(d.rooms, core.Fold(name))

	members := r.members
	r.members = nil
	for _, id := range members {
		def.add(id)
		d.memberOf[id] = def

		if s, ok := d.lookup(id); ok {
			d.broadcast(def, packet.New(packet.JoinRoom, s.Name, def.Name))
		}
	}
	return nil
}

// Join moves a session into the named room, leaving any room it was in.
func (d *Directory) Join(id session.ID, name string) error {
	r, ok := d.get(name)
	if !ok {
		return ErrRoomNotFound
	}
	if d.memberOf[id] == r {
		return ErrAlreadyMember
	}
	d.Leave(id)
	r.add(id)
	d.memberOf[id] = r
	return nil
}

// Leave removes a session from whichever room it is in.
func (d *Directory) Leave(id session.ID) {
	if r, ok := d.memberOf[id]; ok {
		r.remove(id)
		delete(d.memberOf, id)
	}
}

// RoomOf returns the name of the room a session is in.
func (d *Directory) RoomOf(id session.ID) (string, bool) {
	r, ok := d.memberOf[id]
	if !ok {
		return "", false
	}
	return r.Name, true
}

// Members returns the IDs of the sessions in a room.
func (d *Directory) Members(name string) []session.ID {
	r, ok := d.get(name)
	if !ok {
		return nil
	}
	return append([]session.ID(nil), r.members...)
}

// Names lists every room, the default room first and the rest sorted.
func (d *Directory) Names() []string {
	names := make([]string, 0, len(d.rooms))
	for key, r := range d.rooms {
		if key != d.defaultKey {
			names = append(names, r.Name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return core.Fold(names[i]) < core.Fold(names[j])
	})
	return append([]string{d.Default()}, names...)
}

// Broadcast sends p to every logged-in member of the named room, or of every
// room when name is empty.
func (d *Directory) Broadcast(p *packet.Packet, name string) error {
	if name == "" {
		data := p.Encode()
		for _, r := range d.rooms {
			d.write(r, data)
		}
		return nil
	}

	r, ok := d.get(name)
	if !ok {
		return ErrRoomNotFound
	}
	d.broadcast(r, p)
	return nil
}

func (d *Directory) broadcast(r *Room, p *packet.Packet) {
	d.write(r, p.Encode())
}

func (d *Directory) write(r *Room, data []byte) {
	for _, id := range r.members {
		s, ok := d.lookup(id)
		if !ok || !s.LoggedIn {
			continue
		}
		// A failed write kills the session; the server sweeps it later.
		_ = s.Write(data)
	}
}
