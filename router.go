package roomcast

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

// Built-in structural verbs. Everything else passes through to business
// logic.
const (
	verbAuth  = "auth"
	verbJoin  = "join"
	verbLeave = "leave"
)

// handleData is the router entry point for one inbound frame. No error
// here is fatal: the connection stays open and usable after any bad frame.
func (s *Server) handleData(conn *Conn, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		// Nothing to key an error frame to; log and drop.
		s.metrics.IncrementFrameErrors("")
		s.log.Warn("dropping malformed frame",
			zap.String("connID", conn.ID()),
			zap.Error(err))
		return
	}

	if frame.Type == "" {
		s.sendErr(conn, "", ErrMissingType)
		return
	}

	s.metrics.IncrementFrames(frame.Type)

	switch frame.Type {
	case verbAuth:
		s.handleAuth(conn, frame)
	case verbJoin:
		s.handleJoin(conn, frame)
	case verbLeave:
		s.handleLeave(conn, frame)
	default:
		s.handlePassthrough(conn, frame)
	}
}

// handleAuth resolves the "auth" verb: look the claimed user up, validate
// the presented key against the user's derived key, and promote the
// connection.
func (s *Server) handleAuth(conn *Conn, frame *Frame) {
	var args authArgs
	if frame.Args != nil {
		if err := json.Unmarshal(frame.Args, &args); err != nil {
			s.sendErr(conn, verbAuth, ErrMalformedFrame)
			return
		}
	}
	if args.ID == "" || args.Key == "" {
		s.sendErr(conn, verbAuth, ErrMissingArgument)
		return
	}

	if conn.Authenticated() {
		// One-way state machine: a connection authenticates at most once.
		if conn.User().ID() == args.ID {
			s.sendAck(conn, verbAuth, nil)
			return
		}
		s.sendErr(conn, verbAuth, ErrAlreadyAuthenticated)
		return
	}

	user, err := s.dir.Lookup(conn.ctx, args.ID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			s.log.Warn("auth failed: unknown user",
				zap.String("connID", conn.ID()),
				zap.String("userID", args.ID))
			s.sendErr(conn, verbAuth, ErrUnknownUser)
			return
		}
		s.log.Error("auth failed: directory lookup",
			zap.String("connID", conn.ID()),
			zap.String("userID", args.ID),
			zap.Error(err))
		s.sendErr(conn, verbAuth, ErrLookupFailed)
		return
	}

	if !user.ValidateAuthKey(args.Key) {
		s.log.Warn("auth failed: invalid key",
			zap.String("connID", conn.ID()),
			zap.String("userID", args.ID))
		s.sendErr(conn, verbAuth, ErrInvalidKey)
		return
	}

	conn.promote(user)
	first := s.members.addUserConn(user, conn)

	s.log.Info("connection authenticated",
		zap.String("connID", conn.ID()),
		zap.String("userID", user.ID()),
		zap.Bool("firstForUser", first))

	s.events.emitAuth(AuthEvent{Conn: conn, FirstForUser: first})
	s.sendAck(conn, verbAuth, nil)
}

// handleJoin resolves the "join" verb. The channel authorization check runs
// on its own goroutine so a slow permission store never blocks other
// connections; membership is only mutated after the check resolves and the
// connection is confirmed still open.
func (s *Server) handleJoin(conn *Conn, frame *Frame) {
	if !conn.Authenticated() {
		s.sendErr(conn, verbJoin, ErrNotAuthenticated)
		return
	}

	roomID, ok := s.roomArg(conn, verbJoin, frame)
	if !ok {
		return
	}

	channel := ChannelOf(roomID)
	authFn, registered := s.channels.lookup(channel)
	if !registered {
		s.log.Warn("join failed: unknown channel",
			zap.String("connID", conn.ID()),
			zap.String("roomID", roomID),
			zap.String("channel", channel))
		s.sendErr(conn, verbJoin, ErrUnknownChannel)
		return
	}

	user := conn.User()
	go func() {
		authorized, err := authFn(conn.ctx, user, roomID)
		if err != nil {
			s.log.Error("join failed: channel authorization",
				zap.String("connID", conn.ID()),
				zap.String("roomID", roomID),
				zap.Error(err))
			s.sendErr(conn, verbJoin, ErrAuthorizationFailed)
			return
		}
		if !authorized {
			s.log.Warn("join denied",
				zap.String("connID", conn.ID()),
				zap.String("userID", user.ID()),
				zap.String("roomID", roomID))
			s.sendErr(conn, verbJoin, ErrPermissionDenied)
			return
		}

		// The connection may close while the check is pending. Membership
		// re-checks liveness inside its own critical section, so a late
		// completion can never land after the disconnect cleanup.
		res, ok := s.members.join(conn, roomID)
		if !ok {
			return
		}
		s.metrics.SetRoomCount(s.members.roomCount())

		s.events.emitJoin(JoinEvent{
			Conn:            conn,
			RoomID:          roomID,
			UserFirstInRoom: res.userFirstInRoom,
			RoomFirst:       res.roomFirst,
		})
		s.sendAck(conn, verbJoin, joinAckArgs{
			ID:        roomID,
			UserFirst: res.userFirstInRoom,
			RoomFirst: res.roomFirst,
		})
	}()
}

// handleLeave resolves the "leave" verb. Leaving a room the connection is
// not in still acks, with both flags false.
func (s *Server) handleLeave(conn *Conn, frame *Frame) {
	if !conn.Authenticated() {
		s.sendErr(conn, verbLeave, ErrNotAuthenticated)
		return
	}

	roomID, ok := s.roomArg(conn, verbLeave, frame)
	if !ok {
		return
	}

	res := s.members.leave(conn, roomID)
	s.metrics.SetRoomCount(s.members.roomCount())

	if res.removed {
		s.events.emitLeave(LeaveEvent{
			Conn:     conn,
			RoomID:   roomID,
			UserLast: res.userLast,
			RoomLast: res.roomLast,
		})
	}
	s.sendAck(conn, verbLeave, leaveAckArgs{
		ID:       roomID,
		UserLast: res.userLast,
		RoomLast: res.roomLast,
	})
}

// handlePassthrough re-emits a business verb for external listeners. The
// router has no opinion on its semantics.
func (s *Server) handlePassthrough(conn *Conn, frame *Frame) {
	if !conn.Authenticated() {
		s.sendErr(conn, frame.Type, ErrNotAuthenticated)
		return
	}

	s.events.emitVerb(VerbEvent{
		Conn: conn,
		Verb: frame.Type,
		Args: frame.Args,
	})
}

// roomArg extracts the required "id" argument of join/leave.
func (s *Server) roomArg(conn *Conn, verb string, frame *Frame) (string, bool) {
	var args roomArgs
	if frame.Args != nil {
		if err := json.Unmarshal(frame.Args, &args); err != nil {
			s.sendErr(conn, verb, ErrMalformedFrame)
			return "", false
		}
	}
	if args.ID == "" {
		s.sendErr(conn, verb, ErrMissingArgument)
		return "", false
	}
	return args.ID, true
}

// sendAck sends the positive acknowledgement frame for a verb.
func (s *Server) sendAck(conn *Conn, verb string, args any) {
	s.sendFrame(conn, AckType(verb), args)
}

// sendErr sends the negative acknowledgement frame for a verb. The message
// argument is the sentinel's text, so frame messages and errors.Is targets
// stay in lockstep.
func (s *Server) sendErr(conn *Conn, verb string, err error) {
	s.metrics.IncrementFrameErrors(verb)
	s.sendFrame(conn, ErrType(verb), errorArgs{Message: wireMessage(err)})
}
