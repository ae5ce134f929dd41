package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/singalong/internal/observe"
	"github.com/MrWong99/singalong/pkg/lyrics"
)

// followReadLimit bounds a single client message. Position updates are tiny.
const followReadLimit = 4 << 10

// FollowRequest is a client message on the follow websocket.
type FollowRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// FollowResponse answers one [FollowRequest]. Segment is nil when no lyric
// line covers the position; Next is nil after the last line.
type FollowResponse struct {
	PositionMs int64           `json:"position_ms"`
	Index      int             `json:"index"`
	Segment    *lyrics.Segment `json:"segment"`
	Next       *lyrics.Segment `json:"next"`
}

// lookup answers a position query against track.
func lookup(track *lyrics.Track, posMs int64) FollowResponse {
	resp := FollowResponse{PositionMs: posMs, Index: -1}
	if seg, idx, ok := track.At(posMs); ok {
		resp.Segment = &seg
		resp.Index = idx
	}
	if next, ok := track.Next(posMs); ok {
		resp.Next = &next
	}
	return resp
}

// followStream is the session-owned handle of one follow connection. Closing
// the session closes the socket with StatusGoingAway.
type followStream struct {
	conn *websocket.Conn
	once sync.Once
}

func (f *followStream) Close() error {
	var err error
	f.once.Do(func() {
		err = f.conn.Close(websocket.StatusGoingAway, "session closed")
	})
	return err
}

// detach makes later Close calls no-ops. The handler closes the socket itself
// once the stream is released from the session.
func (f *followStream) detach() {
	f.once.Do(func() {})
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept has already written the HTTP error.
		observe.SessionLogger(r.Context(), sess.ID()).Info("follow upgrade failed", "err", err)
		return
	}
	conn.SetReadLimit(followReadLimit)
	defer conn.CloseNow()

	stream := &followStream{conn: conn}
	if err := sess.Acquire(stream); err != nil {
		return
	}
	defer func() {
		stream.detach()
		sess.Release(stream)
	}()

	ctx := r.Context()
	s.metrics.FollowStreams.Add(ctx, 1)
	defer s.metrics.FollowStreams.Add(context.WithoutCancel(ctx), -1)

	track := sess.Track()
	for {
		var req FollowRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			s.logFollowEnd(ctx, sess.ID(), err)
			return
		}
		if err := wsjson.Write(ctx, conn, lookup(track, req.PositionMs)); err != nil {
			s.logFollowEnd(ctx, sess.ID(), err)
			return
		}
	}
}

func (s *Server) logFollowEnd(ctx context.Context, sessionID string, err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		observe.SessionLogger(ctx, sessionID).Debug("follow stream closed", "status", status.String())
		return
	}
	observe.SessionLogger(ctx, sessionID).Info("follow stream ended", "err", err)
}
