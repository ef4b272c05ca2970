// Package relay carries chat frames from the gateway to the persistence sink.
//
// The protocol is one frame per connection: the client dials, writes a single
// JSON object terminated by '\n' and closes. There is no acknowledgement, so
// the sender cannot tell whether the frame was persisted. The listener handles
// connections strictly one at a time, so inserts follow arrival order and a
// stalled peer stalls every connection behind it.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/webchat/webchat/internal/message"
	"github.com/webchat/webchat/internal/message/repository"
	"github.com/webchat/webchat/pkg/logger"
	"github.com/webchat/webchat/pkg/metrics"
)

const acceptRetryDelay = 50 * time.Millisecond

// Server is the relay listener.
type Server struct {
	addr          string
	sink          repository.Sink
	insertTimeout time.Duration
	log           zerolog.Logger
	now           func() time.Time

	mu     sync.Mutex
	active net.Conn
}

// NewServer returns a listener for addr that writes every decoded frame to
// sink. insertTimeout bounds a single insert; zero means no bound.
func NewServer(addr string, sink repository.Sink, insertTimeout time.Duration) *Server {
	return &Server{
		addr:          addr,
		sink:          sink,
		insertTimeout: insertTimeout,
		log:           logger.With("relay"),
		now:           time.Now,
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("relay listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. Cancellation closes the
// listener and any connection being handled; it does not wait for a drain.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeActive()
	})
	defer stop()
	defer ln.Close()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("relay listener closed: %w", err)
			}
			s.log.Error().Err(err).Msg("accept failed")
			time.Sleep(acceptRetryDelay)
			continue
		}
		metrics.RelayConnections.Inc()
		s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	s.setActive(conn)
	defer func() {
		s.setActive(nil)
		_ = conn.Close()
	}()
	defer func() {
		if r := recover(); r != nil {
			metrics.RelayFrames.WithLabelValues(metrics.OutcomeFailed).Inc()
			s.log.Error().Str("peer", peer).Interface("panic", r).Msg("relay connection panicked")
		}
	}()
	if ctx.Err() != nil {
		return
	}

	outcome, err := s.process(ctx, conn)
	metrics.RelayFrames.WithLabelValues(outcome).Inc()
	if err != nil {
		s.log.Error().Err(err).Str("peer", peer).Msg("relay connection failed")
		return
	}
	s.log.Debug().Str("peer", peer).Str("outcome", outcome).Msg("relay connection done")
}

// process reads at most one frame and persists it.
func (s *Server) process(ctx context.Context, conn net.Conn) (string, error) {
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return metrics.OutcomeFailed, fmt.Errorf("read frame: %w", err)
	}
	if len(line) == 0 {
		return metrics.OutcomeEmpty, nil
	}

	msg, err := message.DecodeFrame(line)
	if err != nil {
		s.log.Debug().Err(err).Str("peer", conn.RemoteAddr().String()).Msg("discarding frame")
		return metrics.OutcomeMalformed, nil
	}

	rec := message.NewRecord(msg, s.now())
	ictx, cancel := s.insertContext(ctx)
	defer cancel()
	if err := s.sink.InsertOne(ictx, rec); err != nil {
		return metrics.OutcomeFailed, fmt.Errorf("persist frame: %w", err)
	}
	return metrics.OutcomePersisted, nil
}

func (s *Server) insertContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.insertTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.insertTimeout)
}

func (s *Server) setActive(c net.Conn) {
	s.mu.Lock()
	s.active = c
	s.mu.Unlock()
}

func (s *Server) closeActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		_ = s.active.Close()
	}
}
