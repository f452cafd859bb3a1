package server

import (
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/cream/store"
	"github.com/IvanBrykalov/cream/wire"
)

// handle serves exactly one request on conn. It reads one request header,
// at most KeySize+ValueSize payload bytes, and writes one response. Write
// failures mean the peer is already gone; they are logged at debug and
// otherwise swallowed (the Go runtime already keeps SIGPIPE away from
// socket writes). The caller closes the connection.
func (s *Server) handle(log *zap.Logger, conn net.Conn) {
	req, err := wire.ReadRequestHeader(conn)
	if err != nil {
		log.Debug("request header read failed", zap.Error(err))
		return
	}

	switch req.Op() {
	case wire.OpPut:
		s.handlePut(log, conn, req)
	case wire.OpGet:
		s.handleGet(log, conn, req)
	case wire.OpEvict:
		s.handleEvict(log, conn, req)
	case wire.OpClear:
		if err := s.store.Clear(); err != nil {
			log.Debug("clear failed", zap.Error(err))
		}
		s.respond(log, conn, wire.StatusOK, nil)
	default:
		log.Debug("unsupported request code", zap.Uint32("code", req.Code))
		s.respond(log, conn, wire.StatusUnsupported, nil)
	}
}

// handlePut rejects the request when either the key or the value size is out
// of protocol bounds, then reads both payloads and force-inserts.
func (s *Server) handlePut(log *zap.Logger, conn net.Conn, req wire.RequestHeader) {
	if !wire.ValidKeySize(req.KeySize) || !wire.ValidValueSize(req.ValueSize) {
		s.respond(log, conn, wire.StatusBadRequest, nil)
		return
	}
	key, err := readPayload(conn, req.KeySize)
	if err != nil {
		log.Debug("key read failed", zap.Error(err))
		return
	}
	val, err := readPayload(conn, req.ValueSize)
	if err != nil {
		log.Debug("value read failed", zap.Error(err))
		return
	}

	// The server always inserts with force: a full table displaces the
	// entry at the new key's natural index rather than refusing.
	if err := s.store.Put(key, val, true); err != nil {
		log.Debug("put failed", zap.Error(err))
		s.respond(log, conn, wire.StatusBadRequest, nil)
		return
	}
	s.respond(log, conn, wire.StatusOK, nil)
}

func (s *Server) handleGet(log *zap.Logger, conn net.Conn, req wire.RequestHeader) {
	if !wire.ValidKeySize(req.KeySize) {
		s.respond(log, conn, wire.StatusBadRequest, nil)
		return
	}
	key, err := readPayload(conn, req.KeySize)
	if err != nil {
		log.Debug("key read failed", zap.Error(err))
		return
	}

	val, err := s.store.Get(key)
	switch {
	case err == nil:
		s.respond(log, conn, wire.StatusOK, val)
	case store.IsNotFound(err):
		s.respond(log, conn, wire.StatusNotFound, nil)
	default:
		log.Debug("get failed", zap.Error(err))
		s.respond(log, conn, wire.StatusBadRequest, nil)
	}
}

// handleEvict answers OK whether or not the key was present.
func (s *Server) handleEvict(log *zap.Logger, conn net.Conn, req wire.RequestHeader) {
	if !wire.ValidKeySize(req.KeySize) {
		s.respond(log, conn, wire.StatusBadRequest, nil)
		return
	}
	key, err := readPayload(conn, req.KeySize)
	if err != nil {
		log.Debug("key read failed", zap.Error(err))
		return
	}
	if _, err := s.store.Evict(key); err != nil {
		log.Debug("evict failed", zap.Error(err))
	}
	s.respond(log, conn, wire.StatusOK, nil)
}

// respond writes the response header and, for an OK GET, the value payload.
func (s *Server) respond(log *zap.Logger, conn net.Conn, code uint32, val []byte) {
	h := wire.ResponseHeader{Code: code, ValueSize: uint32(len(val))}
	if err := wire.WriteResponseHeader(conn, h); err != nil {
		log.Debug("response write failed", zap.Error(err))
		return
	}
	if len(val) > 0 {
		if _, err := conn.Write(val); err != nil {
			log.Debug("value write failed", zap.Error(err))
		}
	}
}

func readPayload(r io.Reader, n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
