package hl7v2

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// MLLPStartBlock is the MLLP start-of-message byte (VT / vertical tab).
	MLLPStartBlock = 0x0B

	// MLLPEndBlock is the MLLP end-of-message byte (FS / file separator).
	MLLPEndBlock = 0x1C

	// MLLPCarriageReturn is the trailing CR after the end block.
	MLLPCarriageReturn = 0x0D

	// mllpMaxMessageSize is the maximum buffer size for a single MLLP message (1 MB).
	mllpMaxMessageSize = 1 << 20

	// mllpReadTimeout is the idle read deadline applied to each connection.
	mllpReadTimeout = 30 * time.Second
)

// Acknowledgement codes for MSA-1.
const (
	AckAccept = "AA"
	AckError  = "AE"
	AckReject = "AR"
)

// MessageHandler is called with the raw bytes of each unframed message and
// returns the raw response to frame and send back, or nil for no response.
type MessageHandler func(raw []byte) []byte

// MLLPServer listens for HL7v2 messages over MLLP/TCP.
type MLLPServer struct {
	addr     string
	handler  MessageHandler
	logger   zerolog.Logger
	listener net.Listener
	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewMLLPServer creates a server that will listen on addr and dispatch each
// message to handler.
func NewMLLPServer(addr string, handler MessageHandler, logger zerolog.Logger) *MLLPServer {
	return &MLLPServer{
		addr:    addr,
		handler: handler,
		logger:  logger.With().Str("component", "mllp").Logger(),
		conns:   make(map[net.Conn]struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins listening. The accept loop runs in a background goroutine.
func (s *MLLPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("mllp: failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("mllp listener started")
	return nil
}

// Stop closes the listener and every tracked connection, then waits for all
// goroutines to finish.
func (s *MLLPServer) Stop() error {
	close(s.done)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	return err
}

// Addr returns the listener address, useful when started on port 0.
func (s *MLLPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *MLLPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Error().Err(err).Msg("accept failed")
			return
		}

		s.trackConn(conn, true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.trackConn(conn, false)
			defer conn.Close()
			s.handleConnection(conn)
		}()
	}
}

func (s *MLLPServer) trackConn(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// handleConnection reads MLLP frames from conn until it closes, goes idle,
// or sends an oversized message.
func (s *MLLPServer) handleConnection(conn net.Conn) {
	buf := make([]byte, 0, 4096)
	readBuf := make([]byte, 4096)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(mllpReadTimeout))

		n, err := conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)

			if len(buf) > mllpMaxMessageSize {
				s.logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("message exceeds max size, closing connection")
				return
			}

			for {
				msg, rest, found := UnframeMessage(buf)
				if !found {
					break
				}
				buf = rest
				s.processMessage(conn, msg)
			}
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() && len(buf) > 0 {
				// Keep reading to finish the partial frame.
				continue
			}
			return
		}
	}
}

func (s *MLLPServer) processMessage(conn net.Conn, raw []byte) {
	resp := s.handler(raw)
	if resp == nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write(FrameMessage(resp)); err != nil {
		s.logger.Error().Err(err).Msg("write failed")
	}
}

// FrameMessage wraps raw HL7v2 bytes in MLLP framing:
//
//	<0x0B> + message + <0x1C><0x0D>
func FrameMessage(data []byte) []byte {
	frame := make([]byte, 0, len(data)+3)
	frame = append(frame, MLLPStartBlock)
	frame = append(frame, data...)
	frame = append(frame, MLLPEndBlock, MLLPCarriageReturn)
	return frame
}

// UnframeMessage extracts the first complete MLLP frame from data. It returns
// the message, the bytes after the frame, and whether a frame was found.
func UnframeMessage(data []byte) (message []byte, rest []byte, found bool) {
	startIdx := bytes.IndexByte(data, MLLPStartBlock)
	if startIdx == -1 {
		return nil, data, false
	}

	endIdx := bytes.Index(data[startIdx+1:], []byte{MLLPEndBlock, MLLPCarriageReturn})
	if endIdx == -1 {
		return nil, data, false
	}
	endIdx = startIdx + 1 + endIdx

	return data[startIdx+1 : endIdx], data[endIdx+2:], true
}

// GenerateACK builds an ACK for the message described by incoming. The ACK
// swaps sender and receiver and echoes the original control ID in MSA-2.
// text, when non-empty, is carried in MSA-3.
func GenerateACK(incoming *Header, ackCode, text string) []byte {
	trigger := ""
	if parts := strings.SplitN(incoming.Type, ComponentSeparator, 3); len(parts) >= 2 {
		trigger = parts[1]
	}

	now := time.Now().UTC()
	msh := strings.Join([]string{
		"MSH",
		`^~\&`,
		incoming.ReceivingApp,
		incoming.ReceivingFac,
		incoming.SendingApp,
		incoming.SendingFac,
		now.Format("20060102150405"),
		"",
		"ACK^" + trigger,
		"ACK" + now.Format("20060102150405.000"),
		"P",
		incoming.Version,
	}, FieldSeparator)

	msa := "MSA|" + ackCode + "|" + incoming.ControlID
	if text != "" {
		msa += "|" + Escape(text)
	}
	return []byte(msh + "\r" + msa)
}
