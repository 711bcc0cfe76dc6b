package modbus

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
)

const (
	funcReadHoldingRegisters = 0x03
	funcReadInputRegisters   = 0x04
	mbapHeaderLen            = 7
)

// Server is a minimal Modbus TCP (MBAP) server exposing one DataBlock
// per registered unit ID, both as holding and input registers (the
// reference server binds both register banks to the same block since
// Janitza clients poll either function code interchangeably).
type Server struct {
	mu       sync.RWMutex
	units    map[byte]*DataBlock
	logger   *log.Logger
	listener net.Listener
}

// NewServer constructs an empty Modbus TCP server.
func NewServer(logger *log.Logger) *Server {
	return &Server{units: make(map[byte]*DataBlock), logger: logger}
}

// RegisterMeter binds unitID (1-247) to the meter addressed by meterID,
// resolved through provider.
func (s *Server) RegisterMeter(unitID byte, meterID string, provider MeterProvider) error {
	if unitID < 1 || unitID > 247 {
		return fmt.Errorf("modbus: invalid unit id %d, must be 1-247", unitID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unitID] = NewDataBlock(meterID, provider)
	return nil
}

// ListenAndServe binds addr and serves connections until the listener
// is closed by Close.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("modbus: listen: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the listener, terminating ListenAndServe's loop.
func (s *Server) Close() error {
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	header := make([]byte, mbapHeaderLen)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		transactionID := binary.BigEndian.Uint16(header[0:2])
		length := binary.BigEndian.Uint16(header[4:6])
		unitID := header[6]

		if length < 1 {
			return
		}
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		response := s.handlePDU(unitID, pdu)
		if _, err := conn.Write(s.frame(transactionID, unitID, response)); err != nil {
			return
		}
	}
}

func (s *Server) dataBlock(unitID byte) (*DataBlock, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	db, ok := s.units[unitID]
	return db, ok
}

// handlePDU dispatches function codes 0x03/0x04 (read holding/input
// registers); every other function code returns an illegal-function
// exception response.
func (s *Server) handlePDU(unitID byte, pdu []byte) []byte {
	if len(pdu) < 1 {
		return []byte{0x80, 0x04} // server failure, malformed request
	}
	functionCode := pdu[0]

	switch functionCode {
	case funcReadHoldingRegisters, funcReadInputRegisters:
		return s.handleReadRegisters(unitID, functionCode, pdu)
	default:
		return []byte{functionCode | 0x80, 0x01} // illegal function
	}
}

func (s *Server) handleReadRegisters(unitID byte, functionCode byte, pdu []byte) []byte {
	if len(pdu) < 5 {
		return []byte{functionCode | 0x80, 0x03} // illegal data value
	}
	address := int(binary.BigEndian.Uint16(pdu[1:3]))
	count := int(binary.BigEndian.Uint16(pdu[3:5]))

	db, ok := s.dataBlock(unitID)
	if !ok {
		return []byte{functionCode | 0x80, 0x0B} // gateway target device failed to respond
	}
	if !db.Validate(address, count) {
		return []byte{functionCode | 0x80, 0x02} // illegal data address
	}

	values := db.GetValues(address, count)
	out := make([]byte, 2+len(values)*2)
	out[0] = functionCode
	out[1] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(out[2+i*2:4+i*2], v)
	}
	return out
}

func (s *Server) frame(transactionID uint16, unitID byte, pdu []byte) []byte {
	out := make([]byte, mbapHeaderLen+len(pdu))
	binary.BigEndian.PutUint16(out[0:2], transactionID)
	binary.BigEndian.PutUint16(out[2:4], 0) // protocol ID, always 0 for Modbus
	binary.BigEndian.PutUint16(out[4:6], uint16(len(pdu)+1))
	out[6] = unitID
	copy(out[7:], pdu)
	return out
}
