// Package modbus implements a small Modbus TCP server that stands in for a
// metering panel. It serves function 0x03 (read holding registers) from an
// in-memory register bank that tests and cmd/panelsim fill with encoded
// metric values.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"solar-monitor/internal/decoder"
	"solar-monitor/internal/model"
)

const (
	functionReadHoldingRegs = 0x03

	exceptionIllegalFunction = 0x01
	exceptionIllegalDataAddr = 0x02
	exceptionIllegalDataVal  = 0x03

	// Largest register count a single read may request.
	maxReadQuantity = 125
	bankSize        = 65536
)

var (
	errOutOfRange    = errors.New("out of range")
	errInvalidQty    = errors.New("invalid quantity")
	errInvalidPDULen = errors.New("invalid pdu length")
)

// Server is a Modbus TCP panel simulator.
type Server struct {
	listener  net.Listener
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger

	// UnitID restricts which unit id is answered; 0 answers every unit.
	UnitID byte

	mu      sync.RWMutex
	holding []uint16
}

// NewServer constructs a server with an all-zero register bank.
func NewServer(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		holding: make([]uint16, bankSize),
		quit:    make(chan struct{}),
		log:     log,
	}
}

// Listen starts accepting Modbus TCP connections on address. Use
// "127.0.0.1:0" and Addr to pick a free port.
func (s *Server) Listen(address string) error {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	s.listener = l
	s.log.Info("panel simulator listening", zap.String("addr", l.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr is the bound listener address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves MBAP frames until the peer hangs up or the server
// closes.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.quit:
			conn.Close()
		case <-done:
		}
	}()

	header := make([]byte, 7)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}

		length := binary.BigEndian.Uint16(header[4:6])
		if length < 2 {
			return
		}
		unitID := header[6]
		pdu := make([]byte, int(length)-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}
		if s.UnitID != 0 && unitID != s.UnitID {
			continue
		}

		response := s.handlePDU(pdu)
		frame := make([]byte, 7+len(response))
		copy(frame, header[:4])
		binary.BigEndian.PutUint16(frame[4:6], uint16(len(response)+1))
		frame[6] = unitID
		copy(frame[7:], response)

		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) handlePDU(pdu []byte) []byte {
	function := pdu[0]
	if function != functionReadHoldingRegs {
		return exceptionResponse(function, exceptionIllegalFunction)
	}
	data, err := s.readRegisters(pdu)
	if err != nil {
		return exceptionResponse(function, errToCode(err))
	}
	return append([]byte{function, byte(len(data))}, data...)
}

func (s *Server) readRegisters(pdu []byte) ([]byte, error) {
	if len(pdu) < 5 {
		return nil, errInvalidPDULen
	}
	start := binary.BigEndian.Uint16(pdu[1:3])
	quantity := binary.BigEndian.Uint16(pdu[3:5])
	if quantity == 0 || quantity > maxReadQuantity {
		return nil, errInvalidQty
	}
	if int(start)+int(quantity) > bankSize {
		return nil, errOutOfRange
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], s.holding[int(start)+i])
	}
	return result, nil
}

func exceptionResponse(function byte, code byte) []byte {
	return []byte{function | 0x80, code}
}

func errToCode(err error) byte {
	switch {
	case errors.Is(err, errOutOfRange):
		return exceptionIllegalDataAddr
	case errors.Is(err, errInvalidQty), errors.Is(err, errInvalidPDULen):
		return exceptionIllegalDataVal
	default:
		return exceptionIllegalFunction
	}
}

// Close stops the server, drops open connections and waits for all
// goroutines to exit.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
	})
	s.wg.Wait()
}

// SetRegisters writes words starting at address.
func (s *Server) SetRegisters(address uint16, words []uint16) error {
	if int(address)+len(words) > bankSize {
		return fmt.Errorf("registers %d..%d out of range", address, int(address)+len(words)-1)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.holding[address:], words)
	return nil
}

// Registers returns a copy of count registers starting at address.
func (s *Server) Registers(address, count uint16) ([]uint16, error) {
	if int(address)+int(count) > bankSize {
		return nil, fmt.Errorf("registers %d..%d out of range", address, int(address)+int(count)-1)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint16, count)
	copy(out, s.holding[address:])
	return out, nil
}

// SetMetric stores the device representation of value for m: value is
// divided by the scaling factor and encoded as m.DataType.
func (s *Server) SetMetric(m model.Metric, value float64) error {
	raw := value
	if m.ScalingFactor != 0 {
		raw = value / m.ScalingFactor
	}
	words, err := decoder.Encode(m.DataType, raw, int(m.Size))
	if err != nil {
		return fmt.Errorf("metric %s: %w", m.Name, err)
	}
	return s.SetRegisters(m.Address, words)
}

// SetText stores text for a STRING metric.
func (s *Server) SetText(m model.Metric, text string) error {
	if m.DataType != model.String {
		return fmt.Errorf("metric %s is %s, not STRING", m.Name, m.DataType)
	}
	return s.SetRegisters(m.Address, decoder.EncodeString(text, int(m.Size)))
}
