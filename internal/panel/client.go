// Package panel reads metric values from a metering panel over Modbus.
package panel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"
	"go.uber.org/zap"
)

var ErrShortResponse = errors.New("short register response")

// TransportError reports a failed or incomplete register read. The device
// may recover, so callers may retry it.
type TransportError struct {
	Op      string
	Address uint16
	Count   uint16
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("panel %s %d+%d: %v", e.Op, e.Address, e.Count, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RegisterReader reads count consecutive 16-bit holding registers.
type RegisterReader interface {
	ReadRegisters(address, count uint16) ([]uint16, error)
}

// Config selects and tunes the Modbus transport.
type Config struct {
	Protocol string // modbus-tcp | modbus-rtu
	// Address is host:port for TCP and the serial device for RTU.
	Address string
	UnitID  byte
	Timeout time.Duration

	// RTU only.
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
}

const (
	defaultUnitID  = 1
	defaultTimeout = 5 * time.Second
)

// handlerWithConn is a goburrow handler that also manages its connection.
type handlerWithConn interface {
	mb.ClientHandler
	Connect() error
	Close() error
}

// Client implements RegisterReader over a goburrow Modbus handler. Reads are
// serialized; after a failed read the connection is dropped and the next
// read dials again.
type Client struct {
	mu      sync.Mutex
	handler handlerWithConn
	client  mb.Client
	addr    string
	log     *zap.Logger
}

var _ RegisterReader = (*Client)(nil)

// NewClient builds the TCP or RTU handler described by cfg. It does not
// connect; call Connect or let the first read dial.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{handler: h, client: mb.NewClient(h), addr: cfg.Address, log: log}, nil
}

func newHandler(cfg Config) (handlerWithConn, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	unit := cfg.UnitID
	if unit == 0 {
		unit = defaultUnitID
	}
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("panel address is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Protocol)) {
	case "", "modbus-tcp", "tcp":
		h := mb.NewTCPClientHandler(cfg.Address)
		h.Timeout = timeout
		h.SlaveId = unit
		return h, nil
	case "modbus-rtu", "rtu":
		h := mb.NewRTUClientHandler(cfg.Address)
		if cfg.BaudRate > 0 {
			h.BaudRate = cfg.BaudRate
		}
		if cfg.DataBits > 0 {
			h.DataBits = cfg.DataBits
		}
		if cfg.StopBits > 0 {
			h.StopBits = cfg.StopBits
		}
		if p := strings.ToUpper(strings.TrimSpace(cfg.Parity)); p != "" {
			h.Parity = p
		}
		h.Timeout = timeout
		h.SlaveId = unit
		return h, nil
	default:
		return nil, fmt.Errorf("protocol %s not implemented", cfg.Protocol)
	}
}

// Connect dials the panel.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.handler.Connect(); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// ReadRegisters reads holding registers [address, address+count).
func (c *Client) ReadRegisters(address, count uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := c.client.ReadHoldingRegisters(address, count)
	if err != nil {
		c.log.Debug("register read failed, dropping connection",
			zap.String("panel", c.addr), zap.Uint16("address", address), zap.Error(err))
		_ = c.handler.Close()
		return nil, &TransportError{Op: "read", Address: address, Count: count, Err: err}
	}
	if len(data) < int(count)*2 {
		return nil, &TransportError{Op: "read", Address: address, Count: count,
			Err: fmt.Errorf("%w: got %d bytes", ErrShortResponse, len(data))}
	}

	words := make([]uint16, count)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return words, nil
}
