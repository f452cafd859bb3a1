// Package client implements a minimal cream protocol client. The protocol is
// strictly one request per connection, so every operation dials, sends one
// request, reads one response, and closes.
package client

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/agilira/go-errors"

	"github.com/IvanBrykalov/cream/wire"
)

// Error codes surfaced for non-OK responses.
const (
	// ErrCodeNotFound — GET on an absent key.
	ErrCodeNotFound errors.ErrorCode = "CREAM_KEY_NOT_FOUND"
	// ErrCodeBadRequest — the server rejected the request sizes.
	ErrCodeBadRequest errors.ErrorCode = "CREAM_BAD_REQUEST"
	// ErrCodeUnsupported — the server did not recognize the request code.
	ErrCodeUnsupported errors.ErrorCode = "CREAM_UNSUPPORTED"
	// ErrCodeProtocol — the response violated the wire contract.
	ErrCodeProtocol errors.ErrorCode = "CREAM_PROTOCOL"
)

// IsNotFound reports whether err is a not-found response.
func IsNotFound(err error) bool { return errors.HasCode(err, ErrCodeNotFound) }

// IsBadRequest reports whether err is a bad-request response.
func IsBadRequest(err error) bool { return errors.HasCode(err, ErrCodeBadRequest) }

// IsUnsupported reports whether err is an unsupported-opcode response.
func IsUnsupported(err error) bool { return errors.HasCode(err, ErrCodeUnsupported) }

// Client issues cream requests against a single server address.
// The zero Timeout disables deadlines. Client is safe for concurrent use;
// concurrent operations simply use separate connections.
type Client struct {
	addr    string
	timeout time.Duration
}

// New returns a client for addr. timeout bounds dialing and each request's
// I/O; zero disables it.
func New(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

// Put stores val under key, force-displacing an existing entry when the
// server's table is full.
func (c *Client) Put(key, val []byte) error {
	resp, _, err := c.do(wire.OpPut, key, val)
	if err != nil {
		return err
	}
	return statusErr(resp.Code)
}

// Get returns the value stored under key.
func (c *Client) Get(key []byte) ([]byte, error) {
	resp, val, err := c.do(wire.OpGet, key, nil)
	if err != nil {
		return nil, err
	}
	if err := statusErr(resp.Code); err != nil {
		return nil, err
	}
	return val, nil
}

// Evict removes key. The server answers OK whether or not it was present.
func (c *Client) Evict(key []byte) error {
	resp, _, err := c.do(wire.OpEvict, key, nil)
	if err != nil {
		return err
	}
	return statusErr(resp.Code)
}

// Clear empties the server's table.
func (c *Client) Clear() error {
	resp, _, err := c.do(wire.OpClear, nil, nil)
	if err != nil {
		return err
	}
	return statusErr(resp.Code)
}

// Do sends a raw request header plus payloads and returns the raw response.
// It exists for protocol-level tests and tooling; the typed methods above
// are the ordinary surface.
func (c *Client) Do(code uint32, key, val []byte) (wire.ResponseHeader, []byte, error) {
	return c.do(code, key, val)
}

func (c *Client) do(code uint32, key, val []byte) (wire.ResponseHeader, []byte, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return wire.ResponseHeader{}, nil, err
	}
	defer conn.Close()
	if c.timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return wire.ResponseHeader{}, nil, err
		}
	}

	req := wire.RequestHeader{
		Code:      code,
		KeySize:   uint32(len(key)),
		ValueSize: uint32(len(val)),
	}
	if err := wire.WriteRequestHeader(conn, req); err != nil {
		return wire.ResponseHeader{}, nil, err
	}
	if len(key) > 0 {
		if _, err := conn.Write(key); err != nil {
			return wire.ResponseHeader{}, nil, err
		}
	}
	if len(val) > 0 {
		if _, err := conn.Write(val); err != nil {
			return wire.ResponseHeader{}, nil, err
		}
	}

	resp, err := wire.ReadResponseHeader(conn)
	if err != nil {
		return wire.ResponseHeader{}, nil, err
	}
	var body []byte
	if resp.ValueSize > 0 {
		if resp.ValueSize > wire.MaxValueSize {
			return resp, nil, errors.NewWithField(ErrCodeProtocol,
				"response value exceeds protocol maximum", "value_size", fmt.Sprintf("%d", int(resp.ValueSize)))
		}
		body = make([]byte, resp.ValueSize)
		if _, err := io.ReadFull(conn, body); err != nil {
			return resp, nil, err
		}
	}
	return resp, body, nil
}

func statusErr(code uint32) error {
	switch code {
	case wire.StatusOK:
		return nil
	case wire.StatusNotFound:
		return errors.New(ErrCodeNotFound, "key not found")
	case wire.StatusBadRequest:
		return errors.New(ErrCodeBadRequest, "bad request")
	case wire.StatusUnsupported:
		return errors.New(ErrCodeUnsupported, "unsupported request code")
	default:
		return errors.NewWithField(ErrCodeProtocol,
			fmt.Sprintf("unknown response code %d", code), "code", fmt.Sprintf("%d", int(code)))
	}
}
