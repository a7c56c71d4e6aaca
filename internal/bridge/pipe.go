package bridge

import (
	"context"
	"errors"
	"io"
	"net"
)

// Simulated соединяет клиента с виртуальной прошивкой через net.Pipe
type Simulated struct {
	Client *Client

	host   net.Conn
	device net.Conn
	done   chan error
}

// NewSimulated запускает прошивку в отдельной горутине
func NewSimulated(ctx context.Context, r *Responder, opts ...ClientOption) *Simulated {
	host, dev := net.Pipe()
	s := &Simulated{
		Client: NewClient(host, opts...),
		host:   host,
		device: dev,
		done:   make(chan error, 1),
	}
	go func() {
		err := r.Serve(ctx, dev)
		dev.Close()
		s.done <- err
	}()
	return s
}

// Close закрывает соединение и дожидается остановки прошивки
func (s *Simulated) Close() error {
	s.host.Close()
	err := <-s.done
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
