package bridge

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// ConnectDelay плата перезагружается при открытии порта
const ConnectDelay = 2 * time.Second

// OpenSerial открывает порт платы и ждет ее готовности
func OpenSerial(port string, baudRate int, readTimeout time.Duration) (io.ReadWriteCloser, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
	}
	time.Sleep(ConnectDelay)
	if err := p.ResetInputBuffer(); err != nil {
		p.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", port, err)
	}
	return p, nil
}

// Ports доступные последовательные порты
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
