package port

import (
	"errors"
	"os"
	"syscall"
)

var errClosed = errors.New("port closed")

// File is a character device (typically a tty already configured for
// 115200 8N1 by the host) opened in non-blocking mode.
type File struct {
	f *os.File
}

// OpenFile opens the device at path as a non-blocking byte port.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}
	return &File{f: f}, nil
}

// Read returns pending bytes, mapping the would-block condition to
// (0, nil) per the engine's port contract.
func (p *File) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if err != nil && wouldBlock(err) {
		return n, nil
	}
	return n, err
}

// Write writes b to the device.
func (p *File) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

// Close closes the device.
func (p *File) Close() error {
	return p.f.Close()
}

func wouldBlock(err error) bool {
	if pe, ok := err.(*os.PathError); ok {
		err = pe.Err
	}
	return err == syscall.EAGAIN || err == syscall.EWOULDBLOCK
}
