//go:build windows

// File: socket/rawsock_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows mirror of rawsock_unix.go, built on golang.org/x/sys/windows,
// following the same connect_i/setSocketOption split as
// original_source/src/TcpSocketImpl.h.

package socket

import (
	"net"

	"golang.org/x/sys/windows"
)

func newNonblockingSocket(v6 bool) (int, error) {
	domain := windows.AF_INET
	if v6 {
		domain = windows.AF_INET6
	}
	fd, err := windows.Socket(domain, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := windows.SetNonblock(windows.Handle(fd), true); err != nil {
		_ = windows.Closesocket(windows.Handle(fd))
		return -1, err
	}
	return int(fd), nil
}

func sockaddrFor(addr *net.TCPAddr) (windows.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &windows.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, windows.WSAEAFNOSUPPORT
	}
	sa := &windows.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	return sa, nil
}

func connectSockaddr(fd int, addr *net.TCPAddr) (inProgress bool, err error) {
	sa, err := sockaddrFor(addr)
	if err != nil {
		return false, err
	}
	err = windows.Connect(windows.Handle(fd), sa)
	if err == nil {
		return false, nil
	}
	if err == windows.WSAEWOULDBLOCK {
		return true, nil
	}
	return false, err
}

func bindSockaddr(fd int, host string, port uint16) error {
	ip := net.ParseIP(host)
	if host == "" {
		ip = net.IPv4zero
	}
	if err := windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); err != nil {
		return err
	}
	sa, err := sockaddrFor(&net.TCPAddr{IP: ip, Port: int(port)})
	if err != nil {
		return err
	}
	return windows.Bind(windows.Handle(fd), sa)
}

func socketError(fd int) error {
	errno, err := windows.GetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return windows.Errno(errno)
	}
	return nil
}

func setNoDelay(fd int) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
}

func closeFd(fd int) error {
	return windows.Closesocket(windows.Handle(fd))
}

func readFd(fd int, buf []byte) (int, error) {
	return windows.Read(windows.Handle(fd), buf)
}

func writeFd(fd int, buf []byte) (int, error) {
	return windows.Write(windows.Handle(fd), buf)
}

func isWouldBlock(err error) bool {
	return err == windows.WSAEWOULDBLOCK
}

func setNonblocking(fd int) error {
	return windows.SetNonblock(windows.Handle(fd), true)
}

// dupFd duplicates rawFd within the current process, mirroring
// rawsock_unix.go's unix.Dup for Listener.Serve's hand-off to AttachFd.
func dupFd(rawFd uintptr) (int, error) {
	proc := windows.CurrentProcess()
	var dup windows.Handle
	err := windows.DuplicateHandle(proc, windows.Handle(rawFd), proc, &dup, 0, true, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return -1, err
	}
	return int(dup), nil
}
