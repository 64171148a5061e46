//go:build !windows

// File: socket/rawsock_unix.go
// Author: momentics <momentics@gmail.com>
//
// Low-level nonblocking socket creation/connect for unix platforms,
// grounded on original_source/src/TcpSocketImpl.h's connect_i/
// setSocketOption and the teacher's go.mod choice of golang.org/x/sys
// for every syscall-level concern.

package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

func newNonblockingSocket(v6 bool) (int, error) {
	domain := unix.AF_INET
	if v6 {
		domain = unix.AF_INET6
	}
	// SOCK_NONBLOCK/SOCK_CLOEXEC as socket() flags aren't portable across
	// every BSD variant, so set non-blocking mode explicitly afterward.
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func sockaddrFor(addr *net.TCPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, unix.EAFNOSUPPORT
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	return sa, nil
}

// connectSockaddr issues a nonblocking connect. inProgress reports
// EINPROGRESS, which is the expected outcome for a nonblocking socket.
func connectSockaddr(fd int, addr *net.TCPAddr) (inProgress bool, err error) {
	sa, err := sockaddrFor(addr)
	if err != nil {
		return false, err
	}
	err = unix.Connect(fd, sa)
	if err == nil {
		return false, nil
	}
	if err == unix.EINPROGRESS {
		return true, nil
	}
	return false, err
}

// bindSockaddr binds fd to host:port before connect, per
// TcpSocketImpl::bind. SO_REUSEADDR is set first so a restart can rebind
// a listening port still lingering in TIME_WAIT.
func bindSockaddr(fd int, host string, port uint16) error {
	ip := net.ParseIP(host)
	if host == "" {
		ip = net.IPv4zero
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}
	sa, err := sockaddrFor(&net.TCPAddr{IP: ip, Port: int(port)})
	if err != nil {
		return err
	}
	return unix.Bind(fd, sa)
}

// socketError fetches SO_ERROR, the standard way a nonblocking connect's
// outcome is discovered once the fd becomes writable.
func socketError(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

func setNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

func closeFd(fd int) error {
	return unix.Close(fd)
}

func readFd(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

func writeFd(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}

// setNonblocking marks an already-connected fd (e.g. from net.Listener
// acceptance) nonblocking, for use by TCPSocket.AttachFd.
func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// dupFd duplicates rawFd so the caller's net.Conn can be closed without
// tearing down the underlying socket, letting Listener.Serve hand the
// duplicate off to AttachFd.
func dupFd(rawFd uintptr) (int, error) {
	return unix.Dup(int(rawFd))
}
