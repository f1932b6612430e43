package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneConn applies the socket options a long-lived agent link wants:
// TCP_NODELAY (actions are small and latency-sensitive) and SO_KEEPALIVE
// (detect a half-dead peer without relying on an application-level
// timeout, since spec §5 deliberately has none). Non-TCP connections
// are left untouched.
func tuneConn(conn net.Conn) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tcp.SetNoDelay(true)
	raw, err := tcp.SyscallConn()
	if err != nil {
		return
	}
	raw.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	})
}
