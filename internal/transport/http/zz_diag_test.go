package http

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestDiagHandshakeHeaders(t *testing.T) {
	env := newTestEnv(t)
	token := env.mintToken(t, "diag@example.com")

	addr := strings.TrimPrefix(env.ts.URL, "http://")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req := "GET /ws?token=" + token + " HTTP/1.1\r\n" +
		"Host: " + addr + "\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Extensions: permessage-deflate; client_max_window_bits\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		fmt.Printf("HDR: %q\n", line)
		if line == "\r\n" {
			break
		}
	}
}
