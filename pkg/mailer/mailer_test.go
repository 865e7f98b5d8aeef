package mailer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// silentServer accepts connections and never speaks SMTP, simulating a hung
// server.
func silentServer(t *testing.T) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestSend_HungServerBoundedByTimeout(t *testing.T) {
	host, port := silentServer(t)

	m := New(Config{
		Host:    host,
		Port:    port,
		From:    "admissions@example.edu",
		Timeout: 200 * time.Millisecond,
	})

	start := time.Now()
	err := m.Send("applicant@example.com", "subject", "body")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSend_UnreachableServerFailsFast(t *testing.T) {
	// Reserve a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	m := New(Config{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		From:    "admissions@example.edu",
		Timeout: 200 * time.Millisecond,
	})

	assert.Error(t, m.Send("applicant@example.com", "subject", "body"))
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := buildMessage("from@example.edu", "to@example.com", "Decision available", "See portal.")

	assert.Contains(t, msg, "From: from@example.edu\r\n")
	assert.Contains(t, msg, "To: to@example.com\r\n")
	assert.Contains(t, msg, "Subject: Decision available\r\n")
	assert.Contains(t, msg, "\r\n\r\nSee portal.")
}
