package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNetstat(t *testing.T) {
	output := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:135            0.0.0.0:0              LISTENING       1000
  TCP    0.0.0.0:8080           0.0.0.0:0              LISTENING       4242
  TCP    127.0.0.1:51000        127.0.0.1:8080         TIME_WAIT       0
  TCP    [::]:3000              [::]:0                 LISTENING       5151
  TCP    [::1]:3000             [::1]:52000            ESTABLISHED     5151
  UDP    0.0.0.0:5353           *:*                                    777
  TCP    garbage
`
	got := ParseNetstat(output)

	want := []Socket{
		{LocalAddr: "0.0.0.0:135", Port: 135, State: "LISTENING", PID: 1000},
		{LocalAddr: "0.0.0.0:8080", Port: 8080, State: "LISTENING", PID: 4242},
		{LocalAddr: "127.0.0.1:51000", Port: 51000, State: "TIME_WAIT", PID: 0},
		{LocalAddr: "[::]:3000", Port: 3000, State: "LISTENING", PID: 5151},
		{LocalAddr: "[::1]:3000", Port: 3000, State: "ESTABLISHED", PID: 5151},
	}
	assert.Equal(t, want, got)
	assert.True(t, got[1].Listening())
	assert.False(t, got[2].Listening())
}

func TestParseLsof(t *testing.T) {
	output := `p4242
f12
n*:8080
TST=LISTEN
TQR=0
TQS=0
f13
n127.0.0.1:8080->127.0.0.1:51000
TST=ESTABLISHED
p5151
f20
n[::1]:3000
TST=LISTEN
`
	got := ParseLsof(output)

	want := []Socket{
		{LocalAddr: "*:8080", Port: 8080, State: "LISTEN", PID: 4242},
		{LocalAddr: "127.0.0.1:8080", Port: 8080, State: "ESTABLISHED", PID: 4242},
		{LocalAddr: "[::1]:3000", Port: 3000, State: "LISTEN", PID: 5151},
	}
	assert.Equal(t, want, got)
}

func TestParseEmptyOutput(t *testing.T) {
	assert.Empty(t, ParseNetstat(""))
	assert.Empty(t, ParseLsof(""))
}

func TestLocalPort(t *testing.T) {
	tests := []struct {
		addr string
		port int
		ok   bool
	}{
		{"0.0.0.0:8080", 8080, true},
		{"127.0.0.1:3000", 3000, true},
		{"[::]:8080", 8080, true},
		{"[::1]:3000", 3000, true},
		{"*:5173", 5173, true},
		{"127.0.0.1.8080", 8080, true},
		{"[::]:0", 0, false},
		{"localhost:", 0, false},
		{"nonsense", 0, false},
		{"1.2.3.4:99999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			port, ok := LocalPort(tt.addr)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.port, port)
		})
	}
}
