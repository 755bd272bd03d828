package platform

import (
	"bufio"
	"strconv"
	"strings"
)

// Text parsers for hosts where the native TCP table read fails. They are
// the only place that understands netstat and lsof output.

// ParseNetstat parses `netstat -ano -p tcp` output as printed by Windows:
//
//	Proto  Local Address   Foreign Address  State      PID
//	TCP    0.0.0.0:8080    0.0.0.0:0        LISTENING  4242
func ParseNetstat(output string) []Socket {
	var sockets []Socket
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || !strings.EqualFold(fields[0], "TCP") {
			continue
		}
		port, ok := LocalPort(fields[1])
		if !ok {
			continue
		}
		pid, err := strconv.Atoi(fields[4])
		if err != nil {
			continue
		}
		sockets = append(sockets, Socket{
			LocalAddr: fields[1],
			Port:      port,
			State:     fields[3],
			PID:       pid,
		})
	}
	return sockets
}

// ParseLsof parses `lsof -nP -iTCP -FpnT` field output. Each process starts
// with a p line, each file with an f line, followed by n (name) and T
// (TCP info such as ST=LISTEN) lines.
func ParseLsof(output string) []Socket {
	var (
		sockets []Socket
		pid     int
		current Socket
	)
	flush := func() {
		if current.LocalAddr != "" {
			current.PID = pid
			sockets = append(sockets, current)
		}
		current = Socket{}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tag, value := line[0], line[1:]
		switch tag {
		case 'p':
			flush()
			pid, _ = strconv.Atoi(value)
		case 'f':
			flush()
		case 'n':
			local, _, _ := strings.Cut(value, "->")
			port, ok := LocalPort(local)
			if !ok {
				continue
			}
			current.LocalAddr = local
			current.Port = port
		case 'T':
			if state, found := strings.CutPrefix(value, "ST="); found {
				current.State = state
			}
		}
	}
	flush()
	return sockets
}

// LocalPort extracts the port from a local address in any of the forms the
// tools print: 0.0.0.0:8080, [::]:8080, [::1]:8080, *:8080, 127.0.0.1.8080.
func LocalPort(addr string) (int, bool) {
	addr = strings.TrimSpace(addr)
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		// BSD netstat separates the port with a dot.
		idx = strings.LastIndex(addr, ".")
	}
	if idx < 0 || idx == len(addr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
