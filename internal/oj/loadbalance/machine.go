package loadbalance

import (
	"net"
	"strconv"
	"sync"
)

// Machine is one compile server. Its load counts in-flight requests and
// is guarded by the machine's own mutex.
type Machine struct {
	IP   string
	Port int

	mu   sync.Mutex
	load uint64
}

// NewMachine creates an idle machine.
func NewMachine(ip string, port int) *Machine {
	return &Machine{IP: ip, Port: port}
}

// Addr returns host:port.
func (m *Machine) Addr() string {
	return net.JoinHostPort(m.IP, strconv.Itoa(m.Port))
}

func (m *Machine) IncLoad() {
	m.mu.Lock()
	m.load++
	m.mu.Unlock()
}

// DecLoad never drops the load below zero.
func (m *Machine) DecLoad() {
	m.mu.Lock()
	if m.load > 0 {
		m.load--
	}
	m.mu.Unlock()
}

func (m *Machine) ResetLoad() {
	m.mu.Lock()
	m.load = 0
	m.mu.Unlock()
}

func (m *Machine) Load() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load
}
