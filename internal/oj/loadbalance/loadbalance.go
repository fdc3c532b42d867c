// Package loadbalance tracks the compile-server fleet and picks the least
// loaded online machine for each judge request.
package loadbalance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// ErrNoOnlineMachine is returned when every machine is offline.
var ErrNoOnlineMachine = errors.New("no online compile server")

// ErrNoCandidate is returned when every online machine was excluded.
var ErrNoCandidate = errors.New("no eligible compile server")

// MachineState is a point-in-time view of one machine.
type MachineState struct {
	ID     int    `json:"id"`
	Addr   string `json:"addr"`
	Load   uint64 `json:"load"`
	Online bool   `json:"online"`
}

// LoadBalancer holds the fleet. Machine ids are indexes into machines and
// never change; online and offline partition the ids.
type LoadBalancer struct {
	machines []*Machine

	mu      sync.Mutex
	online  []int
	offline []int
}

// New creates a balancer with every machine online.
func New(machines []*Machine) *LoadBalancer {
	lb := &LoadBalancer{
		machines: machines,
		online:   make([]int, 0, len(machines)),
	}
	for i := range machines {
		lb.online = append(lb.online, i)
	}
	return lb
}

// LoadConf reads a machine list file. An unreadable file is an error.
func LoadConf(path string) (*LoadBalancer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open machine list: %w", err)
	}
	defer file.Close()
	return ParseConf(file)
}

// ParseConf reads one ip:port per line. Blank lines and # comments are
// ignored; malformed lines are skipped with a warning.
func ParseConf(r io.Reader) (*LoadBalancer, error) {
	var machines []*Machine
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := parseMachine(line)
		if err != nil {
			logger.Warn(context.Background(), "skip malformed machine entry",
				zap.Int("line", lineNo), zap.String("entry", line), zap.Error(err))
			continue
		}
		machines = append(machines, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read machine list: %w", err)
	}
	logger.Info(context.Background(), "machine list loaded", zap.Int("machines", len(machines)))
	return New(machines), nil
}

func parseMachine(line string) (*Machine, error) {
	host, portStr, err := net.SplitHostPort(line)
	if err != nil {
		return nil, err
	}
	if host == "" {
		return nil, fmt.Errorf("empty host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", portStr)
	}
	return NewMachine(host, port), nil
}

// Len returns the number of configured machines.
func (lb *LoadBalancer) Len() int {
	return len(lb.machines)
}

// SelectLeastLoaded scans the online set; the first machine seen wins ties.
// Callers log the fleet-down case with their own context.
func (lb *LoadBalancer) SelectLeastLoaded() (int, *Machine, error) {
	return lb.SelectLeastLoadedExcept(nil)
}

// SelectLeastLoadedExcept is SelectLeastLoaded ignoring the ids in skip.
// It returns ErrNoCandidate when every online machine is skipped.
func (lb *LoadBalancer) SelectLeastLoadedExcept(skip map[int]struct{}) (int, *Machine, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(lb.online) == 0 {
		return -1, nil, ErrNoOnlineMachine
	}
	bestID := -1
	var bestLoad uint64
	for _, id := range lb.online {
		if _, skipped := skip[id]; skipped {
			continue
		}
		if load := lb.machines[id].Load(); bestID < 0 || load < bestLoad {
			bestID, bestLoad = id, load
		}
	}
	if bestID < 0 {
		return -1, nil, ErrNoCandidate
	}
	return bestID, lb.machines[bestID], nil
}

// MarkOffline resets the machine's load and moves it to the offline set.
// It is a no-op when id is not online.
func (lb *LoadBalancer) MarkOffline(id int) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	for i, onlineID := range lb.online {
		if onlineID != id {
			continue
		}
		lb.machines[id].ResetLoad()
		lb.online = append(lb.online[:i], lb.online[i+1:]...)
		lb.offline = append(lb.offline, id)
		logger.Warn(context.Background(), "compile server marked offline",
			zap.Int("machine_id", id), zap.String("addr", lb.machines[id].Addr()))
		return true
	}
	return false
}

// MarkAllOnline returns every offline machine to the online set and
// reports how many moved.
func (lb *LoadBalancer) MarkAllOnline() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	moved := len(lb.offline)
	lb.online = append(lb.online, lb.offline...)
	lb.offline = lb.offline[:0]
	logger.Info(context.Background(), "all compile servers marked online",
		zap.Int("recovered", moved), zap.Int("online", len(lb.online)))
	return moved
}

// OnlineCount returns the size of the online set.
func (lb *LoadBalancer) OnlineCount() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return len(lb.online)
}

// Snapshot lists every machine in id order.
func (lb *LoadBalancer) Snapshot() []MachineState {
	lb.mu.Lock()
	onlineSet := make(map[int]struct{}, len(lb.online))
	for _, id := range lb.online {
		onlineSet[id] = struct{}{}
	}
	lb.mu.Unlock()

	out := make([]MachineState, 0, len(lb.machines))
	for id, m := range lb.machines {
		_, online := onlineSet[id]
		out = append(out, MachineState{ID: id, Addr: m.Addr(), Load: m.Load(), Online: online})
	}
	return out
}
