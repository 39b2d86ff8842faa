// Package sysnames loads the OS-supplied service-name and protocol-name
// tables once per process and exposes case-sensitive name/number lookups.
package sysnames

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"

	"pvefw.dev/core/internal/logging"
)

// Service records a single /etc/services entry: a name bound to a port
// number, with a note of which transport(s) it was seen under.
type Service struct {
	Name string
	Port int
	TCP  bool
	UDP  bool
}

// Protocol records a single /etc/protocols entry.
type Protocol struct {
	Name   string
	Number int
}

// Directory is a process-wide, read-only-after-init index of services and
// protocols. Safe for concurrent use once loaded.
type Directory struct {
	servicesByName map[string]Service
	servicesByPort map[int]Service // keyed by port; last transport wins on collision, matching /etc/services ordering
	protosByName   map[string]Protocol
	protosByNumber map[int]Protocol
}

var (
	defaultOnce sync.Once
	defaultDir  *Directory
)

// Default returns the process-wide directory, loading
// /etc/services and /etc/protocols on first use.
func Default() *Directory {
	defaultOnce.Do(func() {
		defaultDir = Load("/etc/services", "/etc/protocols")
	})
	return defaultDir
}

// Load builds a Directory from the given services and protocols file
// paths. A missing or unreadable file degrades to an empty table for that
// side, with a warning logged; it never fails the process.
func Load(servicesPath, protocolsPath string) *Directory {
	d := &Directory{
		servicesByName: make(map[string]Service),
		servicesByPort: make(map[int]Service),
		protosByName:   make(map[string]Protocol),
		protosByNumber: make(map[int]Protocol),
	}

	if err := d.loadServices(servicesPath); err != nil {
		logging.WithComponent("sysnames").Warn("failed to load services table", "file", servicesPath, "error", err)
	}
	if err := d.loadProtocols(protocolsPath); err != nil {
		logging.WithComponent("sysnames").Warn("failed to load protocols table", "file", protocolsPath, "error", err)
	}

	return d
}

// loadServices parses lines of the form "name  number/proto  [aliases...]  [# comment]".
func (d *Directory) loadServices(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		portProto := fields[1]
		slash := strings.IndexByte(portProto, '/')
		if slash < 0 {
			continue
		}
		port, err := strconv.Atoi(portProto[:slash])
		if err != nil {
			continue
		}
		proto := strings.ToLower(portProto[slash+1:])

		svc, ok := d.servicesByName[name]
		if !ok {
			svc = Service{Name: name, Port: port}
		}
		switch proto {
		case "tcp":
			svc.TCP = true
		case "udp":
			svc.UDP = true
		}
		d.servicesByName[name] = svc
		d.servicesByPort[port] = svc
	}
	return scanner.Err()
}

// loadProtocols parses lines of the form "name  number  [aliases...]  [# comment]".
func (d *Directory) loadProtocols(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := fields[0]
		number, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		p := Protocol{Name: name, Number: number}
		d.protosByName[name] = p
		d.protosByNumber[number] = p
	}
	return scanner.Err()
}

// LookupServiceByName resolves a service name to its Service entry.
func (d *Directory) LookupServiceByName(name string) (Service, bool) {
	s, ok := d.servicesByName[name]
	return s, ok
}

// LookupServiceByPort resolves a port number to its canonical Service entry.
func (d *Directory) LookupServiceByPort(port int) (Service, bool) {
	s, ok := d.servicesByPort[port]
	return s, ok
}

// LookupProtocolByName resolves a protocol name to its Protocol entry.
func (d *Directory) LookupProtocolByName(name string) (Protocol, bool) {
	p, ok := d.protosByName[name]
	return p, ok
}

// LookupProtocolByNumber resolves a protocol number to its Protocol entry.
func (d *Directory) LookupProtocolByNumber(number int) (Protocol, bool) {
	p, ok := d.protosByNumber[number]
	return p, ok
}

// ResolvePort resolves a port token that is either a decimal number or a
// service name, returning the numeric port.
func (d *Directory) ResolvePort(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		return n, true
	}
	if s, ok := d.LookupServiceByName(token); ok {
		return s.Port, true
	}
	return 0, false
}

// ResolveProtocol resolves a protocol token that is either a decimal
// number or a protocol name, returning the numeric protocol id.
func (d *Directory) ResolveProtocol(token string) (int, bool) {
	if n, err := strconv.Atoi(token); err == nil {
		return n, true
	}
	if p, ok := d.LookupProtocolByName(token); ok {
		return p.Number, true
	}
	return 0, false
}
