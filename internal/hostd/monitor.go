package hostd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hypercore/hc/internal/hcerr"
)

// Monitor commands in use. system_powerdown, blockdev-snapshot-sync, and
// transaction are reserved for future atomic multi-disk snapshot work and
// are never sent by GetOverlays.
const (
	cmdQMPCapabilities   = "qmp_capabilities"
	cmdStop              = "stop"
	cmdCont              = "cont"
	cmdQuit              = "quit"
	cmdSystemPowerdown   = "system_powerdown"
	cmdBlockdevSnapshot  = "blockdev-snapshot-sync"
	cmdTransaction       = "transaction"
)

const (
	monitorPollInterval = 50 * time.Millisecond
	monitorDialDeadline = 5 * time.Second
)

// monitorClient is a stateless client constructed per command. One
// connection per command keeps it memoryless and tolerant of the emulator
// racing to become ready on its first client interaction.
type monitorClient struct {
	socketPath string
}

func newMonitorClient(socketPath string) *monitorClient {
	return &monitorClient{socketPath: socketPath}
}

// waitForSocket polls until socketPath exists and is a unix socket, or the
// deadline elapses.
func waitForSocket(ctx context.Context, path string, deadline time.Time) error {
	for {
		if info, err := os.Stat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: monitor socket %s not ready", hcerr.ErrDeadlineExceeded, path)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(monitorPollInterval):
		}
	}
}

// command connects, performs the QMP-style greeting/capabilities handshake,
// sends one command object, and reads one response line before closing.
func (m *monitorClient) command(ctx context.Context, cmd map[string]any) error {
	deadline := time.Now().Add(monitorDialDeadline)
	if err := waitForSocket(ctx, m.socketPath, deadline); err != nil {
		return err
	}

	conn, err := net.Dial("unix", m.socketPath)
	if err != nil {
		return fmt.Errorf("%w: dial monitor socket: %v", hcerr.ErrInternal, err)
	}
	defer conn.Close()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	} else {
		_ = conn.SetDeadline(deadline)
	}

	r := bufio.NewReader(conn)

	// Greeting line.
	if _, err := r.ReadString('\n'); err != nil {
		return fmt.Errorf("%w: read greeting: %v", hcerr.ErrInternal, err)
	}

	if err := writeLine(conn, map[string]any{"execute": cmdQMPCapabilities}); err != nil {
		return err
	}
	if _, err := r.ReadString('\n'); err != nil {
		return fmt.Errorf("%w: read capabilities reply: %v", hcerr.ErrInternal, err)
	}

	if err := writeLine(conn, cmd); err != nil {
		return err
	}
	if _, err := r.ReadString('\n'); err != nil {
		return fmt.Errorf("%w: read command reply: %v", hcerr.ErrInternal, err)
	}
	return nil
}

func writeLine(conn net.Conn, v map[string]any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshal monitor command: %v", hcerr.ErrInternal, err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%w: write monitor command: %v", hcerr.ErrInternal, err)
	}
	return nil
}

func (m *monitorClient) pause(ctx context.Context) error {
	return m.command(ctx, map[string]any{"execute": cmdStop})
}

func (m *monitorClient) resume(ctx context.Context) error {
	return m.command(ctx, map[string]any{"execute": cmdCont})
}

func (m *monitorClient) quit(ctx context.Context) error {
	return m.command(ctx, map[string]any{"execute": cmdQuit})
}
