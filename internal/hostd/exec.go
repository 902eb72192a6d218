package hostd

import (
	"context"
	"fmt"
	"time"

	"github.com/hypercore/hc/internal/hcerr"
)

// Exec runs argv inside a guest via the configured guestexec.Executor,
// bounded by req.TimeoutSec.
func (h *Host) Exec(ctx context.Context, req *ExecRequest) (*ExecResponse, error) {
	if _, ok := h.lookup(req.VMID); !ok {
		return nil, fmt.Errorf("%w: vm %s", hcerr.ErrNotFound, req.VMID)
	}

	timeout := time.Duration(req.TimeoutSec) * time.Second
	result, err := h.executor.Exec(ctx, req.VMID, req.Argv, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: exec in vm %s: %v", hcerr.ErrInternal, req.VMID, err)
	}

	return &ExecResponse{
		ExitCode: result.ExitCode,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
	}, nil
}
