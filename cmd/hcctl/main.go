// Command hcctl is a thin CLI client for the Controller's gRPC surface:
// pool management, warm-pool reconciliation, forking, and acquire/release
// handoff, for operators and scripts driving the fleet by hand.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hypercore/hc/internal/controlplane"
	"github.com/hypercore/hc/internal/rpcutil"
	"github.com/hypercore/hc/internal/shape"
)

var controllerAddr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hcctl",
		Short: "hcctl drives the Controller's pool, warm-pool, fork, and acquire/release surface",
	}
	rootCmd.PersistentFlags().StringVar(&controllerAddr, "controller", "localhost:50051", "Controller gRPC address")

	rootCmd.AddCommand(
		createPoolCmd(),
		listPoolsCmd(),
		ensureWarmCmd(),
		forkCmd(),
		acquireCmd(),
		releaseCmd(),
		execCmd(),
		healthCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() (*grpc.ClientConn, error) {
	return grpc.NewClient(controllerAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		rpcutil.DialOption(),
	)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func ctxWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func createPoolCmd() *cobra.Command {
	var name, tenantID string
	cmd := &cobra.Command{
		Use:   "create-pool",
		Short: "create a new pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.Pool)
			req := &controlplane.CreatePoolRequest{Spec: controlplane.CreatePoolSpec{Name: name, TenantID: tenantID}}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/CreatePool", req, out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "pool name")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	return cmd
}

func listPoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-pools",
		Short: "list every pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.ListPoolsResponse)
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/ListPools", &controlplane.Empty{}, out); err != nil {
				return err
			}
			printJSON(out.Pools)
			return nil
		},
	}
}

func ensureWarmCmd() *cobra.Command {
	var poolID string
	var vcpu, ramGB, target int
	var gpuModel string
	cmd := &cobra.Command{
		Use:   "ensure-warm",
		Short: "reconcile a pool's warm queue for a shape up to a target count",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.EnsureWarmPoolResponse)
			req := &controlplane.EnsureWarmPoolRequest{
				PoolID: poolID,
				Shape:  shape.Shape{VCPU: vcpu, RAMGB: ramGB, GPUModel: gpuModel},
				Target: target,
			}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/EnsureWarm", req, out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&poolID, "pool", "", "pool ID")
	cmd.Flags().IntVar(&vcpu, "vcpu", 2, "vCPU count")
	cmd.Flags().IntVar(&ramGB, "ram-gb", 4, "RAM in GB")
	cmd.Flags().StringVar(&gpuModel, "gpu-model", "", "GPU model, empty for no GPU")
	cmd.Flags().IntVar(&target, "target", 1, "target warm count")
	return cmd
}

func forkCmd() *cobra.Command {
	var vmID string
	var howMany int
	cmd := &cobra.Command{
		Use:   "fork",
		Short: "clone a running VM into N warm children via overlay cloning",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.ForkResponse)
			req := &controlplane.ForkRequest{VMID: vmID, HowMany: howMany}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/Fork", req, out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&vmID, "vm", "", "parent VM ID")
	cmd.Flags().IntVar(&howMany, "how-many", 1, "number of children")
	return cmd
}

func acquireCmd() *cobra.Command {
	var vcpu, ramGB int
	var gpuModel string
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "dequeue and commit a warm VM matching a shape",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.AcquireResponse)
			req := &controlplane.AcquireRequest{Shape: shape.Shape{VCPU: vcpu, RAMGB: ramGB, GPUModel: gpuModel}}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/Acquire", req, out); err != nil {
				return err
			}
			printJSON(out.VM)
			return nil
		},
	}
	cmd.Flags().IntVar(&vcpu, "vcpu", 2, "vCPU count")
	cmd.Flags().IntVar(&ramGB, "ram-gb", 4, "RAM in GB")
	cmd.Flags().StringVar(&gpuModel, "gpu-model", "", "GPU model, empty for no GPU")
	return cmd
}

func releaseCmd() *cobra.Command {
	var vmID string
	var recycle bool
	cmd := &cobra.Command{
		Use:   "release",
		Short: "release a VM, recycling it back to the warm queue or destroying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			req := &controlplane.ReleaseRequest{VMID: vmID, Recycle: recycle}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/Release", req, new(controlplane.Empty)); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&vmID, "vm", "", "VM ID")
	cmd.Flags().BoolVar(&recycle, "recycle", true, "recycle back to warm queue instead of destroying")
	return cmd
}

func execCmd() *cobra.Command {
	var vmID string
	var timeoutSec int
	cmd := &cobra.Command{
		Use:   "exec -- <argv...>",
		Short: "run a command inside a VM via its host's guest executor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.ExecResponse)
			req := &controlplane.ExecRequest{VMID: vmID, Argv: args, TimeoutSec: timeoutSec}
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/Exec", req, out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&vmID, "vm", "", "VM ID")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 0, "exec timeout in seconds, 0 for none")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "check Controller health",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := dial()
			if err != nil {
				return err
			}
			defer conn.Close()
			ctx, cancel := ctxWithTimeout()
			defer cancel()

			out := new(controlplane.HealthResponse)
			if err := rpcutil.Invoke(ctx, conn, "/hc.Controller/Health", &controlplane.Empty{}, out); err != nil {
				return err
			}
			printJSON(out)
			return nil
		},
	}
}
