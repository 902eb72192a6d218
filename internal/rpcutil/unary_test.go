package rpcutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hypercore/hc/internal/hcerr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type echoServer struct{}

type echoRequest struct{ Msg string }
type echoResponse struct{ Msg string }

func (echoServer) Echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	if req.Msg == "" {
		return nil, fmt.Errorf("empty: %w", hcerr.ErrInvalidArgument)
	}
	return &echoResponse{Msg: req.Msg}, nil
}

func TestUnaryHandlerDecodesAndInvokes(t *testing.T) {
	handler := UnaryHandler(echoServer.Echo)

	dec := func(v any) error {
		*v.(*echoRequest) = echoRequest{Msg: "hi"}
		return nil
	}

	resp, err := handler(echoServer{}, context.Background(), dec, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if resp.(*echoResponse).Msg != "hi" {
		t.Errorf("resp = %+v, want Msg=hi", resp)
	}
}

func TestUnaryHandlerMapsMethodErrorToStatus(t *testing.T) {
	handler := UnaryHandler(echoServer.Echo)

	dec := func(v any) error {
		*v.(*echoRequest) = echoRequest{Msg: ""}
		return nil
	}

	_, err := handler(echoServer{}, context.Background(), dec, nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestUnaryHandlerPropagatesDecodeError(t *testing.T) {
	handler := UnaryHandler(echoServer.Echo)
	wantErr := errors.New("decode failed")
	dec := func(v any) error { return wantErr }

	_, err := handler(echoServer{}, context.Background(), dec, nil)
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	in := &echoRequest{Msg: "round-trip"}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out echoRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Msg != in.Msg {
		t.Errorf("round-tripped = %+v, want %+v", out, in)
	}
	if c.Name() != CodecName {
		t.Errorf("Name() = %q, want %q", c.Name(), CodecName)
	}
}
