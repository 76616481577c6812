package transport

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"code.hybscloud.com/iox"
	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/echodev/session"
)

// Client calls a remote device. Errors carry the same sentinels the device
// returns locally, so errors.Is works across the wire.
type Client struct {
	open    *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	read    *connect.Client[wrapperspb.UInt64Value, wrapperspb.BytesValue]
	write   *connect.Client[wrapperspb.BytesValue, wrapperspb.UInt64Value]
	control *connect.Client[wrapperspb.UInt64Value, wrapperspb.UInt64Value]
	close   *connect.Client[emptypb.Empty, emptypb.Empty]
}

// NewClient creates a Client for the device served at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		open:    connect.NewClient[emptypb.Empty, wrapperspb.StringValue](httpClient, baseURL+OpenProcedure, opts...),
		read:    connect.NewClient[wrapperspb.UInt64Value, wrapperspb.BytesValue](httpClient, baseURL+ReadProcedure, opts...),
		write:   connect.NewClient[wrapperspb.BytesValue, wrapperspb.UInt64Value](httpClient, baseURL+WriteProcedure, opts...),
		control: connect.NewClient[wrapperspb.UInt64Value, wrapperspb.UInt64Value](httpClient, baseURL+ControlProcedure, opts...),
		close:   connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+CloseProcedure, opts...),
	}
}

// Open starts a remote session and returns its identifier.
func (c *Client) Open(ctx context.Context, nonblocking bool) (string, error) {
	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(NonblockingHeader, strconv.FormatBool(nonblocking))

	res, err := c.open.CallUnary(ctx, req)
	if err != nil {
		return "", fromConnectError(err)
	}
	return res.Msg.GetValue(), nil
}

// Read returns up to count bytes from the session's cursor. An empty result
// means end of data.
func (c *Client) Read(ctx context.Context, id string, count int) ([]byte, error) {
	if count < 0 {
		count = 0
	}
	req := connect.NewRequest(wrapperspb.UInt64(uint64(count)))
	req.Header().Set(SessionHeader, id)

	res, err := c.read.CallUnary(ctx, req)
	if err != nil {
		return nil, fromConnectError(err)
	}
	return res.Msg.GetValue(), nil
}

// Write stores data at the session's cursor and reports how many bytes fit.
func (c *Client) Write(ctx context.Context, id string, data []byte) (n int, truncated bool, err error) {
	req := connect.NewRequest(wrapperspb.Bytes(data))
	req.Header().Set(SessionHeader, id)

	res, err := c.write.CallUnary(ctx, req)
	if err != nil {
		return 0, false, fromConnectError(err)
	}
	truncated, _ = strconv.ParseBool(res.Header().Get(TruncatedHeader))
	return int(res.Msg.GetValue()), truncated, nil
}

// Control runs code with arg for the session and returns the result value.
func (c *Client) Control(ctx context.Context, id string, code session.Code, arg uint64) (uint64, error) {
	req := connect.NewRequest(wrapperspb.UInt64(arg))
	req.Header().Set(SessionHeader, id)
	req.Header().Set(CodeHeader, strconv.FormatUint(uint64(code), 10))

	res, err := c.control.CallUnary(ctx, req)
	if err != nil {
		return 0, fromConnectError(err)
	}
	return res.Msg.GetValue(), nil
}

// Close ends the remote session.
func (c *Client) Close(ctx context.Context, id string) error {
	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(SessionHeader, id)

	if _, err := c.close.CallUnary(ctx, req); err != nil {
		return fromConnectError(err)
	}
	return nil
}

// Retry calls fn until it returns something other than iox.ErrWouldBlock,
// backing off between attempts. It gives up with the context's error.
func Retry(ctx context.Context, fn func() error) error {
	var bo iox.Backoff
	for {
		err := fn()
		if !errors.Is(err, iox.ErrWouldBlock) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		bo.Wait()
	}
}
