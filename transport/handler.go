package transport

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/echodev/device"
	"github.com/tailored-agentic-units/echodev/observability"
	"github.com/tailored-agentic-units/echodev/session"
)

type deviceHandler struct {
	device *device.Device
}

// NewHandler builds the HTTP handler serving every device procedure and
// returns it with the path prefix to mount it on. Calls are reported to
// observer; opts are applied after the observer interceptor.
func NewHandler(d *device.Device, observer observability.Observer, opts ...connect.HandlerOption) (string, http.Handler) {
	h := &deviceHandler{device: d}
	opts = append([]connect.HandlerOption{
		connect.WithInterceptors(NewObserverInterceptor(observer)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(OpenProcedure, connect.NewUnaryHandler(OpenProcedure, h.open, opts...))
	mux.Handle(ReadProcedure, connect.NewUnaryHandler(ReadProcedure, h.read, opts...))
	mux.Handle(WriteProcedure, connect.NewUnaryHandler(WriteProcedure, h.write, opts...))
	mux.Handle(ControlProcedure, connect.NewUnaryHandler(ControlProcedure, h.control, opts...))
	mux.Handle(CloseProcedure, connect.NewUnaryHandler(CloseProcedure, h.close, opts...))

	return "/" + ServiceName + "/", mux
}

func (h *deviceHandler) open(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.StringValue], error) {
	var opts []session.Option
	if v := req.Header().Get(NonblockingHeader); v != "" {
		nonblocking, err := strconv.ParseBool(v)
		if err != nil {
			return nil, toConnectError(fmt.Errorf("%w: %s: %q", ErrBadHeader, NonblockingHeader, v))
		}
		if nonblocking {
			opts = append(opts, session.Nonblocking())
		} else {
			opts = append(opts, session.Blocking())
		}
	}

	s, err := h.device.Open(ctx, opts...)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.String(s.ID())), nil
}

func (h *deviceHandler) read(ctx context.Context, req *connect.Request[wrapperspb.UInt64Value]) (*connect.Response[wrapperspb.BytesValue], error) {
	count := req.Msg.GetValue()
	if count > math.MaxInt32 {
		count = math.MaxInt32
	}

	data, err := h.device.Read(ctx, req.Header().Get(SessionHeader), int(count))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.Bytes(data)), nil
}

func (h *deviceHandler) write(ctx context.Context, req *connect.Request[wrapperspb.BytesValue]) (*connect.Response[wrapperspb.UInt64Value], error) {
	n, truncated, err := h.device.Write(ctx, req.Header().Get(SessionHeader), req.Msg.GetValue())
	if err != nil {
		return nil, toConnectError(err)
	}

	res := connect.NewResponse(wrapperspb.UInt64(uint64(n)))
	res.Header().Set(TruncatedHeader, strconv.FormatBool(truncated))
	return res, nil
}

func (h *deviceHandler) control(ctx context.Context, req *connect.Request[wrapperspb.UInt64Value]) (*connect.Response[wrapperspb.UInt64Value], error) {
	raw := req.Header().Get(CodeHeader)
	code, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("%w: %s: %q", ErrBadHeader, CodeHeader, raw))
	}

	out, err := h.device.Control(ctx, req.Header().Get(SessionHeader), session.Code(code), session.EncodeSize(req.Msg.GetValue()))
	if err != nil {
		return nil, toConnectError(err)
	}

	v, err := session.DecodeSize(out)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.UInt64(v)), nil
}

func (h *deviceHandler) close(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
	if err := h.device.Close(ctx, req.Header().Get(SessionHeader)); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}
