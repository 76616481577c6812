package transport

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/echodev/observability"
)

// EventCall is emitted once per handled procedure.
const EventCall observability.EventType = "transport.call"

// NewObserverInterceptor reports every unary call, with its duration and, on
// failure, its Connect code.
func NewObserverInterceptor(observer observability.Observer) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			level := observability.LevelVerbose
			data := map[string]any{
				"procedure": req.Spec().Procedure,
				"peer":      req.Peer().Addr,
				"duration":  time.Since(start),
			}
			if err != nil {
				level = observability.LevelWarning
				data["code"] = connect.CodeOf(err).String()
			}

			observer.OnEvent(ctx, observability.Event{
				Type:      EventCall,
				Level:     level,
				Timestamp: start,
				Source:    "transport",
				Session:   req.Header().Get(SessionHeader),
				Data:      data,
			})
			return res, err
		}
	}
}
