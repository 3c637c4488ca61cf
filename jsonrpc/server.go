package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ttc-protocol/ttc-monitor/log"
	"github.com/ttc-protocol/ttc-monitor/metrics"
)

var logger = log.NewModuleLogger(log.JSONRPC)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// Server is a reflection-based JSON-RPC 2.0 method dispatcher: callbacks
// are plain Go functions taking a leading context.Context (optional) and
// positional arguments decoded from the JSON-RPC "params" array,
// returning (result, error) or just error.
type Server struct {
	methods map[string]*callback
}

type callback struct {
	fn       reflect.Value
	argTypes []reflect.Type
	hasCtx   bool
	hasOut   bool
}

func NewServer() *Server {
	return &Server{methods: make(map[string]*callback)}
}

// RegisterMethod exposes fn under name. fn must be a func whose first
// parameter may be context.Context, whose remaining parameters are
// JSON-decodable, and which returns either just error or (T, error).
func (s *Server) RegisterMethod(name string, fn interface{}) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic(fmt.Sprintf("jsonrpc: RegisterMethod(%q): not a func", name))
	}

	cb := &callback{fn: v}
	start := 0
	if t.NumIn() > 0 && t.In(0) == ctxType {
		cb.hasCtx = true
		start = 1
	}
	for i := start; i < t.NumIn(); i++ {
		cb.argTypes = append(cb.argTypes, t.In(i))
	}

	switch t.NumOut() {
	case 1:
		if t.Out(0) != errType {
			panic(fmt.Sprintf("jsonrpc: RegisterMethod(%q): single return must be error", name))
		}
		cb.hasOut = false
	case 2:
		if t.Out(1) != errType {
			panic(fmt.Sprintf("jsonrpc: RegisterMethod(%q): second return must be error", name))
		}
		cb.hasOut = true
	default:
		panic(fmt.Sprintf("jsonrpc: RegisterMethod(%q): must return (T, error) or error", name))
	}

	s.methods[name] = cb
}

// Handle decodes and dispatches one Request, returning the Response to
// write back. It never panics outward: a handler panic is recovered and
// reported as an internal error so one bad call cannot take down the
// server loop.
func (s *Server) Handle(ctx context.Context, req *Request) (resp *Response) {
	resp = &Response{JSONRPC: Version, ID: req.ID}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("jsonrpc handler panicked", "method", req.Method, "recover", r)
			resp.Error = &Error{Code: CodeInternalError, Message: "internal error"}
		}
	}()

	cb, ok := s.methods[req.Method]
	if !ok {
		resp.Error = &Error{Code: CodeMethodNotFound, Message: "method not found", Data: req.Method}
		return resp
	}
	// Counted only for registered methods so arbitrary client strings
	// cannot grow the label space.
	metrics.RPCRequests.WithLabelValues(req.Method).Inc()

	var rawArgs []json.RawMessage
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &rawArgs); err != nil {
			resp.Error = &Error{Code: CodeInvalidParams, Message: "params must be an array"}
			return resp
		}
	}
	if len(rawArgs) != len(cb.argTypes) {
		resp.Error = &Error{Code: CodeInvalidParams,
			Message: fmt.Sprintf("expected %d params, got %d", len(cb.argTypes), len(rawArgs))}
		return resp
	}

	var callArgs []reflect.Value
	if cb.hasCtx {
		callArgs = append(callArgs, reflect.ValueOf(ctx))
	}
	for i, at := range cb.argTypes {
		argPtr := reflect.New(at)
		if err := json.Unmarshal(rawArgs[i], argPtr.Interface()); err != nil {
			resp.Error = &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("param %d: %v", i, err)}
			return resp
		}
		callArgs = append(callArgs, argPtr.Elem())
	}

	out := cb.fn.Call(callArgs)

	var errVal reflect.Value
	var resultVal reflect.Value
	if cb.hasOut {
		resultVal, errVal = out[0], out[1]
	} else {
		errVal = out[0]
	}

	if !errVal.IsNil() {
		resp.Error = ToRPCError(errVal.Interface().(error))
		return resp
	}

	if cb.hasOut {
		raw, err := json.Marshal(resultVal.Interface())
		if err != nil {
			resp.Error = &Error{Code: CodeInternalError, Message: "failed to encode result"}
			return resp
		}
		resp.Result = raw
	} else {
		resp.Result = json.RawMessage("true")
	}
	return resp
}
