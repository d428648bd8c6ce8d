package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/mirabel/types"
)

func (c *Conn) handleRPCRequest(ctx context.Context, m *types.RPCRequestMessage) {
	call := types.RPCInvocation{
		RequestID: m.RequestID,
		Method:    m.Method,
		Caller:    m.Caller,
		Payload:   m.Payload,
	}

	c.mu.Lock()
	h, ok := c.rpcHs[m.Method]
	if ok && c.isClosedLocked() {
		c.mu.Unlock()
		return
	}
	if ok {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn("rpc for unregistered method", map[string]any{
			"method": m.Method,
			"caller": m.Caller,
		})
		c.respond(m.RequestID, "", fmt.Errorf("unsupported method %q", m.Method))
		return
	}

	go func() {
		defer c.wg.Done()
		payload, err := h(ctx, call)
		c.respond(m.RequestID, payload, err)
	}()
}

func (c *Conn) respond(requestID, payload string, herr error) {
	resp := &types.RPCResponseMessage{
		Header:    types.Header{Type: types.MsgRPCResponse},
		RequestID: requestID,
		Payload:   payload,
	}
	if herr != nil {
		resp.Error = herr.Error()
	}
	if err := c.send(&resp.Header, resp); err != nil {
		c.logger.Warn("rpc response not sent", map[string]any{
			"request_id": requestID,
			"error":      err.Error(),
		})
	}
}

func (c *Conn) handleRPCResult(m *types.RPCResultMessage) {
	c.mu.Lock()
	ch, ok := c.pending[m.RequestID]
	delete(c.pending, m.RequestID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("late or unknown rpc result dropped", map[string]any{
			"request_id": m.RequestID,
		})
		return
	}
	ch <- *m
}

// PerformRPC sends an rpc_call. When results are awaited it blocks until the
// matching rpc_result, the RPC timeout, ctx, or the pipe ends.
func (c *Conn) PerformRPC(ctx context.Context, destination, method, payload string) (string, error) {
	call := &types.RPCCallMessage{
		Header:      types.Header{Type: types.MsgRPCCall},
		RequestID:   c.newID(),
		Destination: destination,
		Method:      method,
		Payload:     payload,
	}
	if !c.await {
		return "", c.send(&call.Header, call)
	}

	ch := make(chan types.RPCResultMessage, 1)
	c.mu.Lock()
	if c.isClosedLocked() {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.pending[call.RequestID] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, call.RequestID)
		c.mu.Unlock()
	}

	if err := c.send(&call.Header, call); err != nil {
		forget()
		return "", err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res, ok := <-ch:
		if !ok {
			return "", ErrClosed
		}
		if res.Error != "" {
			return "", &RemoteError{Method: method, Msg: res.Error}
		}
		return res.Payload, nil
	case <-timer.C:
		forget()
		c.logger.Warn("rpc timed out", map[string]any{
			"method":      method,
			"destination": destination,
			"request_id":  call.RequestID,
			"timeout":     c.timeout.String(),
		})
		return "", fmt.Errorf("rpc %s: %w", method, ErrRPCTimeout)
	case <-ctx.Done():
		forget()
		return "", ctx.Err()
	}
}
