package core

import (
	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/proto"
)

// Subscribe registers h as the persistent server-event handler and asks the
// server for events covering mask. The returned Operation resolves when the
// server has acknowledged the mask; events keep flowing to h until the
// context is torn down or Subscribe is called again (which replaces h).
func (c *Context) Subscribe(mask proto.SubscriptionMask, h func(proto.SubscriptionEvent), done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("subscribe"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.eventReg != nil {
		c.eventReg.Close()
		c.eventReg = nil
	}
	var tok bridge.Token
	if h != nil {
		c.eventReg = c.reg.Register(func(v any) {
			h(v.(proto.SubscriptionEvent))
		})
		tok = c.eventReg.Token()
	}
	op, opTok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	if h != nil {
		c.rt.SetSubscribeCallback(c.eventTramp, tok)
	} else {
		c.rt.SetSubscribeCallback(nil, 0)
	}
	c.rt.Subscribe(mask, c.successTramp, opTok)
	return op, nil
}

func (c *Context) eventTramp(tok bridge.Token, ev proto.SubscriptionEvent) {
	c.reg.Dispatch(tok, ev)
}
