package core

import (
	"github.com/lisuiheng/pulse-go/bridge"
	"github.com/lisuiheng/pulse-go/proto"
)

// Introspection and control requests. All of them require a Ready context,
// return immediately with an Operation handle, and deliver their result
// later on the mainloop dispatch context.

type sinkItem struct {
	info *proto.SinkInfo
	eol  bool
}

type sourceItem struct {
	info *proto.SourceInfo
	eol  bool
}

// GetServerInfo queries the daemon description.
func (c *Context) GetServerInfo(done func(*proto.ServerInfo)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("get server info"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newOpLocked(func(v any) {
		if done != nil {
			done(v.(*proto.ServerInfo))
		}
	})
	c.mu.Unlock()

	c.rt.GetServerInfo(c.serverInfoTramp, tok)
	return op, nil
}

// GetSinkInfoList queries every sink. The server delivers the list item by
// item; done receives the collected result once.
func (c *Context) GetSinkInfoList(done func([]*proto.SinkInfo)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("list sinks"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op := &Operation{ctx: c}
	var list []*proto.SinkInfo
	op.reg = c.reg.Register(func(v any) {
		item := v.(sinkItem)
		if !item.eol {
			list = append(list, item.info)
			return
		}
		op.reg.Close()
		if op.complete() && done != nil {
			done(list)
		}
		c.removeOp(op)
	})
	c.ops[op] = struct{}{}
	tok := op.reg.Token()
	c.mu.Unlock()

	c.rt.GetSinkInfoList(c.sinkInfoTramp, tok)
	return op, nil
}

// GetSinkInfoByIndex queries one sink. done receives nil if the index
// names nothing.
func (c *Context) GetSinkInfoByIndex(index uint32, done func(*proto.SinkInfo)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("get sink info"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op := &Operation{ctx: c}
	var found *proto.SinkInfo
	op.reg = c.reg.Register(func(v any) {
		item := v.(sinkItem)
		if !item.eol {
			found = item.info
			return
		}
		op.reg.Close()
		if op.complete() && done != nil {
			done(found)
		}
		c.removeOp(op)
	})
	c.ops[op] = struct{}{}
	tok := op.reg.Token()
	c.mu.Unlock()

	c.rt.GetSinkInfoByIndex(index, c.sinkInfoTramp, tok)
	return op, nil
}

// GetSourceInfoList queries every source.
func (c *Context) GetSourceInfoList(done func([]*proto.SourceInfo)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("list sources"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op := &Operation{ctx: c}
	var list []*proto.SourceInfo
	op.reg = c.reg.Register(func(v any) {
		item := v.(sourceItem)
		if !item.eol {
			list = append(list, item.info)
			return
		}
		op.reg.Close()
		if op.complete() && done != nil {
			done(list)
		}
		c.removeOp(op)
	})
	c.ops[op] = struct{}{}
	tok := op.reg.Token()
	c.mu.Unlock()

	c.rt.GetSourceInfoList(c.sourceInfoTramp, tok)
	return op, nil
}

// SetSinkVolume replaces the volume vector of one sink.
func (c *Context) SetSinkVolume(index uint32, volume proto.CVolume, done func(error)) (*Operation, error) {
	if !volume.Valid() {
		return nil, ErrInvalidSpec
	}
	c.mu.Lock()
	if err := c.checkReadyLocked("set sink volume"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetSinkVolume(index, volume, c.successTramp, tok)
	return op, nil
}

// SetSinkMute mutes or unmutes one sink.
func (c *Context) SetSinkMute(index uint32, mute bool, done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("set sink mute"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetSinkMute(index, mute, c.successTramp, tok)
	return op, nil
}

// SetSourceVolume replaces the volume vector of one source.
func (c *Context) SetSourceVolume(index uint32, volume proto.CVolume, done func(error)) (*Operation, error) {
	if !volume.Valid() {
		return nil, ErrInvalidSpec
	}
	c.mu.Lock()
	if err := c.checkReadyLocked("set source volume"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetSourceVolume(index, volume, c.successTramp, tok)
	return op, nil
}

// SetSourceMute mutes or unmutes one source.
func (c *Context) SetSourceMute(index uint32, mute bool, done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("set source mute"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetSourceMute(index, mute, c.successTramp, tok)
	return op, nil
}

// SetDefaultSink changes the server's default playback device.
func (c *Context) SetDefaultSink(name string, done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("set default sink"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetDefaultSink(name, c.successTramp, tok)
	return op, nil
}

// SetDefaultSource changes the server's default capture device.
func (c *Context) SetDefaultSource(name string, done func(error)) (*Operation, error) {
	c.mu.Lock()
	if err := c.checkReadyLocked("set default source"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	op, tok := c.newSuccessOpLocked(done)
	c.mu.Unlock()

	c.rt.SetDefaultSource(name, c.successTramp, tok)
	return op, nil
}

func (c *Context) serverInfoTramp(tok bridge.Token, info *proto.ServerInfo) {
	c.reg.Dispatch(tok, info)
}

func (c *Context) sinkInfoTramp(tok bridge.Token, info *proto.SinkInfo, eol bool) {
	c.reg.Dispatch(tok, sinkItem{info: info, eol: eol})
}

func (c *Context) sourceInfoTramp(tok bridge.Token, info *proto.SourceInfo, eol bool) {
	c.reg.Dispatch(tok, sourceItem{info: info, eol: eol})
}
