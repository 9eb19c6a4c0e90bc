package engine

import (
	"sync"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/value"
)

// Channel effect names. Registered by New on every engine.
const (
	NameChanOpen = "weft/chan/open"
	NameChanSend = "weft/chan/send"
	NameChanRecv = "weft/chan/recv"
)

// channelTable holds the engine's FIFO message queues.
//
// Channel IDs are allocated sequentially, so a program that opens channels
// in a fixed order sees the same IDs on every run. Receiving from an empty
// channel is not an error: recv returns a left injection so programs can
// branch on emptiness instead of blocking.
type channelTable struct {
	mu     sync.Mutex
	queues map[value.ChannelID][]value.Value
	nextID uint64
}

func newChannelTable() *channelTable {
	return &channelTable{queues: make(map[value.ChannelID][]value.Value)}
}

// Open allocates a new empty channel.
func (c *channelTable) Open() value.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := value.ChannelID(c.nextID)
	c.queues[id] = nil
	return id
}

// Push appends v to the back of the channel.
func (c *channelTable) Push(ch value.ChannelID, v value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.queues[ch]; !ok {
		return &UnknownChannelError{Channel: ch}
	}
	c.queues[ch] = append(c.queues[ch], v)
	return nil
}

// Pop removes and returns the front value. The second return is false
// when the channel is empty.
func (c *channelTable) Pop(ch value.ChannelID) (value.Value, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[ch]
	if !ok {
		return nil, false, &UnknownChannelError{Channel: ch}
	}
	if len(q) == 0 {
		return nil, false, nil
	}
	v := q[0]
	c.queues[ch] = q[1:]
	return v, true, nil
}

// Len returns the queue depth, or an error for an unknown channel.
func (c *channelTable) Len(ch value.ChannelID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[ch]
	if !ok {
		return 0, &UnknownChannelError{Channel: ch}
	}
	return len(q), nil
}

// registerChannelEffects binds the channel built-ins to an engine's table.
// Registered during construction, so registration errors are programming
// mistakes and surface as a construction failure.
func registerChannelEffects(reg *effect.Registry, channels *channelTable) error {
	if _, err := reg.Register(effect.Spec{
		Name:    NameChanOpen,
		Outputs: []value.Kind{value.KindChannel},
		GasCost: 2,
	}, func(effect.Call) effect.Outcome {
		return effect.Complete{Results: []value.Value{channels.Open()}}
	}); err != nil {
		return err
	}

	if _, err := reg.Register(effect.Spec{
		Name:    NameChanSend,
		Inputs:  []value.Kind{value.KindChannel, value.KindAny},
		Outputs: []value.Kind{value.KindUnit},
		GasCost: 2,
	}, func(call effect.Call) effect.Outcome {
		ch := call.Args[0].(value.ChannelID)
		if err := channels.Push(ch, call.Args[1]); err != nil {
			return effect.Rejected{Reason: err.Error()}
		}
		return effect.Complete{Results: []value.Value{value.Unit{}}}
	}); err != nil {
		return err
	}

	_, err := reg.Register(effect.Spec{
		Name:    NameChanRecv,
		Inputs:  []value.Kind{value.KindChannel},
		Outputs: []value.Kind{value.KindSum},
		GasCost: 2,
	}, func(call effect.Call) effect.Outcome {
		ch := call.Args[0].(value.ChannelID)
		v, ok, err := channels.Pop(ch)
		if err != nil {
			return effect.Rejected{Reason: err.Error()}
		}
		if !ok {
			return effect.Complete{Results: []value.Value{value.Sum{Side: value.Left, Inner: value.Unit{}}}}
		}
		return effect.Complete{Results: []value.Value{value.Sum{Side: value.Right, Inner: v}}}
	})
	return err
}
