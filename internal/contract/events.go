package contract

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mohsinsiddi/w3kit/internal/abi"
	"github.com/Mohsinsiddi/w3kit/internal/chain"
)

// DecodedLog is a log matched to an event, with one value per event input
// in declaration order.
type DecodedLog struct {
	Event *Event
	Args  []abi.Value
	Log   chain.Log
}

// Named returns the arguments keyed by input name. Unnamed inputs use
// their position.
func (d *DecodedLog) Named() map[string]abi.Value {
	out := make(map[string]abi.Value, len(d.Args))
	for i, in := range d.Event.Inputs {
		key := in.Name
		if key == "" {
			key = fmt.Sprintf("%d", i)
		}
		out[key] = d.Args[i]
	}
	return out
}

// Decode splits an event's arguments out of topics and data. Indexed
// inputs come from topics (after the signature topic unless the event is
// anonymous); an indexed input of dynamic type only carries its keccak
// hash, returned as bytes32. The rest are ABI-decoded from data.
func (e *Event) Decode(topics []common.Hash, data []byte) ([]abi.Value, error) {
	if !e.Anonymous {
		if len(topics) == 0 || topics[0] != e.Topic {
			return nil, fmt.Errorf("log is not a %s event", e.Signature)
		}
		topics = topics[1:]
	}
	indexed := e.Indexed()
	if len(topics) != len(indexed) {
		return nil, fmt.Errorf("%s: want %d indexed topics, got %d", e.Signature, len(indexed), len(topics))
	}

	var plain []abi.Type
	for _, in := range e.Inputs {
		if !in.Indexed {
			plain = append(plain, in.Type)
		}
	}
	body, err := abi.Decode(plain, data)
	if err != nil {
		return nil, fmt.Errorf("%s data: %w", e.Signature, err)
	}

	out := make([]abi.Value, len(e.Inputs))
	ti, di := 0, 0
	for i, in := range e.Inputs {
		if !in.Indexed {
			out[i] = body[di]
			di++
			continue
		}
		topic := topics[ti]
		ti++
		if in.Type.IsDynamic() || in.Type.Kind == abi.KindTuple || in.Type.Kind == abi.KindArray {
			out[i] = abi.FixedBytesValue(topic.Bytes())
			continue
		}
		v, err := abi.DecodeOne(in.Type, topic.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%s topic %q: %w", e.Signature, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// Topics builds an eth_getLogs topic filter for the event. filter holds
// one entry per indexed input; nil matches any value.
func (e *Event) Topics(filter ...any) ([][]common.Hash, error) {
	indexed := e.Indexed()
	if len(filter) > len(indexed) {
		return nil, fmt.Errorf("%s has %d indexed inputs, got %d filter values", e.Signature, len(indexed), len(filter))
	}
	var topics [][]common.Hash
	if !e.Anonymous {
		topics = append(topics, []common.Hash{e.Topic})
	}
	for i, raw := range filter {
		if raw == nil {
			topics = append(topics, nil)
			continue
		}
		h, err := topicValue(indexed[i].Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%s filter %q: %w", e.Signature, indexed[i].Name, err)
		}
		topics = append(topics, []common.Hash{h})
	}
	return topics, nil
}

// topicValue encodes an indexed value the way the EVM stores it in a topic.
func topicValue(t abi.Type, raw any) (common.Hash, error) {
	v, err := abi.Coerce(t, raw)
	if err != nil {
		return common.Hash{}, err
	}
	switch t.Kind {
	case abi.KindString:
		return common.BytesToHash(abi.Keccak256([]byte(v.Data.(string)))), nil
	case abi.KindBytes:
		return common.BytesToHash(abi.Keccak256(v.Data.([]byte))), nil
	case abi.KindArray, abi.KindTuple:
		return common.Hash{}, fmt.Errorf("filtering on indexed %s is not supported", t)
	}
	word, err := abi.Encode(v)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(word), nil
}
