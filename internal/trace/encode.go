package trace

import (
	"fmt"
	"sort"

	"github.com/weftlabs/weft/internal/content"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Canonical encode/decode for sealed traces. The encoding is the persisted
// form in the trace archive and the input to the trace hash; the hash is
// computed over these bytes minus the hash itself.

// Encode returns the canonical encoding of the trace, excluding TraceHash.
func Encode(t *ExecutionTrace) []byte {
	e := content.NewEncoder()

	e.Bytes32(t.ProgramHash)
	e.Tag(byte(t.Terminus.Kind))
	e.String(t.Terminus.TrapKind)
	e.String(t.ContinuationToken)

	if t.Result != nil {
		e.Bool(true)
		value.Encode(e, t.Result)
	} else {
		e.Bool(false)
	}
	e.U64(t.GasRemaining)

	e.U32(uint32(len(t.ExecutedEffects)))
	for _, id := range t.ExecutedEffects {
		e.Bytes32(id)
	}

	detailIDs := make([]EffectID, 0, len(t.EffectDetails))
	for id := range t.EffectDetails {
		detailIDs = append(detailIDs, id)
	}
	sort.Slice(detailIDs, func(i, j int) bool { return detailIDs[i].Compare(detailIDs[j]) < 0 })
	e.U32(uint32(len(detailIDs)))
	for _, id := range detailIDs {
		e.Bytes32(id)
		encodeEffectRecord(e, t.EffectDetails[id])
	}

	stateIDs := make([]resource.ID, 0, len(t.FinalResourceStates))
	for id := range t.FinalResourceStates {
		stateIDs = append(stateIDs, id)
	}
	sort.Slice(stateIDs, func(i, j int) bool { return stateIDs[i].Compare(stateIDs[j]) < 0 })
	e.U32(uint32(len(stateIDs)))
	for _, id := range stateIDs {
		e.Bytes32(id)
		e.Tag(byte(t.FinalResourceStates[id]))
	}

	ctxKeys := make([]string, 0, len(t.ContextValues))
	for k := range t.ContextValues {
		ctxKeys = append(ctxKeys, k)
	}
	sort.Strings(ctxKeys)
	e.U32(uint32(len(ctxKeys)))
	for _, k := range ctxKeys {
		e.String(k)
		value.Encode(e, t.ContextValues[k])
	}

	return e.Bytes()
}

func encodeEffectRecord(e *content.Encoder, r EffectRecord) {
	e.Bytes32(r.EffectType)
	e.String(r.EffectName)
	e.U32(uint32(len(r.InputResources)))
	for _, id := range r.InputResources {
		e.Bytes32(id)
	}
	e.U32(uint32(len(r.OutputResources)))
	for _, id := range r.OutputResources {
		e.Bytes32(id)
	}
	e.U32(uint32(len(r.Constraints)))
	for _, c := range r.Constraints {
		e.String(c)
	}
	e.U32(r.PrePC)
	e.U32(r.PostPC)
	e.U64(r.LogicalTime)
}

// Seal computes the trace hash over the canonical encoding, stores it on
// the trace, and returns the pair the execute caller receives.
func Seal(t *ExecutionTrace) (*ExecutionTrace, content.Hash) {
	t.TraceHash = content.Sum(content.DomainTrace, Encode(t))
	return t, t.TraceHash
}

// Decode parses a canonical trace encoding, recomputes the hash, and
// verifies internal consistency (every executed effect has a detail
// record whose ID matches its content).
func Decode(b []byte) (*ExecutionTrace, error) {
	d := content.NewDecoder(b)
	t := &ExecutionTrace{
		EffectDetails:       map[EffectID]EffectRecord{},
		FinalResourceStates: map[resource.ID]resource.State{},
		ContextValues:       map[string]value.Value{},
	}

	var err error
	if t.ProgramHash, err = d.Bytes32(); err != nil {
		return nil, fmt.Errorf("decode trace: program hash: %w", err)
	}
	kind, err := d.Tag()
	if err != nil {
		return nil, fmt.Errorf("decode trace: terminus: %w", err)
	}
	if kind > byte(Suspended) {
		return nil, fmt.Errorf("decode trace: unknown terminus kind %d", kind)
	}
	t.Terminus.Kind = TerminusKind(kind)
	if t.Terminus.TrapKind, err = d.String(); err != nil {
		return nil, fmt.Errorf("decode trace: trap kind: %w", err)
	}
	if t.ContinuationToken, err = d.String(); err != nil {
		return nil, fmt.Errorf("decode trace: continuation token: %w", err)
	}

	hasResult, err := d.Bool()
	if err != nil {
		return nil, fmt.Errorf("decode trace: result marker: %w", err)
	}
	if hasResult {
		if t.Result, err = value.Decode(d); err != nil {
			return nil, fmt.Errorf("decode trace: result: %w", err)
		}
	}
	if t.GasRemaining, err = d.U64(); err != nil {
		return nil, fmt.Errorf("decode trace: gas: %w", err)
	}

	n, err := d.U32()
	if err != nil {
		return nil, fmt.Errorf("decode trace: effect count: %w", err)
	}
	t.ExecutedEffects = make([]EffectID, n)
	for i := range t.ExecutedEffects {
		if t.ExecutedEffects[i], err = d.Bytes32(); err != nil {
			return nil, fmt.Errorf("decode trace: effect %d: %w", i, err)
		}
	}

	n, err = d.U32()
	if err != nil {
		return nil, fmt.Errorf("decode trace: detail count: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		id, err := d.Bytes32()
		if err != nil {
			return nil, fmt.Errorf("decode trace: detail id %d: %w", i, err)
		}
		rec, err := decodeEffectRecord(d)
		if err != nil {
			return nil, fmt.Errorf("decode trace: detail %d: %w", i, err)
		}
		if rec.ID() != id {
			return nil, fmt.Errorf("decode trace: detail %d: id does not match record content", i)
		}
		t.EffectDetails[id] = rec
	}

	n, err = d.U32()
	if err != nil {
		return nil, fmt.Errorf("decode trace: state count: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		id, err := d.Bytes32()
		if err != nil {
			return nil, fmt.Errorf("decode trace: state id %d: %w", i, err)
		}
		st, err := d.Tag()
		if err != nil {
			return nil, fmt.Errorf("decode trace: state %d: %w", i, err)
		}
		if st > byte(resource.Locked) {
			return nil, fmt.Errorf("decode trace: unknown resource state %d", st)
		}
		t.FinalResourceStates[id] = resource.State(st)
	}

	n, err = d.U32()
	if err != nil {
		return nil, fmt.Errorf("decode trace: context count: %w", err)
	}
	for i := uint32(0); i < n; i++ {
		k, err := d.String()
		if err != nil {
			return nil, fmt.Errorf("decode trace: context key %d: %w", i, err)
		}
		v, err := value.Decode(d)
		if err != nil {
			return nil, fmt.Errorf("decode trace: context value %q: %w", k, err)
		}
		t.ContextValues[k] = v
	}

	if !d.Done() {
		return nil, fmt.Errorf("decode trace: %d trailing bytes", d.Remaining())
	}

	t.TraceHash = content.Sum(content.DomainTrace, b)
	return t, nil
}

func decodeEffectRecord(d *content.Decoder) (EffectRecord, error) {
	var r EffectRecord
	var err error
	if r.EffectType, err = d.Bytes32(); err != nil {
		return r, err
	}
	if r.EffectName, err = d.String(); err != nil {
		return r, err
	}
	n, err := d.U32()
	if err != nil {
		return r, err
	}
	r.InputResources = make([]resource.ID, n)
	for i := range r.InputResources {
		if r.InputResources[i], err = d.Bytes32(); err != nil {
			return r, err
		}
	}
	if n, err = d.U32(); err != nil {
		return r, err
	}
	r.OutputResources = make([]resource.ID, n)
	for i := range r.OutputResources {
		if r.OutputResources[i], err = d.Bytes32(); err != nil {
			return r, err
		}
	}
	if n, err = d.U32(); err != nil {
		return r, err
	}
	r.Constraints = make([]string, n)
	for i := range r.Constraints {
		if r.Constraints[i], err = d.String(); err != nil {
			return r, err
		}
	}
	if r.PrePC, err = d.U32(); err != nil {
		return r, err
	}
	if r.PostPC, err = d.U32(); err != nil {
		return r, err
	}
	if r.LogicalTime, err = d.U64(); err != nil {
		return r, err
	}
	return r, nil
}
