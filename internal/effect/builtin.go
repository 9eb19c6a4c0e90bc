package effect

import (
	"log/slog"
	"strconv"

	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Built-in effect names. These ship with the CLI so that program files
// have a usable handler set without embedding host code.
const (
	NameEmit = "weft/emit"
	NameMint = "weft/mint"
	NameBurn = "weft/burn"
)

// RegisterBuiltins installs the built-in handlers into reg.
func RegisterBuiltins(reg *Registry) error {
	if _, err := reg.Register(emitSpec(), emitHandler); err != nil {
		return err
	}
	if _, err := reg.Register(mintSpec(), mintHandler); err != nil {
		return err
	}
	if _, err := reg.Register(burnSpec(), burnHandler); err != nil {
		return err
	}
	return nil
}

// emit logs its argument and completes with unit. The cheapest possible
// observable effect, mainly for exercising traces from program files.
func emitSpec() Spec {
	return Spec{
		Name:    NameEmit,
		Inputs:  []value.Kind{value.KindAny},
		Outputs: []value.Kind{value.KindUnit},
		GasCost: 1,
	}
}

func emitHandler(call Call) Outcome {
	slog.Info("emit effect",
		"value", value.String(call.Args[0]),
		"logical_time", call.LogicalTime,
	)
	return Complete{Results: []value.Value{value.Unit{}}}
}

// mint creates one unit-quantity resource in the "minted" domain, tagged
// with the logical time so repeated mints yield distinct identities.
func mintSpec() Spec {
	return Spec{
		Name:    NameMint,
		Inputs:  []value.Kind{value.KindInt},
		Outputs: []value.Kind{value.KindResource},
		GasCost: 10,
	}
}

func mintHandler(call Call) Outcome {
	amount := call.Args[0].(value.Int)
	if amount < 0 {
		return Rejected{Reason: "mint amount must be non-negative"}
	}
	r := resource.Resource{
		Logic:    "token",
		Domain:   "minted",
		Quantity: resource.NewQuantity(uint64(amount)),
		Metadata: map[string]string{
			"minted_at": strconv.FormatUint(call.LogicalTime, 10),
		},
	}
	return Complete{
		Results: []value.Value{value.ResourceRef{ID: r.ComputeID()}},
		Delta:   ResourceDelta{Created: []resource.Resource{r}},
	}
}

// burn consumes its resource argument. The interpreter has already marked
// the argument Consumed by the time the handler runs; burn only has to
// acknowledge.
func burnSpec() Spec {
	return Spec{
		Name:    NameBurn,
		Inputs:  []value.Kind{value.KindResource},
		Outputs: []value.Kind{value.KindUnit},
		GasCost: 5,
	}
}

func burnHandler(Call) Outcome {
	return Complete{Results: []value.Value{value.Unit{}}}
}
