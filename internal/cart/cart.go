// Package cart turns the server's order snapshot into what the UI shows.
package cart

import (
	"fmt"

	"orderbot/internal/types"
)

// EmptyTotal is the total shown for an empty cart.
const EmptyTotal types.Decimal = "0.00"

// View is the render state of the cart. It is always replaced wholesale.
type View struct {
	Empty bool
	Lines []string
	Total types.Decimal
}

// ActionsEnabled reports whether "clear" and "confirm" may be offered.
func (v View) ActionsEnabled() bool { return !v.Empty }

// Reconcile maps a snapshot (nil meaning no active cart) to a View. The
// server's figures are used as-is; nothing is recomputed locally.
func Reconcile(snapshot *types.OrderSnapshot) View {
	if snapshot == nil || len(snapshot.Items) == 0 {
		return View{Empty: true, Lines: []string{}, Total: EmptyTotal}
	}
	lines := make([]string, 0, len(snapshot.Items))
	for _, it := range snapshot.Items {
		lines = append(lines, FormatLine(it))
	}
	return View{Lines: lines, Total: snapshot.Total}
}

// FormatLine renders "2 × Butter Naan — 120.00".
func FormatLine(it types.OrderItem) string {
	return fmt.Sprintf("%d × %s — %s", it.Quantity, it.Name, it.TotalPrice)
}
