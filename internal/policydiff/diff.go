package policydiff

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ppiankov/transferguard/internal/budget"
	"github.com/ppiankov/transferguard/internal/policy"
	"github.com/ppiankov/transferguard/internal/ratelimit"
)

// Change represents a scalar field change.
type Change struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Comment string `json:"comment,omitempty"`
}

// LimitChange represents a velocity limit addition, removal, or modification.
type LimitChange struct {
	Type    string `json:"type"` // "added", "removed", "changed"
	Sender  string `json:"sender"`
	Limit   string `json:"limit"`
	Comment string `json:"comment,omitempty"`
}

// DiffResult holds the comparison of two PolicyConfigs.
type DiffResult struct {
	OldPath      string        `json:"old_path"`
	NewPath      string        `json:"new_path"`
	Changes      []Change      `json:"changes"`
	LimitChanges []LimitChange `json:"limit_changes"`
	HasChanges   bool          `json:"has_changes"`
}

// Loosens reports whether any change lets through a transfer the old
// policy would have stopped.
func (r *DiffResult) Loosens() bool {
	for _, c := range r.Changes {
		if c.Comment == "looser" {
			return true
		}
	}
	for _, lc := range r.LimitChanges {
		if lc.Comment == "looser" {
			return true
		}
	}
	return false
}

// Diff compares two PolicyConfigs and returns the differences.
func Diff(old, new *policy.PolicyConfig) *DiffResult {
	r := &DiffResult{}

	if old.StrictMode != new.StrictMode {
		comment := "looser"
		if new.StrictMode {
			comment = "stricter"
		}
		r.Changes = append(r.Changes, Change{
			Field:   "strict_mode",
			Old:     strconv.FormatBool(old.StrictMode),
			New:     strconv.FormatBool(new.StrictMode),
			Comment: comment,
		})
	}

	// A lower threshold asks for confirmation sooner.
	diffFloat(r, "large_amount_threshold_usd",
		old.LargeAmountThresholdUSD, new.LargeAmountThresholdUSD, false)

	diffPrice(r, old.TokenPriceUSD, new.TokenPriceUSD)

	diffString(r, "symbol", old.Symbol, new.Symbol)
	if old.Decimals != new.Decimals {
		r.Changes = append(r.Changes, Change{
			Field: "decimals",
			Old:   strconv.Itoa(int(old.Decimals)),
			New:   strconv.Itoa(int(new.Decimals)),
		})
	}
	diffString(r, "denylist_path", old.DenylistPath, new.DenylistPath)
	diffString(r, "rpc.endpoint", old.RPC.Endpoint, new.RPC.Endpoint)

	diffVelocity(r, old.Velocity, new.Velocity)
	diffBudgets(r, old.Budgets, new.Budgets)
	diffMapKeys(r, "alerts", alertKeys(old), alertKeys(new))

	r.HasChanges = len(r.Changes) > 0 || len(r.LimitChanges) > 0
	return r
}

func diffString(r *DiffResult, field, old, new string) {
	if old != new {
		r.Changes = append(r.Changes, Change{Field: field, Old: old, New: new})
	}
}

func diffFloat(r *DiffResult, field string, old, new float64, higherIsStricter bool) {
	if old != new {
		r.Changes = append(r.Changes, Change{
			Field:   field,
			Old:     formatFloat(old),
			New:     formatFloat(new),
			Comment: comment(new > old, higherIsStricter),
		})
	}
}

// diffPrice treats a price as stricter when more transfers cross the
// USD threshold because of it.
func diffPrice(r *DiffResult, old, new *float64) {
	switch {
	case old == nil && new == nil:
	case old == nil:
		r.Changes = append(r.Changes, Change{
			Field: "token_price_usd", Old: "unset", New: formatFloat(*new), Comment: "stricter",
		})
	case new == nil:
		r.Changes = append(r.Changes, Change{
			Field: "token_price_usd", Old: formatFloat(*old), New: "unset", Comment: "looser",
		})
	default:
		diffFloat(r, "token_price_usd", *old, *new, true)
	}
}

func comment(increased, higherIsStricter bool) string {
	if increased == higherIsStricter {
		return "stricter"
	}
	return "looser"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func limitLabel(l *ratelimit.Limit) string {
	if l == nil {
		return "none"
	}
	return fmt.Sprintf("%d per %s", l.MaxTransfers, l.Window)
}

func diffVelocity(r *DiffResult, old, new ratelimit.Config) {
	for _, sender := range sortedKeys(new) {
		nl := new[sender]
		ol, exists := old[sender]
		if !exists {
			r.LimitChanges = append(r.LimitChanges, LimitChange{
				Type: "added", Sender: sender, Limit: limitLabel(nl), Comment: "stricter",
			})
			continue
		}
		if limitLabel(ol) == limitLabel(nl) {
			continue
		}
		r.LimitChanges = append(r.LimitChanges, LimitChange{
			Type:    "changed",
			Sender:  sender,
			Limit:   fmt.Sprintf("%s (was: %s)", limitLabel(nl), limitLabel(ol)),
			Comment: limitComment(ol, nl),
		})
	}

	for _, sender := range sortedKeys(old) {
		if _, exists := new[sender]; !exists {
			r.LimitChanges = append(r.LimitChanges, LimitChange{
				Type: "removed", Sender: sender, Limit: limitLabel(old[sender]), Comment: "looser",
			})
		}
	}
}

// limitComment is empty when the change tightens one dimension and
// loosens the other.
func limitComment(old, new *ratelimit.Limit) string {
	var o, n ratelimit.Limit
	if old != nil {
		o = *old
	}
	if new != nil {
		n = *new
	}
	fewer := n.MaxTransfers < o.MaxTransfers
	more := n.MaxTransfers > o.MaxTransfers
	longer := n.Window > o.Window
	shorter := n.Window < o.Window
	switch {
	case (fewer || longer) && !more && !shorter:
		return "stricter"
	case (more || shorter) && !fewer && !longer:
		return "looser"
	}
	return ""
}

func budgetLabel(b *budget.Budget) string {
	if !b.HasLimits() {
		return "none"
	}
	return fmt.Sprintf("%s per %s", b.MaxTokens, b.Window)
}

// diffBudgets reports one change per sender whose budget differs.
func diffBudgets(r *DiffResult, old, new budget.Config) {
	senders := make(map[string]bool)
	for k := range old {
		senders[k] = true
	}
	for k := range new {
		senders[k] = true
	}
	keys := make([]string, 0, len(senders))
	for k := range senders {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, sender := range keys {
		ol, nl := budgetLabel(old[sender]), budgetLabel(new[sender])
		if ol == nl {
			continue
		}
		c := Change{Field: "budgets[" + sender + "]", Old: ol, New: nl}
		switch {
		case ol == "none":
			c.Comment = "stricter"
		case nl == "none":
			c.Comment = "looser"
		default:
			ob, nb := old[sender], new[sender]
			switch {
			case nb.MaxTokens.LessThanOrEqual(ob.MaxTokens) && nb.Window >= ob.Window:
				c.Comment = "stricter"
			case nb.MaxTokens.GreaterThanOrEqual(ob.MaxTokens) && nb.Window <= ob.Window:
				c.Comment = "looser"
			}
		}
		r.Changes = append(r.Changes, c)
	}
}

func diffMapKeys(r *DiffResult, section string, oldKeys, newKeys []string) {
	oldSet := make(map[string]bool)
	for _, k := range oldKeys {
		oldSet[k] = true
	}
	newSet := make(map[string]bool)
	for _, k := range newKeys {
		newSet[k] = true
	}

	for _, k := range newKeys {
		if !oldSet[k] {
			r.Changes = append(r.Changes, Change{
				Field:   section,
				Old:     "",
				New:     k,
				Comment: "added",
			})
		}
	}
	for _, k := range oldKeys {
		if !newSet[k] {
			r.Changes = append(r.Changes, Change{
				Field:   section,
				Old:     k,
				New:     "",
				Comment: "removed",
			})
		}
	}
}

func sortedKeys(c ratelimit.Config) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func alertKeys(cfg *policy.PolicyConfig) []string {
	keys := make([]string, 0, len(cfg.Alerts))
	for _, a := range cfg.Alerts {
		keys = append(keys, a.URL)
	}
	sort.Strings(keys)
	return keys
}
