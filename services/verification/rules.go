package verification

import (
	"fmt"

	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/warranty"
)

// facts is everything the suggestion rules are allowed to look at.
type facts struct {
	order        *order.Order
	items        []*order.OrderItem
	keys         []*pool.LicenseKey
	warranty     *warranty.Registration
	active       *replacement.Request
	comboNames   []string
	preactivated bool
	missingCode  bool
}

type rule struct {
	name  string
	apply func(f *facts) string
}

// suggestionRules run in fixed priority order: fraud and returns
// dominate everything, operational state follows, informational notes
// come last. The preactivated rule intentionally runs after the
// redemption rule so it can substitute the guidance.
var suggestionRules = []rule{
	{name: "fraud", apply: fraudRule},
	{name: "returned", apply: returnedRule},
	{name: "activation_issue", apply: activationIssueRule},
	{name: "replacement", apply: replacementRule},
	{name: "redemption", apply: redemptionRule},
	{name: "phone_activation", apply: phoneActivationRule},
	{name: "combo", apply: comboRule},
	{name: "missing_product_code", apply: missingCodeRule},
	{name: "preactivated", apply: preactivatedRule},
}

func suggestedActions(f *facts) []string {
	actions := make([]string, 0, 4)
	for _, r := range suggestionRules {
		if msg := r.apply(f); msg != "" {
			actions = append(actions, msg)
		}
	}
	return actions
}

func fraudRule(f *facts) string {
	if !f.order.IsFraud {
		return ""
	}
	if f.order.FraudReason != "" {
		return fmt.Sprintf("⛔ Order flagged for fraud (%s). Do not provide support or license keys.", f.order.FraudReason)
	}
	return "⛔ Order flagged for fraud. Do not provide support or license keys."
}

func returnedRule(f *facts) string {
	if !f.order.IsReturned {
		return ""
	}
	return "⛔ Order has been returned or refunded. Do not reissue license keys."
}

func activationIssueRule(f *facts) string {
	if !f.order.HasActivationIssue {
		return ""
	}
	if f.order.IssueStatus != "" {
		return fmt.Sprintf("⚠️ An activation issue is open on this order (status: %s).", f.order.IssueStatus)
	}
	return "⚠️ An activation issue is open on this order."
}

func replacementRule(f *facts) string {
	if f.active == nil {
		return ""
	}
	switch f.active.Status {
	case replacement.StatusPending:
		return "⏳ A replacement request is pending review for this order."
	case replacement.StatusApproved:
		if f.active.IsInstant {
			return "✅ An instant replacement key was already issued for this order. Further instant replacements are not allowed."
		}
		return "✅ A replacement key was issued for this order; the original key is superseded."
	case replacement.StatusRejected:
		if f.active.AdminNotes != "" {
			return fmt.Sprintf("❌ The latest replacement request was rejected: %s", f.active.AdminNotes)
		}
		return "❌ The latest replacement request was rejected."
	}
	return ""
}

func redemptionRule(f *facts) string {
	if f.preactivated {
		return ""
	}

	redeemed := 0
	for _, k := range f.keys {
		if k.RedeemedAt != nil {
			redeemed++
		}
	}

	switch {
	case len(f.keys) == 0:
		return "🔑 No license key redeemed yet. The customer can still activate with their secret code."
	case redeemed == len(f.keys):
		return "🔑 All license keys on this order are already redeemed. Verify the customer's identity before any reissue."
	case redeemed > 0:
		return fmt.Sprintf("🔑 %d of %d license keys on this order are redeemed.", redeemed, len(f.keys))
	default:
		return "🔑 License keys are assigned but not yet redeemed."
	}
}

func phoneActivationRule(f *facts) string {
	if !f.order.PhoneActivationUsed {
		return ""
	}
	return "📞 Phone activation has already been used for this order."
}

func comboRule(f *facts) string {
	if len(f.comboNames) == 0 {
		return ""
	}
	return fmt.Sprintf("ℹ️ Combo order (%s): expect one key per component product.", f.comboNames[0])
}

func missingCodeRule(f *facts) string {
	if !f.missingCode {
		return ""
	}
	return "⚠️ An order item has no product code configured. Route to support before fulfilling."
}

func preactivatedRule(f *facts) string {
	if !f.preactivated {
		return ""
	}
	return "ℹ️ Preactivated product: no license key is required for this order."
}
