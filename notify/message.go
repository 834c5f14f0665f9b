// Package notify delivers property-match notifications to buyers over
// outbound channels.
package notify

import (
	"fmt"
	"strings"

	"leadmarket/models"
)

// FormatMessage renders the text sent to a buyer about a new match.
func FormatMessage(n models.Notification) string {
	var sb strings.Builder
	name := n.BuyerName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&sb, "New property match! Hi %s, we found a home for you:\n", firstWord(name))
	fmt.Fprintf(&sb, "%s, %s, %s\n", n.Address, n.City, n.State)
	fmt.Fprintf(&sb, "$%s/mo, $%s down", money(n.MonthlyPayment), money(n.DownPayment))
	if n.Bedrooms > 0 {
		fmt.Fprintf(&sb, ", %d bd / %g ba", n.Bedrooms, n.Bathrooms)
	}
	if n.BudgetTag != "" && n.BudgetTag != models.BudgetBoth.Label() {
		fmt.Fprintf(&sb, "\n(%s)", n.BudgetTag)
	}
	if n.DashboardURL != "" {
		fmt.Fprintf(&sb, "\nView it: %s", n.DashboardURL)
	}
	sb.WriteString("\nReply STOP to unsubscribe")
	return sb.String()
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

// money formats whole dollars with thousands separators.
func money(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
