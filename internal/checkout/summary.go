package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/money"
)

// Summary renders the plain-text order summary sent to the store owner
func Summary(f *money.Formatter, businessName string, customer domain.Customer, c *cart.Cart) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Order for %s\n\n", businessName)
	fmt.Fprintf(&b, "Customer: %s\n", customer.Name)
	if customer.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", customer.Email)
	}
	if customer.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", customer.Phone)
	}
	if customer.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", customer.Address)
	}
	b.WriteString("\n")

	for _, l := range c.Lines() {
		fmt.Fprintf(&b, "- %s x%d @ %s = %s\n", l.Name, l.Quantity, f.Format(l.UnitPrice), f.Format(l.Total()))
	}

	fmt.Fprintf(&b, "\nTotal: %s", f.Format(c.Subtotal()))
	return b.String()
}

// WhatsAppURL builds the wa.me deep link that opens a chat with text prefilled
func WhatsAppURL(number, text string) string {
	// wa.me does not decode "+" as a space
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + domain.DigitsOnly(number) + "?text=" + escaped
}
