/*
payment.go - Payment-date simulator (C1)

PURPOSE:
  Pure function mapping (purchase date, account, grace period) to the date
  the purchase actually debits cash: immediate for cash accounts, shifted
  by the credit card's cut-off/payment-day cycle otherwise.

CYCLE RULES (spec.md §4.1):
  payment > cut_off (same-month cycle, e.g. cut 14, pay 25):
    day < cut_off  -> this month, day = payment
    day >= cut_off -> next month, day = payment
  payment <= cut_off (next-month cycle, e.g. cut 30, pay 15):
    day <= cut_off -> next month, day = payment
    day >  cut_off -> two months out, day = payment

Day overflow (e.g. Feb 30) clamps to month-end via Date.WithDay.
*/
package ledger

// SimulatePaymentDate maps a purchase date to its cash-impact date.
// graceMonths is added to the purchase date before the cycle rule is
// applied (spec.md §4.1: "d = purchase_date + grace_months").
func SimulatePaymentDate(account Account, purchaseDate Date, graceMonths int) Date {
	d := purchaseDate
	if graceMonths != 0 {
		d = d.AddMonths(graceMonths)
	}

	if account.Kind == AccountCash {
		return d
	}

	cutOff, payment := account.CutOffDay, account.PaymentDay

	if payment > cutOff {
		// same-month cycle
		if d.Day() < cutOff {
			return d.WithDay(payment)
		}
		return d.AddMonths(1).WithDay(payment)
	}

	// next-month cycle (payment <= cutOff)
	if d.Day() <= cutOff {
		return d.AddMonths(1).WithDay(payment)
	}
	return d.AddMonths(2).WithDay(payment)
}
