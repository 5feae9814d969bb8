package enum

// ── State machines (CHECK constrained in DB) ──

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusMerged  = "merged"
)

// ── Configurable labels (no DB constraint) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleWaiter  = "waiter"
	UserRoleCashier = "cashier"
)

const (
	PaymentMethodCash       = "cash"
	PaymentMethodCreditCard = "credit_card"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeAmount     = "amount"
)
