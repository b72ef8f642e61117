package enum

// ── State machines (CHECK constrained in DB) ──

const (
	TableStatusClosed   = "CLOSED"
	TableStatusOpened   = "OPENED"
	TableStatusOccupied = "OCCUPIED"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusServing   = "SERVING"
	OrderStatusPaid      = "PAID"
	OrderStatusCancelled = "CANCELLED"
)

const (
	OrderItemStatusPending    = "PENDING"
	OrderItemStatusCooking    = "COOKING"
	OrderItemStatusReady      = "READY"
	OrderItemStatusServed     = "SERVED"
	OrderItemStatusCancelled  = "CANCELLED"
	OrderItemStatusOutOfStock = "OUT_OF_STOCK"
)

// ── Staff roles (carried in JWT claims; user storage lives elsewhere) ──

const (
	RoleWaiter       = "WAITER"
	RoleKitchenStaff = "KITCHEN_STAFF"
	RoleCashier      = "CASHIER"
	RoleManager      = "MANAGER"
	RoleAdmin        = "ADMIN"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash       = "CASH"
	PaymentMethodCreditCard = "CREDIT_CARD"
	PaymentMethodDebitCard  = "DEBIT_CARD"
	PaymentMethodMomo       = "MOMO"
	PaymentMethodVNPay      = "VNPAY"
	PaymentMethodZaloPay    = "ZALOPAY"
)

const (
	KitchenTypeHot  = "HOT_KITCHEN"
	KitchenTypeCold = "COLD_KITCHEN"
	KitchenTypeBar  = "BAR"
)
