package httpx

// Money travels as strings on the wire so amounts survive JSON round trips
// without float drift.

type CheckoutRequest struct {
	EmployeeID     string            `json:"employee_id"`
	Lines          []CheckoutLineDTO `json:"lines"`
	PaymentMethod  string            `json:"payment_method"`
	AmountTendered string            `json:"amount_tendered,omitempty"`
	LoyaltyCardID  string            `json:"loyalty_card_id,omitempty"`
}

type CheckoutLineDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutResponse struct {
	Sale    SaleResponse    `json:"sale"`
	Receipt ReceiptResponse `json:"receipt"`
	Change  *ChangeResponse `json:"change,omitempty"`
}

type SaleResponse struct {
	ID             string             `json:"id"`
	ReceiptNumber  string             `json:"receipt_number"`
	Lines          []SaleLineResponse `json:"lines"`
	Subtotal       string             `json:"subtotal"`
	Total          string             `json:"total"`
	PaymentMethod  string             `json:"payment_method"`
	AmountTendered string             `json:"amount_tendered"`
	ChangeGiven    string             `json:"change_given"`
	LoyaltyCardID  string             `json:"loyalty_card_id,omitempty"`
	PointsEarned   int64              `json:"points_earned"`
	EmployeeID     string             `json:"employee_id"`
	CreatedAt      string             `json:"created_at"`
}

type SaleLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Amount      string `json:"amount"`
}

type ReceiptResponse struct {
	Business BusinessResponse `json:"business"`
	Sale     SaleResponse     `json:"sale"`
}

type BusinessResponse struct {
	Name       string `json:"name"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	VATNumber  string `json:"vat_number,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
}

type ChangeResponse struct {
	Amount string                `json:"amount"`
	Counts []DenominationCountTO `json:"counts"`
}

type DenominationCountTO struct {
	Denomination string `json:"denomination"`
	Count        int64  `json:"count"`
}

type ProductResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	UnitPrice         string             `json:"unit_price"`
	Stock             int64              `json:"stock"`
	LowStockThreshold int64              `json:"low_stock_threshold"`
	Promotion         *PromotionResponse `json:"promotion,omitempty"`
}

type PromotionResponse struct {
	Kind            string `json:"kind"`
	Value           string `json:"value,omitempty"`
	BuyQuantity     int64  `json:"buy_quantity,omitempty"`
	GetFreeQuantity int64  `json:"get_free_quantity,omitempty"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	Description     string `json:"description,omitempty"`
}

type AdjustmentRequest struct {
	ProductID  string `json:"product_id"`
	Delta      int64  `json:"delta"`
	Kind       string `json:"kind"`
	Reason     string `json:"reason,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
}

type MovementResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	Delta          int64  `json:"delta"`
	Kind           string `json:"kind"`
	Reason         string `json:"reason,omitempty"`
	EmployeeID     string `json:"employee_id,omitempty"`
	Reference      string `json:"reference,omitempty"`
	PriorStock     int64  `json:"prior_stock"`
	ResultingStock int64  `json:"resulting_stock"`
	OccurredAt     string `json:"occurred_at"`
}

type CreateCardRequest struct {
	Number       string `json:"number"`
	CustomerName string `json:"customer_name"`
}

type CardResponse struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	CustomerName string `json:"customer_name"`
	Tier         string `json:"tier"`
	Points       int64  `json:"points"`
	CreatedAt    string `json:"created_at"`
	LastUsed     string `json:"last_used,omitempty"`
}

type SettlementLogEntryResponse struct {
	Phase   string `json:"phase"`
	Detail  string `json:"detail,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
	At      string `json:"at"`
}

type PendingIntentResponse struct {
	SaleID        string `json:"sale_id"`
	ReceiptNumber string `json:"receipt_number"`
	ProductID     string `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	Attempts      int    `json:"attempts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
