package orders

import "time"

// Order statuses
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCancelled = "CANCELLED"
)

// Order represents the item stored in the Orders DynamoDB table. Orders are
// written by checkout; this service only reads them.
type Order struct {
	OrderID           string    `dynamodbav:"order_id"` // PK
	CustomerID        string    `dynamodbav:"customer_id"`
	VendorID          string    `dynamodbav:"vendor_id"`
	Status            string    `dynamodbav:"status"`
	PaidAmount        float64   `dynamodbav:"paid_amount"`
	RazorpayPaymentID string    `dynamodbav:"razorpay_payment_id,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
}
