package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// PaymentMethod is the wire code of a payment option.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentQR   PaymentMethod = "qr"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentQR:
		return true
	}
	return false
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	if !m.IsValid() {
		return "", fmt.Errorf("unknown payment method %q", value)
	}
	return m, nil
}

// Card holds the fields the card method requires before submit.
type Card struct {
	Number   string `json:"card_no" validate:"required,numeric"`
	ExpMonth string `json:"exp_month" validate:"required,numeric"`
	ExpYear  string `json:"exp_year" validate:"required,numeric"`
	CVV      string `json:"cvv" validate:"required,numeric"`
}

func (c Card) normalized() Card {
	return Card{
		Number:   strings.ReplaceAll(strings.TrimSpace(c.Number), " ", ""),
		ExpMonth: strings.TrimSpace(c.ExpMonth),
		ExpYear:  strings.TrimSpace(c.ExpYear),
		CVV:      strings.TrimSpace(c.CVV),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// missingCardFields lists the json names of incomplete card fields.
func missingCardFields(c Card) []string {
	err := validate.Struct(c.normalized())
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"card"}
	}
	fields := make([]string, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, fe.Field())
	}
	return fields
}

const maxProofBytes = 5 << 20

var proofMimeTypes = []string{"image/png", "image/jpeg", "image/webp", "image/heic", "application/pdf"}

// Proof is an uploaded proof-of-payment document.
type Proof struct {
	Filename    string
	ContentType string
	Data        []byte
}

// NewProof sniffs data and accepts images and PDFs only.
func NewProof(filename string, data []byte) (*Proof, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("proof of payment is empty")
	}
	if len(data) > maxProofBytes {
		return nil, fmt.Errorf("proof of payment must be at most %d MB", maxProofBytes>>20)
	}
	detected := mimetype.Detect(data)
	for _, allowed := range proofMimeTypes {
		if detected.Is(allowed) {
			name := strings.TrimSpace(filename)
			if name == "" {
				name = "proof" + detected.Extension()
			}
			return &Proof{Filename: name, ContentType: allowed, Data: data}, nil
		}
	}
	return nil, fmt.Errorf("proof of payment must be an image or PDF, got %s", detected.String())
}
