package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"telegram-shop/model"
)

const (
	MsgNameTooShort    = "Имя должно содержать минимум 2 символа"
	MsgInvalidPhone    = "Введите корректный номер телефона"
	MsgAddressTooShort = "Адрес должен содержать минимум 10 символов"
	MsgNoPayment       = "Выберите способ оплаты"
	MsgEmptyCart       = "Корзина пуста"

	minNameLength    = 2
	minAddressLength = 10
)

var phonePattern = regexp.MustCompile(`^[+]?[0-9\s\-()]{10,}$`)

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Messages: r.Errors}
}

type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + strings.Join(e.Messages, "; ")
}

// Validate checks every rule and collects all failures in rule order.
func Validate(d model.OrderDraft) ValidationResult {
	errs := []string{}

	if utf8.RuneCountInString(strings.TrimSpace(d.CustomerName)) < minNameLength {
		errs = append(errs, MsgNameTooShort)
	}
	if d.CustomerPhone == "" || !phonePattern.MatchString(d.CustomerPhone) {
		errs = append(errs, MsgInvalidPhone)
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.CustomerAddress)) < minAddressLength {
		errs = append(errs, MsgAddressTooShort)
	}
	if d.PaymentMethod == "" {
		errs = append(errs, MsgNoPayment)
	}
	if len(d.Items) == 0 {
		errs = append(errs, MsgEmptyCart)
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
