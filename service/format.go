package service

import (
	"strconv"
	"time"

	"telegram-shop/model"
)

const (
	timeLayout = "02.01.2006, 15:04:05"
	dateLayout = "02.01.2006"
)

var currencySymbols = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
}

// FormatPrice prints a whole amount without digit grouping, e.g. "89990 ₽".
func FormatPrice(amount int64, currency string) string {
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency
	}
	if symbol == "" {
		return strconv.FormatInt(amount, 10)
	}
	return strconv.FormatInt(amount, 10) + " " + symbol
}

func FormatTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timeLayout)
}

func FormatDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateLayout)
}

func PaymentLabel(method string) string {
	if method == "card" {
		return "Банковская карта"
	}
	return "Наличные при получении"
}

var statusLabels = map[model.Status]string{
	model.StatusPending:    "Ожидает подтверждения",
	model.StatusConfirmed:  "Подтвержден",
	model.StatusProcessing: "В обработке",
	model.StatusShipped:    "Отправлен",
	model.StatusDelivered:  "Доставлен",
	model.StatusCancelled:  "Отменен",
}

func StatusLabel(s model.Status) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}
