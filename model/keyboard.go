package model

// Button is one inline keyboard button. Exactly one of CallbackData and URL is set.
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}
